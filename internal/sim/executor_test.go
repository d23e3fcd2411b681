package sim

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-dca-bot/internal/types"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func decEqual(t *testing.T, want, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.True(t, want.Equal(got), "want %s, got %s (%v)", want, got, msgAndArgs)
}

func buyIntent(sentiment int, amounts map[string]decimal.Decimal) *Intent {
	return &Intent{Direction: types.DirectionBuy, Amounts: amounts, Sentiment: sentiment}
}

func sellIntent(sentiment int, fractions map[string]decimal.Decimal) *Intent {
	return &Intent{Direction: types.DirectionSell, Fractions: fractions, Sentiment: sentiment}
}

func TestExecuteBuy(t *testing.T) {
	ctx := context.Background()
	te := &tradeExecutor{}

	t.Run("buys at the daily price and sets the cost basis", func(t *testing.T) {
		// sentiment=5, rule pays $500 of BTC, price $20k, cash $10k.
		p := NewPortfolio(d(10000), []string{"BTC"})
		prices := map[string]decimal.Decimal{"BTC": d(20000)}

		rec := te.executeBuy(ctx, p, "2022-06-18", buyIntent(5, map[string]decimal.Decimal{"BTC": d(500)}), prices)
		require.NotNil(t, rec)

		decEqual(t, d(9500), p.Cash)
		decEqual(t, d(0.025), p.Holding("BTC").Quantity)
		decEqual(t, d(20000), p.Holding("BTC").AverageCost)

		require.Len(t, rec.Fills, 1)
		decEqual(t, d(500), rec.Spent)
		decEqual(t, d(9500), rec.Cash)
		decEqual(t, d(10000), rec.AccountTotal)
		assert.Equal(t, types.DirectionBuy, rec.TradeDirection())
	})

	t.Run("average cost is the volume weighted average price", func(t *testing.T) {
		p := NewPortfolio(d(100000), []string{"BTC"})

		buys := []struct {
			amount, price float64
		}{
			{500, 20000},
			{300, 30000},
			{200, 25000},
			{1000, 40000},
		}
		totalSpent := decimal.Zero
		totalQty := decimal.Zero
		for i, b := range buys {
			date := types.FormatDay(mustDay(t, "2022-01-01").AddDate(0, 0, i))
			rec := te.executeBuy(ctx, p, date, buyIntent(5, map[string]decimal.Decimal{"BTC": d(b.amount)}), map[string]decimal.Decimal{"BTC": d(b.price)})
			require.NotNil(t, rec)
			totalSpent = totalSpent.Add(d(b.amount))
			totalQty = totalQty.Add(d(b.amount).Div(d(b.price)))
		}

		vwap := totalSpent.Div(totalQty)
		diff := vwap.Sub(p.Holding("BTC").AverageCost).Abs()
		assert.True(t, diff.LessThan(d(0.00000001)), "vwap %s vs avg cost %s", vwap, p.Holding("BTC").AverageCost)
		decEqual(t, totalQty, p.Holding("BTC").Quantity)
	})

	t.Run("skips an asset the cash cannot cover without aborting the rest", func(t *testing.T) {
		p := NewPortfolio(d(400), []string{"BTC", "ETH"})
		prices := map[string]decimal.Decimal{"BTC": d(20000), "ETH": d(1000)}

		rec := te.executeBuy(ctx, p, "2022-06-18", buyIntent(8, map[string]decimal.Decimal{"BTC": d(500), "ETH": d(300)}), prices)
		require.NotNil(t, rec)

		// BTC leg skipped, ETH leg filled.
		decEqual(t, decimal.Zero, p.Holding("BTC").Quantity)
		decEqual(t, d(0.3), p.Holding("ETH").Quantity)
		decEqual(t, d(100), p.Cash)
		require.Len(t, rec.Fills, 1)
		assert.Equal(t, "ETH", rec.Fills[0].Symbol)
	})

	t.Run("returns nothing and mutates nothing when cash is short for every asset", func(t *testing.T) {
		p := NewPortfolio(d(40), []string{"BTC", "ETH"})
		prices := map[string]decimal.Decimal{"BTC": d(20000), "ETH": d(1000)}

		rec := te.executeBuy(ctx, p, "2022-06-18", buyIntent(8, map[string]decimal.Decimal{"BTC": d(500), "ETH": d(300)}), prices)
		assert.Nil(t, rec)
		decEqual(t, d(40), p.Cash)
		assert.False(t, p.HasHoldings())
	})
}

func TestExecuteSell(t *testing.T) {
	ctx := context.Background()
	te := &tradeExecutor{}

	t.Run("sells the fraction and leaves average cost unchanged", func(t *testing.T) {
		// 1.0 BTC at avg $20k, sentiment 90, sell 3% at $30k.
		p := NewPortfolio(d(1000), []string{"BTC"})
		p.Holding("BTC").Quantity = d(1.0)
		p.Holding("BTC").AverageCost = d(20000)
		prices := map[string]decimal.Decimal{"BTC": d(30000)}

		rec := te.executeSell(ctx, p, "2024-03-12", sellIntent(90, map[string]decimal.Decimal{"BTC": d(0.03)}), prices)
		require.NotNil(t, rec)

		decEqual(t, d(0.97), p.Holding("BTC").Quantity)
		decEqual(t, d(20000), p.Holding("BTC").AverageCost)
		decEqual(t, d(1900), p.Cash)
		decEqual(t, d(900), rec.Proceeds)
		assert.Equal(t, types.DirectionSell, rec.TradeDirection())
	})

	t.Run("no-op when nothing is held", func(t *testing.T) {
		p := NewPortfolio(d(1000), []string{"BTC", "ETH"})
		prices := map[string]decimal.Decimal{"BTC": d(30000), "ETH": d(2000)}

		rec := te.executeSell(ctx, p, "2024-03-12", sellIntent(90, map[string]decimal.Decimal{"BTC": d(0.03), "ETH": d(0.05)}), prices)
		assert.Nil(t, rec)
		decEqual(t, d(1000), p.Cash)
	})

	t.Run("sells only the assets actually held", func(t *testing.T) {
		p := NewPortfolio(d(0), []string{"BTC", "ETH"})
		p.Holding("ETH").Quantity = d(10)
		p.Holding("ETH").AverageCost = d(1500)
		prices := map[string]decimal.Decimal{"BTC": d(30000), "ETH": d(2000)}

		rec := te.executeSell(ctx, p, "2024-03-12", sellIntent(88, map[string]decimal.Decimal{"BTC": d(0.01), "ETH": d(0.02)}), prices)
		require.NotNil(t, rec)
		require.Len(t, rec.Fills, 1)
		assert.Equal(t, "ETH", rec.Fills[0].Symbol)
		decEqual(t, d(0.2), rec.Fills[0].Quantity)
		decEqual(t, d(400), p.Cash)
		decEqual(t, d(9.8), p.Holding("ETH").Quantity)
	})
}

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := types.ParseDay(s)
	require.NoError(t, err)
	return parsed
}
