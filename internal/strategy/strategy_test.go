package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usd(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func amounts(btc, eth float64) map[string]decimal.Decimal {
	return map[string]decimal.Decimal{"BTC": usd(btc), "ETH": usd(eth)}
}

func defaultStrategy(t *testing.T) *Strategy {
	t.Helper()
	s, err := New(
		[]BuyRule{
			{Ceiling: 20, Amounts: amounts(100, 50)},
			{Ceiling: 10, Amounts: amounts(500, 300)},
			{Ceiling: 15, Amounts: amounts(200, 100)},
		},
		[]SellRule{
			{Floor: 80, Fractions: amounts(0.005, 0.01)},
			{Floor: 90, Fractions: amounts(0.03, 0.05)},
			{Floor: 85, Fractions: amounts(0.01, 0.02)},
		},
	)
	require.NoError(t, err)
	return s
}

func TestNew_Validation(t *testing.T) {
	t.Run("rejects empty tables", func(t *testing.T) {
		_, err := New(nil, []SellRule{{Floor: 80, Fractions: amounts(0.01, 0.01)}})
		require.Error(t, err)

		_, err = New([]BuyRule{{Ceiling: 10, Amounts: amounts(100, 50)}}, nil)
		require.Error(t, err)
	})

	t.Run("rejects inconsistent asset sets", func(t *testing.T) {
		_, err := New(
			[]BuyRule{
				{Ceiling: 10, Amounts: amounts(500, 300)},
				{Ceiling: 20, Amounts: map[string]decimal.Decimal{"BTC": usd(100)}},
			},
			[]SellRule{{Floor: 80, Fractions: amounts(0.01, 0.01)}},
		)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "asset set")
	})

	t.Run("rejects sell fraction above one", func(t *testing.T) {
		_, err := New(
			[]BuyRule{{Ceiling: 10, Amounts: amounts(500, 300)}},
			[]SellRule{{Floor: 80, Fractions: amounts(1.5, 0.01)}},
		)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "outside [0,1]")
	})

	t.Run("rejects negative buy amount", func(t *testing.T) {
		_, err := New(
			[]BuyRule{{Ceiling: 10, Amounts: amounts(-500, 300)}},
			[]SellRule{{Floor: 80, Fractions: amounts(0.01, 0.01)}},
		)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "negative amount")
	})
}

func TestStrategy_Thresholds(t *testing.T) {
	s := defaultStrategy(t)
	assert.Equal(t, 20, s.MaxBuyThreshold())
	assert.Equal(t, 80, s.MinSellThreshold())
	assert.Equal(t, []string{"BTC", "ETH"}, s.Assets())
}

func TestStrategy_BuyAmounts(t *testing.T) {
	s := defaultStrategy(t)

	t.Run("picks first ceiling strictly above the index", func(t *testing.T) {
		a, ok := s.BuyAmounts(5)
		require.True(t, ok)
		assert.True(t, a["BTC"].Equal(usd(500)), "got %s", a["BTC"])

		a, ok = s.BuyAmounts(12)
		require.True(t, ok)
		assert.True(t, a["BTC"].Equal(usd(200)), "got %s", a["BTC"])
	})

	t.Run("index equal to a ceiling falls through to the next rule", func(t *testing.T) {
		a, ok := s.BuyAmounts(10)
		require.True(t, ok)
		assert.True(t, a["BTC"].Equal(usd(200)), "got %s", a["BTC"])

		a, ok = s.BuyAmounts(15)
		require.True(t, ok)
		assert.True(t, a["BTC"].Equal(usd(100)), "got %s", a["BTC"])
	})

	t.Run("index at or above every ceiling buys nothing", func(t *testing.T) {
		_, ok := s.BuyAmounts(20)
		assert.False(t, ok)

		_, ok = s.BuyAmounts(55)
		assert.False(t, ok)
	})
}

func TestStrategy_SellFractions(t *testing.T) {
	s := defaultStrategy(t)

	t.Run("index exactly at a floor triggers that floor", func(t *testing.T) {
		f, ok := s.SellFractions(85)
		require.True(t, ok)
		assert.True(t, f["BTC"].Equal(usd(0.01)), "got %s", f["BTC"])
	})

	t.Run("picks the highest floor not exceeding the index", func(t *testing.T) {
		f, ok := s.SellFractions(92)
		require.True(t, ok)
		assert.True(t, f["BTC"].Equal(usd(0.03)), "got %s", f["BTC"])

		f, ok = s.SellFractions(83)
		require.True(t, ok)
		assert.True(t, f["BTC"].Equal(usd(0.005)), "got %s", f["BTC"])
	})

	t.Run("index below every floor sells nothing", func(t *testing.T) {
		_, ok := s.SellFractions(79)
		assert.False(t, ok)
	})
}

func TestStrategy_OrderingIndependence(t *testing.T) {
	// The same rules in any declared order must produce identical
	// lookups after construction.
	a := defaultStrategy(t)
	b, err := New(
		[]BuyRule{
			{Ceiling: 10, Amounts: amounts(500, 300)},
			{Ceiling: 15, Amounts: amounts(200, 100)},
			{Ceiling: 20, Amounts: amounts(100, 50)},
		},
		[]SellRule{
			{Floor: 90, Fractions: amounts(0.03, 0.05)},
			{Floor: 85, Fractions: amounts(0.01, 0.02)},
			{Floor: 80, Fractions: amounts(0.005, 0.01)},
		},
	)
	require.NoError(t, err)

	for idx := 0; idx <= 100; idx++ {
		av, aok := a.BuyAmounts(idx)
		bv, bok := b.BuyAmounts(idx)
		require.Equal(t, aok, bok, "buy lookup mismatch at %d", idx)
		if aok {
			require.True(t, av["BTC"].Equal(bv["BTC"]), "buy amount mismatch at %d", idx)
		}

		af, aok := a.SellFractions(idx)
		bf, bok := b.SellFractions(idx)
		require.Equal(t, aok, bok, "sell lookup mismatch at %d", idx)
		if aok {
			require.True(t, af["BTC"].Equal(bf["BTC"]), "sell fraction mismatch at %d", idx)
		}
	}
}
