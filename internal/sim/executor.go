package sim

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"crypto-dca-bot/internal/logger"
	"crypto-dca-bot/internal/types"
)

// tradeExecutor applies a trade intent to the portfolio, maintains the
// weighted-average cost basis and produces the ledger records. It is
// invoked at most once per date per direction; that guard lives in the
// Runner.
type tradeExecutor struct{}

// executeBuy buys each asset with a positive intended USD amount. An
// asset the cash balance cannot cover is skipped with a warning, not a
// global abort; if cash is short for every asset no record is produced
// and the portfolio is left untouched.
func (te *tradeExecutor) executeBuy(ctx context.Context, p *Portfolio, date string, intent *Intent, prices map[string]decimal.Decimal) *types.BuyRecord {
	var (
		fills      []types.TradeFill
		totalSpent = decimal.Zero
		noteParts  []string
	)

	for _, sym := range p.Symbols() {
		amount := intent.Amounts[sym]
		if !amount.IsPositive() {
			continue
		}
		price, ok := prices[sym]
		if !ok || !price.IsPositive() {
			continue
		}
		if p.Cash.LessThan(amount) {
			logger.Warn(ctx, "Insufficient funds, skipping buy leg",
				"date", date,
				"symbol", sym,
				"amount", amount.StringFixed(2),
				"cash", p.Cash.StringFixed(2),
			)
			continue
		}

		qty := amount.Div(price)
		h := p.Holding(sym)
		oldQty := h.Quantity
		h.Quantity = oldQty.Add(qty)
		// Cost basis is a running average weighted by dollars spent:
		// (oldAvg*oldQty + spent) / newQty.
		h.AverageCost = h.AverageCost.Mul(oldQty).Add(amount).Div(h.Quantity)
		p.Cash = p.Cash.Sub(amount)

		totalSpent = totalSpent.Add(amount)
		fills = append(fills, types.TradeFill{Symbol: sym, Quantity: qty, Value: amount, Price: price})
		noteParts = append(noteParts, fmt.Sprintf("bought %s %s at $%s", qty.StringFixed(6), sym, price.StringFixed(2)))
	}

	if len(fills) == 0 {
		return nil
	}

	rec := &types.BuyRecord{
		Date:  date,
		Fills: fills,
		Spent: totalSpent,
		TradeOutcome: types.TradeOutcome{
			Holdings:     p.Snapshot(),
			Cash:         p.Cash,
			AccountTotal: p.AccountTotal(prices),
			Note:         fmt.Sprintf("fear & greed index: %d - buy - %s", intent.Sentiment, strings.Join(noteParts, "; ")),
		},
	}

	logger.Info(ctx, "Buy executed",
		"date", date,
		"sentiment", intent.Sentiment,
		"spent", totalSpent.StringFixed(2),
		"cash", p.Cash.StringFixed(2),
		"account_total", rec.AccountTotal.StringFixed(2),
	)
	return rec
}

// executeSell sells the configured fraction of every held asset. A
// day on which every asset would sell zero quantity is a no-op and
// produces no ledger entry. Selling never touches the average cost of
// the remaining position.
func (te *tradeExecutor) executeSell(ctx context.Context, p *Portfolio, date string, intent *Intent, prices map[string]decimal.Decimal) *types.SellRecord {
	if !p.HasHoldings() {
		logger.Debug(ctx, "Nothing to sell", "date", date)
		return nil
	}

	var (
		fills         []types.TradeFill
		totalProceeds = decimal.Zero
		noteParts     []string
	)

	for _, sym := range p.Symbols() {
		fraction := intent.Fractions[sym]
		h := p.Holding(sym)
		if !h.Quantity.IsPositive() || !fraction.IsPositive() {
			continue
		}
		price, ok := prices[sym]
		if !ok || !price.IsPositive() {
			continue
		}

		qty := h.Quantity.Mul(fraction)
		proceeds := qty.Mul(price)
		h.Quantity = h.Quantity.Sub(qty)
		p.Cash = p.Cash.Add(proceeds)

		totalProceeds = totalProceeds.Add(proceeds)
		fills = append(fills, types.TradeFill{Symbol: sym, Quantity: qty, Value: proceeds, Price: price})
		noteParts = append(noteParts, fmt.Sprintf("sold %s %s at $%s", qty.StringFixed(6), sym, price.StringFixed(2)))
	}

	if len(fills) == 0 {
		return nil
	}

	rec := &types.SellRecord{
		Date:     date,
		Fills:    fills,
		Proceeds: totalProceeds,
		TradeOutcome: types.TradeOutcome{
			Holdings:     p.Snapshot(),
			Cash:         p.Cash,
			AccountTotal: p.AccountTotal(prices),
			Note:         fmt.Sprintf("fear & greed index: %d - sell - %s", intent.Sentiment, strings.Join(noteParts, "; ")),
		},
	}

	logger.Info(ctx, "Sell executed",
		"date", date,
		"sentiment", intent.Sentiment,
		"proceeds", totalProceeds.StringFixed(2),
		"cash", p.Cash.StringFixed(2),
		"account_total", rec.AccountTotal.StringFixed(2),
	)
	return rec
}
