package sim

import (
	"github.com/shopspring/decimal"

	"crypto-dca-bot/internal/types"
)

// AssetSummary is the end-of-range view of one asset.
type AssetSummary struct {
	Symbol      string          `json:"symbol"`
	Quantity    decimal.Decimal `json:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost"`
	FinalPrice  decimal.Decimal `json:"final_price"`
	MarkValue   decimal.Decimal `json:"mark_value"`
	// Priced is false when neither an end-of-range snapshot nor a
	// trade record could supply a price for the asset.
	Priced bool `json:"priced"`
}

// Summary is the read-only projection produced at the end of a run.
// Building it mutates neither the portfolio nor the ledger.
type Summary struct {
	RunID        string          `json:"run_id"`
	StartDate    string          `json:"start_date"`
	EndDate      string          `json:"end_date"`
	InitialFunds decimal.Decimal `json:"initial_funds"`
	FinalCash    decimal.Decimal `json:"final_cash"`
	Assets       []AssetSummary  `json:"assets"`
	// TotalValue and ReturnPct are only meaningful when Valued is
	// true; an unpriceable portfolio is reported as unavailable, not
	// as zero.
	TotalValue decimal.Decimal `json:"total_value"`
	ReturnPct  decimal.Decimal `json:"return_pct"`
	Valued     bool            `json:"valued"`
	BuyCount   int             `json:"buy_count"`
	SellCount  int             `json:"sell_count"`
}

// summarize marks final holdings to the last available prices. The
// end-of-range snapshot wins; an asset it does not cover falls back to
// the most recent trade record touching that asset.
func (r *Runner) summarize(startDate, endDate string) *Summary {
	endPrices := map[string]decimal.Decimal{}
	if snap, ok := r.source.Snapshot(endDate); ok {
		for sym, price := range snap.Prices {
			endPrices[sym] = price
		}
	}

	s := &Summary{
		RunID:        r.runID,
		StartDate:    startDate,
		EndDate:      endDate,
		InitialFunds: r.initialFunds,
		FinalCash:    r.portfolio.Cash,
		Valued:       true,
	}

	total := r.portfolio.Cash
	for _, sym := range r.portfolio.Symbols() {
		h := r.portfolio.Holding(sym)
		as := AssetSummary{
			Symbol:      sym,
			Quantity:    h.Quantity,
			AverageCost: h.AverageCost,
		}

		price, ok := endPrices[sym]
		if !ok {
			price, ok = r.lastTradePrice(sym)
		}
		if ok {
			as.Priced = true
			as.FinalPrice = price
			as.MarkValue = h.Quantity.Mul(price)
			total = total.Add(as.MarkValue)
		} else if h.Quantity.IsPositive() {
			// A held asset without any price makes the total
			// unavailable.
			s.Valued = false
		}
		s.Assets = append(s.Assets, as)
	}

	if s.Valued {
		s.TotalValue = total
		s.ReturnPct = total.Div(r.initialFunds).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100))
	}

	for _, rec := range r.ledger {
		switch rec.TradeDirection() {
		case types.DirectionBuy:
			s.BuyCount++
		case types.DirectionSell:
			s.SellCount++
		}
	}
	return s
}

// lastTradePrice scans the ledger backwards for the most recent fill
// touching symbol.
func (r *Runner) lastTradePrice(symbol string) (decimal.Decimal, bool) {
	for i := len(r.ledger) - 1; i >= 0; i-- {
		for _, fill := range r.ledger[i].TradeFills() {
			if fill.Symbol == symbol {
				return fill.Price, true
			}
		}
	}
	return decimal.Decimal{}, false
}
