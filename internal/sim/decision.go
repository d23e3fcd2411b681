package sim

import (
	"context"

	"github.com/shopspring/decimal"

	"crypto-dca-bot/internal/logger"
	"crypto-dca-bot/internal/strategy"
	"crypto-dca-bot/internal/types"
)

// Intent is the output of the decision engine for one day: the trade
// direction plus either the USD amounts to buy or the fractions of
// holdings to sell, keyed by asset symbol.
type Intent struct {
	Direction types.Direction
	Amounts   map[string]decimal.Decimal // set for buys
	Fractions map[string]decimal.Decimal // set for sells
	Sentiment int
}

// decisionEngine maps a daily snapshot plus the current portfolio to a
// trade intent, or to nothing at all. Buy and sell are mutually
// exclusive on any given day; the neutral zone between the highest buy
// ceiling and the lowest sell floor produces no activity.
type decisionEngine struct {
	strat *strategy.Strategy
}

func newDecisionEngine(strat *strategy.Strategy) *decisionEngine {
	return &decisionEngine{strat: strat}
}

// decide returns nil when the day is incomplete (no sentiment, or any
// required asset price missing) or lands in the neutral zone.
func (de *decisionEngine) decide(ctx context.Context, snap types.DailySnapshot) *Intent {
	if !snap.HasSentiment {
		logger.Debug(ctx, "No sentiment index for day, skipping", "date", snap.Date)
		return nil
	}
	for _, sym := range de.strat.Assets() {
		if _, ok := snap.Price(sym); !ok {
			logger.Debug(ctx, "Missing price for day, skipping", "date", snap.Date, "symbol", sym)
			return nil
		}
	}

	if snap.Sentiment < de.strat.MaxBuyThreshold() {
		amounts, ok := de.strat.BuyAmounts(snap.Sentiment)
		if !ok {
			return nil
		}
		return &Intent{Direction: types.DirectionBuy, Amounts: amounts, Sentiment: snap.Sentiment}
	}

	if snap.Sentiment >= de.strat.MinSellThreshold() {
		fractions, ok := de.strat.SellFractions(snap.Sentiment)
		if !ok {
			return nil
		}
		return &Intent{Direction: types.DirectionSell, Fractions: fractions, Sentiment: snap.Sentiment}
	}

	// Neutral zone: no action, no ledger entry.
	return nil
}
