package marketdata

import (
	"github.com/shopspring/decimal"

	"crypto-dca-bot/internal/types"
)

// Range is a preloaded, read-only window of daily prices and sentiment
// values. It satisfies the simulation's snapshot source so the day
// loop runs entirely in memory.
type Range struct {
	prices    map[string]map[string]decimal.Decimal // symbol -> day -> avg price
	sentiment map[string]int                        // day -> index
}

// NewRange returns an empty range. Tests and the collector's gap
// checker build ranges directly; backtests get theirs from
// Store.LoadRange.
func NewRange() *Range {
	return &Range{
		prices:    make(map[string]map[string]decimal.Decimal),
		sentiment: make(map[string]int),
	}
}

// SetPrice records the daily average price of symbol on day.
func (r *Range) SetPrice(symbol, day string, price decimal.Decimal) {
	m := r.prices[symbol]
	if m == nil {
		m = make(map[string]decimal.Decimal)
		r.prices[symbol] = m
	}
	m[day] = price
}

// SetSentiment records the fear & greed index for day.
func (r *Range) SetSentiment(day string, value int) {
	r.sentiment[day] = value
}

// Snapshot assembles the market inputs for one day. ok is false only
// when the day carries neither prices nor a sentiment value; partially
// present days are returned as-is and left to the decision engine to
// skip.
func (r *Range) Snapshot(date string) (types.DailySnapshot, bool) {
	snap := types.DailySnapshot{
		Date:   date,
		Prices: make(map[string]decimal.Decimal),
	}
	for symbol, days := range r.prices {
		if price, ok := days[date]; ok {
			snap.Prices[symbol] = price
		}
	}
	if value, ok := r.sentiment[date]; ok {
		snap.Sentiment = value
		snap.HasSentiment = true
	}
	if len(snap.Prices) == 0 && !snap.HasSentiment {
		return types.DailySnapshot{}, false
	}
	return snap, true
}

// HasPrice reports whether symbol has a price on day.
func (r *Range) HasPrice(symbol, day string) bool {
	_, ok := r.prices[symbol][day]
	return ok
}

// HasSentiment reports whether day has a sentiment value.
func (r *Range) HasSentiment(day string) bool {
	_, ok := r.sentiment[day]
	return ok
}

// Days returns how many distinct days carry a sentiment value.
func (r *Range) Days() int { return len(r.sentiment) }
