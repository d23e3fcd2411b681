package collector

import (
	"context"

	"github.com/shopspring/decimal"

	"crypto-dca-bot/internal/sim"
)

// GapReport lists the calendar days of a range that cannot feed the
// simulation: days without a sentiment value and days missing a price
// per symbol.
type GapReport struct {
	StartDate        string
	EndDate          string
	DaysChecked      int
	MissingSentiment []string
	MissingPrices    map[string][]string // symbol -> days
}

// Complete reports whether the range has no gaps at all.
func (g *GapReport) Complete() bool {
	if len(g.MissingSentiment) > 0 {
		return false
	}
	for _, days := range g.MissingPrices {
		if len(days) > 0 {
			return false
		}
	}
	return true
}

// GapStore is the read side needed for gap checking.
type GapStore interface {
	DailyAveragePrice(ctx context.Context, symbol, date string) (decimal.Decimal, bool, error)
	SentimentIndex(ctx context.Context, date string) (int, bool, error)
}

// CheckGaps audits every day of the range against the store. Missing
// days are reported, never treated as errors; the simulation skips
// them anyway.
func CheckGaps(ctx context.Context, store GapStore, symbols []string, startDate, endDate string) (*GapReport, error) {
	report := &GapReport{
		StartDate:     startDate,
		EndDate:       endDate,
		MissingPrices: make(map[string][]string, len(symbols)),
	}

	err := sim.WalkDays(startDate, endDate, func(date string) error {
		report.DaysChecked++
		if _, ok, err := store.SentimentIndex(ctx, date); err != nil {
			return err
		} else if !ok {
			report.MissingSentiment = append(report.MissingSentiment, date)
		}
		for _, symbol := range symbols {
			if _, ok, err := store.DailyAveragePrice(ctx, symbol, date); err != nil {
				return err
			} else if !ok {
				report.MissingPrices[symbol] = append(report.MissingPrices[symbol], date)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}
