package sim

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"crypto-dca-bot/internal/logger"
	"crypto-dca-bot/internal/strategy"
	"crypto-dca-bot/internal/types"
)

// SnapshotSource supplies the daily market inputs for the simulated
// range. Callers preload the whole range up front so the day loop does
// no per-day I/O.
type SnapshotSource interface {
	// Snapshot returns the market inputs for a calendar day. ok is
	// false when no data at all exists for the day.
	Snapshot(date string) (types.DailySnapshot, bool)
}

// LedgerSink receives executed trade records. Append failures are
// logged and non-fatal; the in-memory ledger stays authoritative.
type LedgerSink interface {
	Append(ctx context.Context, rec types.TradeRecord) error
}

// Runner replays the strategy over a date range, one decision point
// per calendar day, enforcing at most one buy and one sell per day.
// A Runner owns its Portfolio exclusively and is not reusable across
// concurrent runs.
type Runner struct {
	runID     string
	strat     *strategy.Strategy
	portfolio *Portfolio
	source    SnapshotSource
	sinks     []LedgerSink

	engine   *decisionEngine
	executor *tradeExecutor

	initialFunds decimal.Decimal
	ledger       []types.TradeRecord
}

// NewRunner wires a simulation run. initialFunds must be positive.
func NewRunner(strat *strategy.Strategy, initialFunds decimal.Decimal, source SnapshotSource, sinks ...LedgerSink) (*Runner, error) {
	if !initialFunds.IsPositive() {
		return nil, fmt.Errorf("sim: initial funds must be positive, got %s", initialFunds)
	}
	return &Runner{
		runID:        uuid.NewString(),
		strat:        strat,
		portfolio:    NewPortfolio(initialFunds, strat.Assets()),
		source:       source,
		sinks:        sinks,
		engine:       newDecisionEngine(strat),
		executor:     &tradeExecutor{},
		initialFunds: initialFunds,
	}, nil
}

// RunID identifies this run in summaries and persisted ledger rows.
func (r *Runner) RunID() string { return r.runID }

// AttachSinks adds ledger sinks after construction; sinks that need
// the run ID (the SQLite sink tags rows with it) are wired this way.
func (r *Runner) AttachSinks(sinks ...LedgerSink) {
	r.sinks = append(r.sinks, sinks...)
}

// Ledger returns the accumulated trade records in chronological order.
func (r *Runner) Ledger() []types.TradeRecord {
	return append([]types.TradeRecord(nil), r.ledger...)
}

// Run walks every calendar day from start to end inclusive. Days with
// missing data are skipped silently; only a bad date range is an
// error. The returned summary marks final holdings to the last
// available prices.
func (r *Runner) Run(ctx context.Context, startDate, endDate string) (*Summary, error) {
	start, err := types.ParseDay(startDate)
	if err != nil {
		return nil, fmt.Errorf("sim: invalid start date: %w", err)
	}
	end, err := types.ParseDay(endDate)
	if err != nil {
		return nil, fmt.Errorf("sim: invalid end date: %w", err)
	}
	if start.After(end) {
		return nil, fmt.Errorf("sim: start date %s after end date %s", startDate, endDate)
	}

	ctx, span := logger.StartSpan(ctx, "simulation.run")
	defer span.End()

	logger.Info(ctx, "Simulation started",
		"run_id", r.runID,
		"start", startDate,
		"end", endDate,
		"initial_funds", r.initialFunds.StringFixed(2),
		"assets", r.strat.Assets(),
	)

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.step(ctx, types.FormatDay(day))
	}

	summary := r.summarize(startDate, endDate)
	logger.Info(ctx, "Simulation finished",
		"run_id", r.runID,
		"trades", len(r.ledger),
		"final_cash", r.portfolio.Cash.StringFixed(2),
	)
	return summary, nil
}

// step processes a single calendar day.
func (r *Runner) step(ctx context.Context, date string) {
	snap, ok := r.source.Snapshot(date)
	if !ok {
		return
	}

	intent := r.engine.decide(ctx, snap)
	if intent == nil {
		return
	}

	switch intent.Direction {
	case types.DirectionBuy:
		// One buy per calendar day, even if the engine fires again.
		if r.portfolio.LastBuyDate == date {
			return
		}
		if rec := r.executor.executeBuy(ctx, r.portfolio, date, intent, snap.Prices); rec != nil {
			r.portfolio.LastBuyDate = date
			r.append(ctx, rec)
		}
	case types.DirectionSell:
		if r.portfolio.LastSellDate == date {
			return
		}
		if rec := r.executor.executeSell(ctx, r.portfolio, date, intent, snap.Prices); rec != nil {
			r.portfolio.LastSellDate = date
			r.append(ctx, rec)
		}
	}
}

// append records the trade in memory and fans it out to the sinks.
// Sink failures are logged and swallowed; losing a persisted row must
// not abort a multi-year replay.
func (r *Runner) append(ctx context.Context, rec types.TradeRecord) {
	r.ledger = append(r.ledger, rec)
	for _, sink := range r.sinks {
		if err := sink.Append(ctx, rec); err != nil {
			logger.ErrorWithErr(ctx, "Ledger sink append failed", err,
				"run_id", r.runID,
				"date", rec.TradeDate(),
				"direction", string(rec.TradeDirection()),
			)
		}
	}
}

// WalkDays is a small helper for callers that need to enumerate the
// same day sequence the Runner uses (gap checks, preloading).
func WalkDays(startDate, endDate string, fn func(date string) error) error {
	start, err := types.ParseDay(startDate)
	if err != nil {
		return err
	}
	end, err := types.ParseDay(endDate)
	if err != nil {
		return err
	}
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := fn(types.FormatDay(day)); err != nil {
			return err
		}
	}
	return nil
}
