package tradelog

import (
	"context"

	"crypto-dca-bot/internal/marketdata"
	"crypto-dca-bot/internal/types"
)

// StoreSink persists trade records into the SQLite trade_records
// table, tagged with the run they belong to.
type StoreSink struct {
	store *marketdata.Store
	runID string
}

// NewStoreSink binds a store to one simulation run.
func NewStoreSink(store *marketdata.Store, runID string) *StoreSink {
	return &StoreSink{store: store, runID: runID}
}

// Append persists one record.
func (s *StoreSink) Append(ctx context.Context, rec types.TradeRecord) error {
	return s.store.AppendTradeRecord(ctx, s.runID, rec)
}
