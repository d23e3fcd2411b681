package tradelog

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"crypto-dca-bot/internal/types"
)

// WriteCSV exports a run's ledger to dir/<runID>.csv, one row per
// asset fill, and returns the written path. An empty ledger writes
// nothing and returns "".
func WriteCSV(dir, runID string, ledger []types.TradeRecord) (string, error) {
	if len(ledger) == 0 {
		return "", nil
	}
	if v := os.Getenv("TRADELOG_DIR"); v != "" {
		dir = v
	}
	outPath := filepath.Join(dir, runID+".csv")
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	defer w.Flush()

	headers := []string{"date", "direction", "symbol", "quantity", "value", "price", "holding_quantity", "holding_average_cost", "cash", "account_total", "note"}
	if err := w.Write(headers); err != nil {
		return "", err
	}
	for _, rec := range ledger {
		outcome := rec.Outcome()
		for _, fill := range rec.TradeFills() {
			holding := outcome.Holdings[fill.Symbol]
			row := []string{
				rec.TradeDate(),
				string(rec.TradeDirection()),
				fill.Symbol,
				fill.Quantity.StringFixed(8),
				fill.Value.StringFixed(2),
				fill.Price.StringFixed(2),
				holding.Quantity.StringFixed(8),
				holding.AverageCost.StringFixed(2),
				outcome.Cash.StringFixed(2),
				outcome.AccountTotal.StringFixed(2),
				outcome.Note,
			}
			if err := w.Write(row); err != nil {
				return "", err
			}
		}
	}
	w.Flush()
	return outPath, w.Error()
}
