// Package tradelog provides the ledger sinks a simulation run appends
// executed trade records to: a JSON-lines journal on disk, a CSV
// export and the SQLite trade_records table.
package tradelog

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"crypto-dca-bot/internal/types"
)

var mu sync.Mutex

// line is the flattened journal form of a trade record.
type line struct {
	Date         string            `json:"date"`
	Direction    types.Direction   `json:"direction"`
	Fills        []types.TradeFill `json:"fills"`
	TotalValue   string            `json:"total_value"`
	Cash         string            `json:"cash"`
	AccountTotal string            `json:"account_total"`
	Note         string            `json:"note"`
}

// Journal appends trade records as JSON lines, one file per run.
type Journal struct {
	dir   string
	runID string
}

// NewJournal creates a journal writing to dir/<runID>.jsonl. The
// TRADELOG_DIR environment variable overrides dir when set.
func NewJournal(dir, runID string) *Journal {
	if v := os.Getenv("TRADELOG_DIR"); v != "" {
		dir = v
	}
	return &Journal{dir: dir, runID: runID}
}

func (j *Journal) path() string {
	return filepath.Join(j.dir, j.runID+".jsonl")
}

// Append writes one record. Errors are returned to the caller, which
// logs and continues; losing a journal line never aborts a run.
func (j *Journal) Append(ctx context.Context, rec types.TradeRecord) error {
	mu.Lock()
	defer mu.Unlock()

	p := j.path()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	outcome := rec.Outcome()
	b, err := json.Marshal(line{
		Date:         rec.TradeDate(),
		Direction:    rec.TradeDirection(),
		Fills:        rec.TradeFills(),
		TotalValue:   rec.TotalValue().String(),
		Cash:         outcome.Cash.String(),
		AccountTotal: outcome.AccountTotal.String(),
		Note:         outcome.Note,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// CompressOlder gzips journal files older than retentionDays and
// removes the originals. Zero or negative retention disables it.
func CompressOlder(dir string, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	if v := os.Getenv("TRADELOG_DIR"); v != "" {
		dir = v
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".jsonl" {
			return nil
		}
		info, er := os.Stat(p)
		if er != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		if _, e2 := os.Stat(gz); e2 == nil {
			_ = os.Remove(p)
			return nil
		}
		in, e3 := os.Open(p)
		if e3 != nil {
			return nil
		}
		defer in.Close()
		out, e4 := os.OpenFile(gz, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if e4 != nil {
			return nil
		}
		gw := gzip.NewWriter(out)
		_, copyErr := io.Copy(gw, in)
		closeErr := gw.Close()
		outErr := out.Close()
		if copyErr == nil && closeErr == nil && outErr == nil {
			_ = os.Remove(p)
		}
		return nil
	})
}
