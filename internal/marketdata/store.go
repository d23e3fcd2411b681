// Package marketdata persists price ticks, the daily fear & greed
// index and executed trade records in a local SQLite database, and
// serves the simulation with a preloaded in-memory range so the day
// loop never touches the database.
package marketdata

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"crypto-dca-bot/internal/types"
)

// Store wraps the SQLite database holding collected market data and
// the persisted trade ledger.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("marketdata: open %s: %w", path, err)
	}
	// The collector and a backtest may share the file; WAL keeps
	// readers unblocked.
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000; PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("marketdata: pragma: %w", err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS currencies (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS price_data (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			price REAL NOT NULL,
			timestamp DATETIME NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_data_symbol_ts ON price_data(symbol, timestamp)`,
		`CREATE TABLE IF NOT EXISTS fear_greed_index (
			date TEXT PRIMARY KEY,
			value INTEGER NOT NULL,
			classification TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS trade_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			trade_date TEXT NOT NULL,
			trade_type TEXT NOT NULL,
			total_value TEXT NOT NULL,
			cash TEXT NOT NULL,
			account_total TEXT NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_records_run ON trade_records(run_id, trade_date)`,
		`CREATE TABLE IF NOT EXISTS trade_fills (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			record_id INTEGER NOT NULL REFERENCES trade_records(id),
			symbol TEXT NOT NULL,
			quantity TEXT NOT NULL,
			value TEXT NOT NULL,
			price TEXT NOT NULL,
			holding_quantity TEXT NOT NULL,
			holding_average_cost TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("marketdata: schema: %w", err)
		}
	}
	return nil
}

// SeedCurrencies inserts the tracked currencies if missing.
func (s *Store) SeedCurrencies(ctx context.Context, names map[string]string) error {
	for symbol, name := range names {
		if _, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO currencies (symbol, name) VALUES (?, ?)`, symbol, name); err != nil {
			return fmt.Errorf("marketdata: seed %s: %w", symbol, err)
		}
	}
	return nil
}

// InsertPriceTick stores one observed price for a symbol.
func (s *Store) InsertPriceTick(ctx context.Context, symbol string, price decimal.Decimal, ts time.Time) error {
	p, _ := price.Float64()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO price_data (symbol, price, timestamp) VALUES (?, ?, ?)`,
		symbol, p, ts.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return fmt.Errorf("marketdata: insert price %s: %w", symbol, err)
	}
	return nil
}

// LatestPriceTimestamp returns the newest stored tick time for symbol,
// used by the collector to resume backfills.
func (s *Store) LatestPriceTimestamp(ctx context.Context, symbol string) (time.Time, bool, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(timestamp) FROM price_data WHERE symbol = ?`, symbol).Scan(&raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("marketdata: latest timestamp %s: %w", symbol, err)
	}
	if !raw.Valid || raw.String == "" {
		return time.Time{}, false, nil
	}
	ts, err := time.Parse("2006-01-02 15:04:05", raw.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("marketdata: parse timestamp %q: %w", raw.String, err)
	}
	return ts, true, nil
}

// UpsertSentiment stores the fear & greed index for a calendar day.
func (s *Store) UpsertSentiment(ctx context.Context, date string, value int, classification string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fear_greed_index (date, value, classification) VALUES (?, ?, ?)
		 ON CONFLICT(date) DO UPDATE SET value = excluded.value, classification = excluded.classification`,
		date, value, classification)
	if err != nil {
		return fmt.Errorf("marketdata: upsert sentiment %s: %w", date, err)
	}
	return nil
}

// DailyAveragePrice averages all ticks of a symbol on one calendar
// day. ok is false when the day has no ticks.
func (s *Store) DailyAveragePrice(ctx context.Context, symbol, date string) (decimal.Decimal, bool, error) {
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT AVG(price) FROM price_data WHERE symbol = ? AND DATE(timestamp) = ?`,
		symbol, date).Scan(&avg)
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("marketdata: daily average %s %s: %w", symbol, date, err)
	}
	if !avg.Valid {
		return decimal.Decimal{}, false, nil
	}
	return decimal.NewFromFloat(avg.Float64), true, nil
}

// SentimentIndex returns the fear & greed index for a calendar day.
func (s *Store) SentimentIndex(ctx context.Context, date string) (int, bool, error) {
	var value int
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM fear_greed_index WHERE date = ?`, date).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("marketdata: sentiment %s: %w", date, err)
	}
	return value, true, nil
}

// LoadRange preloads daily average prices and sentiment values for the
// whole date range into memory in one batch read, so the simulation
// loop never queries the database.
func (s *Store) LoadRange(ctx context.Context, symbols []string, startDate, endDate string) (*Range, error) {
	r := NewRange()

	for _, symbol := range symbols {
		rows, err := s.db.QueryContext(ctx,
			`SELECT DATE(timestamp) AS day, AVG(price)
			 FROM price_data
			 WHERE symbol = ? AND DATE(timestamp) BETWEEN ? AND ?
			 GROUP BY DATE(timestamp)`,
			symbol, startDate, endDate)
		if err != nil {
			return nil, fmt.Errorf("marketdata: load prices %s: %w", symbol, err)
		}
		for rows.Next() {
			var day string
			var avg float64
			if err := rows.Scan(&day, &avg); err != nil {
				rows.Close()
				return nil, fmt.Errorf("marketdata: scan price row: %w", err)
			}
			r.SetPrice(symbol, day, decimal.NewFromFloat(avg))
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("marketdata: price rows: %w", err)
		}
		rows.Close()
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT date, value FROM fear_greed_index WHERE date BETWEEN ? AND ? ORDER BY date`,
		startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("marketdata: load sentiment: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var day string
		var value int
		if err := rows.Scan(&day, &value); err != nil {
			return nil, fmt.Errorf("marketdata: scan sentiment row: %w", err)
		}
		r.SetSentiment(day, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("marketdata: sentiment rows: %w", err)
	}
	return r, nil
}

// AppendTradeRecord persists one executed trade with its per-asset
// fills. Decimals are stored as text to keep them exact.
func (s *Store) AppendTradeRecord(ctx context.Context, runID string, rec types.TradeRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("marketdata: begin trade record tx: %w", err)
	}
	defer tx.Rollback()

	outcome := rec.Outcome()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO trade_records (run_id, trade_date, trade_type, total_value, cash, account_total, note)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.TradeDate(), string(rec.TradeDirection()),
		rec.TotalValue().String(), outcome.Cash.String(), outcome.AccountTotal.String(), outcome.Note)
	if err != nil {
		return fmt.Errorf("marketdata: insert trade record: %w", err)
	}
	recordID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("marketdata: trade record id: %w", err)
	}

	for _, fill := range rec.TradeFills() {
		holding := outcome.Holdings[fill.Symbol]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO trade_fills (record_id, symbol, quantity, value, price, holding_quantity, holding_average_cost)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			recordID, fill.Symbol, fill.Quantity.String(), fill.Value.String(), fill.Price.String(),
			holding.Quantity.String(), holding.AverageCost.String()); err != nil {
			return fmt.Errorf("marketdata: insert trade fill %s: %w", fill.Symbol, err)
		}
	}
	return tx.Commit()
}

// TradeCount returns the number of persisted records for a run.
func (s *Store) TradeCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trade_records WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("marketdata: trade count: %w", err)
	}
	return n, nil
}
