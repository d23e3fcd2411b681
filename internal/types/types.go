package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical calendar-day format used across stores,
// ledgers and the simulation loop. Dates are naive local days.
const DateLayout = "2006-01-02"

// Direction of an executed trade.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// DailySnapshot is one calendar day of market inputs: the daily average
// price per tracked symbol and the sentiment (fear & greed) index.
// A missing sentiment or a missing required price makes the day a skip.
type DailySnapshot struct {
	Date         string
	Prices       map[string]decimal.Decimal
	Sentiment    int
	HasSentiment bool
}

// Price returns the day's average price for symbol.
func (s DailySnapshot) Price(symbol string) (decimal.Decimal, bool) {
	p, ok := s.Prices[symbol]
	return p, ok
}

// TradeFill is the per-asset slice of an executed trade event.
type TradeFill struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Value    decimal.Decimal `json:"value"`
	Price    decimal.Decimal `json:"price"`
}

// HoldingSnapshot is the post-trade position in one asset.
type HoldingSnapshot struct {
	Quantity    decimal.Decimal `json:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost"`
}

// TradeOutcome is the shared tail of buy and sell records: the account
// as it stands immediately after the trade.
type TradeOutcome struct {
	Holdings     map[string]HoldingSnapshot `json:"holdings"`
	Cash         decimal.Decimal            `json:"cash"`
	AccountTotal decimal.Decimal            `json:"account_total"`
	Note         string                     `json:"note"`
}

// TradeRecord is an executed, append-only ledger entry. Concrete types
// are BuyRecord and SellRecord; records are never mutated after creation.
type TradeRecord interface {
	TradeDate() string
	TradeDirection() Direction
	TradeFills() []TradeFill
	Outcome() TradeOutcome
	// TotalValue is the summed USD value of all fills in the event.
	TotalValue() decimal.Decimal
}

// BuyRecord is one buy event, possibly bundling several assets bought
// on the same date.
type BuyRecord struct {
	Date  string          `json:"date"`
	Fills []TradeFill     `json:"fills"`
	Spent decimal.Decimal `json:"spent"`
	TradeOutcome
}

func (r *BuyRecord) TradeDate() string           { return r.Date }
func (r *BuyRecord) TradeDirection() Direction   { return DirectionBuy }
func (r *BuyRecord) TradeFills() []TradeFill     { return r.Fills }
func (r *BuyRecord) Outcome() TradeOutcome       { return r.TradeOutcome }
func (r *BuyRecord) TotalValue() decimal.Decimal { return r.Spent }

// SellRecord is one sell event, possibly bundling several assets sold
// on the same date.
type SellRecord struct {
	Date     string          `json:"date"`
	Fills    []TradeFill     `json:"fills"`
	Proceeds decimal.Decimal `json:"proceeds"`
	TradeOutcome
}

func (r *SellRecord) TradeDate() string           { return r.Date }
func (r *SellRecord) TradeDirection() Direction   { return DirectionSell }
func (r *SellRecord) TradeFills() []TradeFill     { return r.Fills }
func (r *SellRecord) Outcome() TradeOutcome       { return r.TradeOutcome }
func (r *SellRecord) TotalValue() decimal.Decimal { return r.Proceeds }

var (
	_ TradeRecord = (*BuyRecord)(nil)
	_ TradeRecord = (*SellRecord)(nil)
)

// ParseDay parses a calendar day in DateLayout.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// FormatDay formats t as a calendar day in DateLayout.
func FormatDay(t time.Time) string {
	return t.Format(DateLayout)
}
