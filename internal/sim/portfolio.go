package sim

import (
	"sort"

	"github.com/shopspring/decimal"

	"crypto-dca-bot/internal/types"
)

// Holding is the current position in one asset. AverageCost is the
// dollar-weighted average price paid for the quantity still held; it
// changes only on buys and is meaningful only while Quantity > 0.
type Holding struct {
	Quantity    decimal.Decimal
	AverageCost decimal.Decimal
}

// Portfolio is the mutable account state of a single simulation run.
// It is owned by exactly one Runner and mutated only by the trade
// executor. Cash never goes negative; a trade that would overdraw is
// rejected instead of executed.
type Portfolio struct {
	Cash         decimal.Decimal
	Holdings     map[string]*Holding
	LastBuyDate  string
	LastSellDate string
}

// NewPortfolio creates a fresh portfolio holding only cash.
func NewPortfolio(initialCash decimal.Decimal, assets []string) *Portfolio {
	p := &Portfolio{
		Cash:     initialCash,
		Holdings: make(map[string]*Holding, len(assets)),
	}
	for _, sym := range assets {
		p.Holdings[sym] = &Holding{}
	}
	return p
}

// Holding returns the position for symbol, creating an empty one on
// first access.
func (p *Portfolio) Holding(symbol string) *Holding {
	h := p.Holdings[symbol]
	if h == nil {
		h = &Holding{}
		p.Holdings[symbol] = h
	}
	return h
}

// HasHoldings reports whether any asset quantity is positive.
func (p *Portfolio) HasHoldings() bool {
	for _, h := range p.Holdings {
		if h.Quantity.IsPositive() {
			return true
		}
	}
	return false
}

// AccountTotal marks every holding to the given prices and adds cash.
func (p *Portfolio) AccountTotal(prices map[string]decimal.Decimal) decimal.Decimal {
	total := p.Cash
	for sym, h := range p.Holdings {
		if price, ok := prices[sym]; ok {
			total = total.Add(h.Quantity.Mul(price))
		}
	}
	return total
}

// Snapshot captures the current holdings for a ledger record.
func (p *Portfolio) Snapshot() map[string]types.HoldingSnapshot {
	out := make(map[string]types.HoldingSnapshot, len(p.Holdings))
	for sym, h := range p.Holdings {
		out[sym] = types.HoldingSnapshot{Quantity: h.Quantity, AverageCost: h.AverageCost}
	}
	return out
}

// Symbols returns the tracked asset symbols, sorted for deterministic
// iteration.
func (p *Portfolio) Symbols() []string {
	out := make([]string, 0, len(p.Holdings))
	for sym := range p.Holdings {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
