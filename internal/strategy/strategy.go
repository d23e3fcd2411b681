// Package strategy holds the immutable threshold tables that drive
// buy and sell decisions. Rules are validated and sorted once at
// construction; lookups afterwards are a single ordered scan.
package strategy

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// BuyRule maps a sentiment ceiling to fixed USD purchase amounts per
// asset. The rule applies when the day's sentiment index is strictly
// below Ceiling.
type BuyRule struct {
	Ceiling int
	Amounts map[string]decimal.Decimal
}

// SellRule maps a sentiment floor to a fraction of holdings to sell
// per asset. The rule applies when the day's sentiment index is at or
// above Floor.
type SellRule struct {
	Floor     int
	Fractions map[string]decimal.Decimal
}

// Strategy is a read-only pair of ordered rule tables. Buy rules are
// kept ascending by ceiling, sell rules descending by floor.
type Strategy struct {
	buyRules  []BuyRule
	sellRules []SellRule
	assets    []string
}

// New validates and orders the threshold tables. Every rule in both
// tables must cover the same asset set, sell fractions must lie in
// [0,1] and buy amounts must be non-negative. Any violation is a
// configuration error and fatal at startup.
func New(buy []BuyRule, sell []SellRule) (*Strategy, error) {
	if len(buy) == 0 {
		return nil, fmt.Errorf("strategy: no buy rules configured")
	}
	if len(sell) == 0 {
		return nil, fmt.Errorf("strategy: no sell rules configured")
	}

	assets := assetSet(buy[0].Amounts)

	for i, r := range buy {
		if err := sameAssets(assets, assetSet(r.Amounts)); err != nil {
			return nil, fmt.Errorf("strategy: buy rule %d (ceiling %d): %w", i, r.Ceiling, err)
		}
		for sym, amt := range r.Amounts {
			if amt.IsNegative() {
				return nil, fmt.Errorf("strategy: buy rule %d (ceiling %d): negative amount %s for %s", i, r.Ceiling, amt, sym)
			}
		}
	}
	for i, r := range sell {
		if err := sameAssets(assets, assetSet(r.Fractions)); err != nil {
			return nil, fmt.Errorf("strategy: sell rule %d (floor %d): %w", i, r.Floor, err)
		}
		for sym, f := range r.Fractions {
			if f.IsNegative() || f.GreaterThan(decimal.NewFromInt(1)) {
				return nil, fmt.Errorf("strategy: sell rule %d (floor %d): fraction %s for %s outside [0,1]", i, r.Floor, f, sym)
			}
		}
	}

	s := &Strategy{
		buyRules:  append([]BuyRule(nil), buy...),
		sellRules: append([]SellRule(nil), sell...),
		assets:    assets,
	}
	sort.SliceStable(s.buyRules, func(i, j int) bool { return s.buyRules[i].Ceiling < s.buyRules[j].Ceiling })
	sort.SliceStable(s.sellRules, func(i, j int) bool { return s.sellRules[i].Floor > s.sellRules[j].Floor })
	return s, nil
}

// Assets returns the common asset set of all rules, sorted.
func (s *Strategy) Assets() []string {
	return append([]string(nil), s.assets...)
}

// MaxBuyThreshold is the highest buy ceiling; any sentiment index at
// or above it never triggers a buy.
func (s *Strategy) MaxBuyThreshold() int {
	return s.buyRules[len(s.buyRules)-1].Ceiling
}

// MinSellThreshold is the lowest sell floor; any sentiment index below
// it never triggers a sell.
func (s *Strategy) MinSellThreshold() int {
	return s.sellRules[len(s.sellRules)-1].Floor
}

// BuyAmounts returns the purchase amounts of the first buy rule whose
// ceiling is strictly above the sentiment index. An index exactly at a
// ceiling falls through to the next higher rule.
func (s *Strategy) BuyAmounts(sentiment int) (map[string]decimal.Decimal, bool) {
	for _, r := range s.buyRules {
		if sentiment < r.Ceiling {
			return r.Amounts, true
		}
	}
	return nil, false
}

// SellFractions returns the sell fractions of the highest floor not
// exceeding the sentiment index. An index exactly at a floor triggers
// that floor's rule.
func (s *Strategy) SellFractions(sentiment int) (map[string]decimal.Decimal, bool) {
	for _, r := range s.sellRules {
		if sentiment >= r.Floor {
			return r.Fractions, true
		}
	}
	return nil, false
}

func assetSet(m map[string]decimal.Decimal) []string {
	out := make([]string, 0, len(m))
	for sym := range m {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func sameAssets(want, got []string) error {
	if len(want) != len(got) {
		return fmt.Errorf("asset set %v does not match %v", got, want)
	}
	for i := range want {
		if want[i] != got[i] {
			return fmt.Errorf("asset set %v does not match %v", got, want)
		}
	}
	return nil
}
