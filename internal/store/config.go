package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"crypto-dca-bot/internal/strategy"
)

// ThresholdRow is one strategy threshold as configured: the "fng" key
// carries the sentiment boundary, every other key is an asset symbol
// mapped to a buy amount in USD or a sell fraction.
// Example: {fng: 10, btc: 500, eth: 300}.
type ThresholdRow map[string]float64

// Fng returns the sentiment boundary of the row.
func (t ThresholdRow) Fng() int { return int(t["fng"]) }

// Values returns the per-asset values with symbols upper-cased.
func (t ThresholdRow) Values() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(t))
	for k, v := range t {
		if strings.EqualFold(k, "fng") {
			continue
		}
		out[strings.ToUpper(k)] = decimal.NewFromFloat(v)
	}
	return out
}

type Config struct {
	DatabasePath  string            `yaml:"database_path"`
	Symbols       []string          `yaml:"symbols"`
	CurrencyNames map[string]string `yaml:"currency_names"`

	Collector struct {
		PollSeconds   int    `yaml:"poll_seconds"`
		QuoteAsset    string `yaml:"quote_asset"`
		SentimentURL  string `yaml:"sentiment_url"`
		MaxRetries    int    `yaml:"max_retries"`
		KlineLimit    int    `yaml:"kline_limit"`
		BackfillStart string `yaml:"backfill_start"`
	} `yaml:"collector"`

	Simulation struct {
		InitialFunds   float64        `yaml:"initial_funds"`
		StartDate      string         `yaml:"start_date"`
		EndDate        string         `yaml:"end_date"`
		BuyThresholds  []ThresholdRow `yaml:"buy_thresholds"`
		SellThresholds []ThresholdRow `yaml:"sell_thresholds"`
	} `yaml:"simulation"`

	Ledger struct {
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"ledger"`
}

func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return errors.New("database_path cannot be empty")
	}
	if len(c.Symbols) == 0 {
		return errors.New("symbols cannot be empty")
	}
	if c.Collector.PollSeconds <= 0 {
		return fmt.Errorf("collector.poll_seconds must be positive, got %d", c.Collector.PollSeconds)
	}
	if c.Simulation.InitialFunds <= 0 {
		return fmt.Errorf("simulation.initial_funds must be positive, got %.2f", c.Simulation.InitialFunds)
	}
	if len(c.Simulation.BuyThresholds) == 0 || len(c.Simulation.SellThresholds) == 0 {
		return errors.New("simulation needs at least one buy and one sell threshold")
	}
	return nil
}

// Strategy converts the configured threshold rows into the validated,
// ordered strategy tables. Inconsistent asset sets, negative amounts
// or out-of-range fractions surface here as fatal errors.
func (c *Config) Strategy() (*strategy.Strategy, error) {
	buy := make([]strategy.BuyRule, 0, len(c.Simulation.BuyThresholds))
	for _, row := range c.Simulation.BuyThresholds {
		buy = append(buy, strategy.BuyRule{Ceiling: row.Fng(), Amounts: row.Values()})
	}
	sell := make([]strategy.SellRule, 0, len(c.Simulation.SellThresholds))
	for _, row := range c.Simulation.SellThresholds {
		sell = append(sell, strategy.SellRule{Floor: row.Fng(), Fractions: row.Values()})
	}
	return strategy.New(buy, sell)
}

// InitialFunds returns the starting cash as a decimal.
func (c *Config) InitialFunds() decimal.Decimal {
	return decimal.NewFromFloat(c.Simulation.InitialFunds)
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	applyDefaults(&c)
	applyEnvOverrides(&c)
	return &c, nil
}

func applyDefaults(c *Config) {
	if c.DatabasePath == "" {
		c.DatabasePath = "crypto.db"
	}
	if len(c.Symbols) == 0 {
		c.Symbols = []string{"BTC", "ETH"}
	}
	if c.CurrencyNames == nil {
		c.CurrencyNames = map[string]string{"BTC": "Bitcoin", "ETH": "Ethereum"}
	}
	if c.Collector.PollSeconds == 0 {
		c.Collector.PollSeconds = 300
	}
	if c.Collector.QuoteAsset == "" {
		c.Collector.QuoteAsset = "USDT"
	}
	if c.Collector.SentimentURL == "" {
		c.Collector.SentimentURL = "https://api.alternative.me"
	}
	if c.Collector.MaxRetries == 0 {
		c.Collector.MaxRetries = 3
	}
	if c.Collector.KlineLimit == 0 {
		c.Collector.KlineLimit = 500
	}
	if c.Simulation.InitialFunds == 0 {
		c.Simulation.InitialFunds = 10000
	}
	if c.Ledger.Dir == "" {
		c.Ledger.Dir = "ledger"
	}
}

// applyEnvOverrides keeps the historical environment knobs working:
// INITIAL_FUNDS plus BUY_THRESHOLDS / SELL_THRESHOLDS as JSON arrays
// like [{"fng":10,"btc":500,"eth":300}].
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("INITIAL_FUNDS"); v != "" {
		if funds, err := strconv.ParseFloat(v, 64); err == nil {
			c.Simulation.InitialFunds = funds
		}
	}
	if v := os.Getenv("BUY_THRESHOLDS"); v != "" {
		var rows []ThresholdRow
		if err := json.Unmarshal([]byte(v), &rows); err == nil && len(rows) > 0 {
			c.Simulation.BuyThresholds = rows
		}
	}
	if v := os.Getenv("SELL_THRESHOLDS"); v != "" {
		var rows []ThresholdRow
		if err := json.Unmarshal([]byte(v), &rows); err == nil && len(rows) > 0 {
			c.Simulation.SellThresholds = rows
		}
	}
}
