package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
)

// Kline is one closed candle from the exchange.
type Kline struct {
	OpenTime time.Time
	Close    decimal.Decimal
}

// PriceSource supplies spot prices and historical candles for a
// tracked symbol.
type PriceSource interface {
	LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	HourlyKlines(ctx context.Context, symbol string, start, end time.Time, limit int) ([]Kline, error)
}

// binanceSource fetches from the Binance spot API. Symbols are quoted
// against the configured quote asset (BTC -> BTCUSDT).
type binanceSource struct {
	client     *binance.Client
	quoteAsset string
}

// NewBinanceSource creates a price source backed by the public Binance
// endpoints; no API key is needed for market data.
func NewBinanceSource(quoteAsset string) PriceSource {
	return &binanceSource{
		client:     binance.NewClient("", ""),
		quoteAsset: quoteAsset,
	}
}

func (b *binanceSource) pair(symbol string) string {
	return symbol + b.quoteAsset
}

func (b *binanceSource) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	prices, err := b.client.NewListPricesService().Symbol(b.pair(symbol)).Do(ctx)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("collector: ticker price %s: %w", symbol, err)
	}
	if len(prices) == 0 {
		return decimal.Decimal{}, fmt.Errorf("collector: no ticker price for %s", symbol)
	}
	price, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("collector: parse price %q for %s: %w", prices[0].Price, symbol, err)
	}
	return price, nil
}

func (b *binanceSource) HourlyKlines(ctx context.Context, symbol string, start, end time.Time, limit int) ([]Kline, error) {
	raw, err := b.client.NewKlinesService().
		Symbol(b.pair(symbol)).
		Interval("1h").
		StartTime(start.UnixMilli()).
		EndTime(end.UnixMilli()).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("collector: klines %s: %w", symbol, err)
	}

	out := make([]Kline, 0, len(raw))
	for _, k := range raw {
		closePrice, err := decimal.NewFromString(k.Close)
		if err != nil {
			return nil, fmt.Errorf("collector: parse kline close %q for %s: %w", k.Close, symbol, err)
		}
		out = append(out, Kline{
			OpenTime: time.UnixMilli(k.OpenTime).UTC(),
			Close:    closePrice,
		})
	}
	return out, nil
}
