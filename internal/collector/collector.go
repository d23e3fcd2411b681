// Package collector feeds the market data store: spot prices from the
// exchange on a fixed interval, the daily fear & greed index, and
// historical backfills that resume from the newest stored tick.
package collector

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"crypto-dca-bot/internal/logger"
)

// Store is the slice of the market data store the collector writes to.
type Store interface {
	InsertPriceTick(ctx context.Context, symbol string, price decimal.Decimal, ts time.Time) error
	LatestPriceTimestamp(ctx context.Context, symbol string) (time.Time, bool, error)
	UpsertSentiment(ctx context.Context, date string, value int, classification string) error
}

// Collector ties the price and sentiment sources to the store.
type Collector struct {
	store      Store
	prices     PriceSource
	sentiment  SentimentSource
	symbols    []string
	maxRetries int
	klineLimit int
}

// New wires a collector for the tracked symbols.
func New(store Store, prices PriceSource, sentiment SentimentSource, symbols []string, maxRetries, klineLimit int) *Collector {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if klineLimit <= 0 {
		klineLimit = 500
	}
	return &Collector{
		store:      store,
		prices:     prices,
		sentiment:  sentiment,
		symbols:    symbols,
		maxRetries: maxRetries,
		klineLimit: klineLimit,
	}
}

// CollectPrices fetches and stores the current spot price for every
// tracked symbol. One failing symbol does not block the others.
func (c *Collector) CollectPrices(ctx context.Context) {
	now := time.Now().UTC()
	for _, symbol := range c.symbols {
		var price decimal.Decimal
		err := c.withRetry(ctx, func() error {
			var err error
			price, err = c.prices.LatestPrice(ctx, symbol)
			return err
		})
		if err != nil {
			logger.ErrorWithErr(ctx, "Price fetch failed", err, "symbol", symbol)
			continue
		}
		if err := c.store.InsertPriceTick(ctx, symbol, price, now); err != nil {
			logger.ErrorWithErr(ctx, "Price persist failed", err, "symbol", symbol)
			continue
		}
		logger.Debug(ctx, "Price stored", "symbol", symbol, "price", price.StringFixed(2))
	}
}

// CollectSentiment fetches the latest fear & greed index and stores it
// under its publication date.
func (c *Collector) CollectSentiment(ctx context.Context) {
	var point SentimentPoint
	err := c.withRetry(ctx, func() error {
		var err error
		point, err = c.sentiment.Latest(ctx)
		return err
	})
	if err != nil {
		logger.ErrorWithErr(ctx, "Sentiment fetch failed", err)
		return
	}
	if err := c.store.UpsertSentiment(ctx, point.Date, point.Value, point.Classification); err != nil {
		logger.ErrorWithErr(ctx, "Sentiment persist failed", err, "date", point.Date)
		return
	}
	logger.Info(ctx, "Sentiment stored", "date", point.Date, "value", point.Value, "classification", point.Classification)
}

// BackfillPrices pages hourly candles from the newest stored tick (or
// the given start when the store is empty) up to now, one page of
// klineLimit candles at a time.
func (c *Collector) BackfillPrices(ctx context.Context, fallbackStart time.Time) error {
	now := time.Now().UTC()
	for _, symbol := range c.symbols {
		start := fallbackStart
		if latest, ok, err := c.store.LatestPriceTimestamp(ctx, symbol); err != nil {
			return err
		} else if ok {
			start = latest.Add(time.Hour)
		}

		total := 0
		for start.Before(now) {
			var klines []Kline
			err := c.withRetry(ctx, func() error {
				var err error
				klines, err = c.prices.HourlyKlines(ctx, symbol, start, now, c.klineLimit)
				return err
			})
			if err != nil {
				return err
			}
			if len(klines) == 0 {
				break
			}
			for _, k := range klines {
				if err := c.store.InsertPriceTick(ctx, symbol, k.Close, k.OpenTime); err != nil {
					return err
				}
			}
			total += len(klines)
			start = klines[len(klines)-1].OpenTime.Add(time.Hour)
			if len(klines) < c.klineLimit {
				break
			}
		}
		logger.Info(ctx, "Price backfill complete", "symbol", symbol, "candles", total)
	}
	return nil
}

// BackfillSentiment loads the full published fear & greed history into
// the store. The upstream API treats limit=0 as "everything".
func (c *Collector) BackfillSentiment(ctx context.Context) error {
	var points []SentimentPoint
	err := c.withRetry(ctx, func() error {
		var err error
		points, err = c.sentiment.History(ctx, 0)
		return err
	})
	if err != nil {
		return err
	}
	for _, point := range points {
		if err := c.store.UpsertSentiment(ctx, point.Date, point.Value, point.Classification); err != nil {
			return err
		}
	}
	logger.Info(ctx, "Sentiment backfill complete", "days", len(points))
	return nil
}

// withRetry runs fn up to maxRetries times with a linear pause between
// attempts.
func (c *Collector) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt < c.maxRetries {
			logger.Warn(ctx, "Fetch attempt failed, retrying",
				"attempt", attempt,
				"max_retries", c.maxRetries,
				"error", err,
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}
	return err
}
