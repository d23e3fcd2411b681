package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storedTick struct {
	symbol string
	price  decimal.Decimal
	ts     time.Time
}

type fakeStore struct {
	ticks     []storedTick
	sentiment map[string]int
	latest    map[string]time.Time
	insertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sentiment: make(map[string]int),
		latest:    make(map[string]time.Time),
	}
}

func (f *fakeStore) InsertPriceTick(_ context.Context, symbol string, price decimal.Decimal, ts time.Time) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.ticks = append(f.ticks, storedTick{symbol, price, ts})
	return nil
}

func (f *fakeStore) LatestPriceTimestamp(_ context.Context, symbol string) (time.Time, bool, error) {
	ts, ok := f.latest[symbol]
	return ts, ok, nil
}

func (f *fakeStore) UpsertSentiment(_ context.Context, date string, value int, _ string) error {
	f.sentiment[date] = value
	return nil
}

type fakePriceSource struct {
	prices     map[string]decimal.Decimal
	priceErrs  int // fail this many LatestPrice calls before succeeding
	klinePages [][]Kline
	klineCalls []time.Time // start times requested
}

func (f *fakePriceSource) LatestPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	if f.priceErrs > 0 {
		f.priceErrs--
		return decimal.Decimal{}, errors.New("exchange unavailable")
	}
	price, ok := f.prices[symbol]
	if !ok {
		return decimal.Decimal{}, errors.New("unknown symbol")
	}
	return price, nil
}

func (f *fakePriceSource) HourlyKlines(_ context.Context, _ string, start, _ time.Time, _ int) ([]Kline, error) {
	f.klineCalls = append(f.klineCalls, start)
	if len(f.klinePages) == 0 {
		return nil, nil
	}
	page := f.klinePages[0]
	f.klinePages = f.klinePages[1:]
	return page, nil
}

type fakeSentimentSource struct {
	latest       SentimentPoint
	latestErrs   int
	history      []SentimentPoint
	historyCalls []int
}

func (f *fakeSentimentSource) Latest(context.Context) (SentimentPoint, error) {
	if f.latestErrs > 0 {
		f.latestErrs--
		return SentimentPoint{}, errors.New("api down")
	}
	return f.latest, nil
}

func (f *fakeSentimentSource) History(_ context.Context, limit int) ([]SentimentPoint, error) {
	f.historyCalls = append(f.historyCalls, limit)
	return f.history, nil
}

func TestCollectPrices(t *testing.T) {
	store := newFakeStore()
	prices := &fakePriceSource{prices: map[string]decimal.Decimal{
		"BTC": decimal.NewFromInt(20000),
		"ETH": decimal.NewFromInt(1500),
	}}
	c := New(store, prices, &fakeSentimentSource{}, []string{"BTC", "ETH", "SOL"}, 1, 500)

	c.CollectPrices(context.Background())

	// SOL has no price; the other two still land.
	require.Len(t, store.ticks, 2)
	assert.Equal(t, "BTC", store.ticks[0].symbol)
	assert.True(t, store.ticks[0].price.Equal(decimal.NewFromInt(20000)))
	assert.Equal(t, "ETH", store.ticks[1].symbol)
}

func TestCollectSentiment(t *testing.T) {
	store := newFakeStore()
	sentiment := &fakeSentimentSource{
		latest: SentimentPoint{Date: "2022-01-01", Value: 25, Classification: "Extreme Fear"},
	}
	c := New(store, &fakePriceSource{}, sentiment, []string{"BTC"}, 1, 500)

	c.CollectSentiment(context.Background())

	assert.Equal(t, 25, store.sentiment["2022-01-01"])
}

func TestCollectSentiment_Retries(t *testing.T) {
	store := newFakeStore()
	sentiment := &fakeSentimentSource{
		latest:     SentimentPoint{Date: "2022-01-01", Value: 40},
		latestErrs: 1,
	}
	c := New(store, &fakePriceSource{}, sentiment, []string{"BTC"}, 2, 500)

	c.CollectSentiment(context.Background())

	assert.Equal(t, 40, store.sentiment["2022-01-01"])
}

func TestWithRetry_CancelledContext(t *testing.T) {
	c := New(newFakeStore(), &fakePriceSource{}, &fakeSentimentSource{}, []string{"BTC"}, 3, 500)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.withRetry(ctx, func() error { return errors.New("always fails") })
	require.ErrorIs(t, err, context.Canceled)
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	c := New(newFakeStore(), &fakePriceSource{}, &fakeSentimentSource{}, []string{"BTC"}, 2, 500)

	calls := 0
	err := c.withRetry(context.Background(), func() error {
		calls++
		return errors.New("permanent failure")
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestBackfillPrices(t *testing.T) {
	hour := func(n int) time.Time {
		return time.Date(2022, 1, 1, n, 0, 0, 0, time.UTC)
	}

	t.Run("pages until a short page", func(t *testing.T) {
		store := newFakeStore()
		prices := &fakePriceSource{klinePages: [][]Kline{
			{
				{OpenTime: hour(0), Close: decimal.NewFromInt(20000)},
				{OpenTime: hour(1), Close: decimal.NewFromInt(20100)},
			},
			{
				{OpenTime: hour(2), Close: decimal.NewFromInt(20200)},
			},
		}}
		c := New(store, prices, &fakeSentimentSource{}, []string{"BTC"}, 1, 2)

		require.NoError(t, c.BackfillPrices(context.Background(), hour(0)))

		require.Len(t, store.ticks, 3)
		assert.Equal(t, hour(0), store.ticks[0].ts)
		assert.Equal(t, hour(2), store.ticks[2].ts)
		assert.True(t, store.ticks[2].price.Equal(decimal.NewFromInt(20200)))

		// The second page starts one hour after the last candle of the
		// first.
		require.Len(t, prices.klineCalls, 2)
		assert.Equal(t, hour(0), prices.klineCalls[0])
		assert.Equal(t, hour(2), prices.klineCalls[1])
	})

	t.Run("resumes from the newest stored tick", func(t *testing.T) {
		store := newFakeStore()
		store.latest["BTC"] = hour(5)
		prices := &fakePriceSource{klinePages: [][]Kline{
			{{OpenTime: hour(6), Close: decimal.NewFromInt(21000)}},
		}}
		c := New(store, prices, &fakeSentimentSource{}, []string{"BTC"}, 1, 500)

		require.NoError(t, c.BackfillPrices(context.Background(), hour(0)))

		require.Len(t, prices.klineCalls, 1)
		assert.Equal(t, hour(6), prices.klineCalls[0], "should start one hour after the stored tick")
		require.Len(t, store.ticks, 1)
	})

	t.Run("stops on an empty page", func(t *testing.T) {
		store := newFakeStore()
		prices := &fakePriceSource{}
		c := New(store, prices, &fakeSentimentSource{}, []string{"BTC"}, 1, 500)

		require.NoError(t, c.BackfillPrices(context.Background(), hour(0)))
		assert.Empty(t, store.ticks)
	})
}

func TestBackfillSentiment(t *testing.T) {
	store := newFakeStore()
	sentiment := &fakeSentimentSource{history: []SentimentPoint{
		{Date: "2022-01-03", Value: 30},
		{Date: "2022-01-02", Value: 28},
		{Date: "2022-01-01", Value: 25},
	}}
	c := New(store, &fakePriceSource{}, sentiment, []string{"BTC"}, 1, 500)

	require.NoError(t, c.BackfillSentiment(context.Background()))

	require.Len(t, sentiment.historyCalls, 1)
	assert.Equal(t, 0, sentiment.historyCalls[0], "full history uses limit zero")
	assert.Len(t, store.sentiment, 3)
	assert.Equal(t, 25, store.sentiment["2022-01-01"])
}

type fakeGapStore struct {
	prices    map[string]map[string]bool // symbol -> day
	sentiment map[string]bool
}

func (f *fakeGapStore) DailyAveragePrice(_ context.Context, symbol, date string) (decimal.Decimal, bool, error) {
	return decimal.NewFromInt(1), f.prices[symbol][date], nil
}

func (f *fakeGapStore) SentimentIndex(_ context.Context, date string) (int, bool, error) {
	return 50, f.sentiment[date], nil
}

func TestCheckGaps(t *testing.T) {
	store := &fakeGapStore{
		prices: map[string]map[string]bool{
			"BTC": {"2022-01-01": true, "2022-01-02": true, "2022-01-03": true},
			"ETH": {"2022-01-01": true, "2022-01-03": true},
		},
		sentiment: map[string]bool{"2022-01-01": true, "2022-01-03": true},
	}

	report, err := CheckGaps(context.Background(), store, []string{"BTC", "ETH"}, "2022-01-01", "2022-01-03")
	require.NoError(t, err)

	assert.Equal(t, 3, report.DaysChecked)
	assert.False(t, report.Complete())
	assert.Equal(t, []string{"2022-01-02"}, report.MissingSentiment)
	assert.Empty(t, report.MissingPrices["BTC"])
	assert.Equal(t, []string{"2022-01-02"}, report.MissingPrices["ETH"])
}

func TestCheckGaps_Complete(t *testing.T) {
	store := &fakeGapStore{
		prices:    map[string]map[string]bool{"BTC": {"2022-01-01": true}},
		sentiment: map[string]bool{"2022-01-01": true},
	}

	report, err := CheckGaps(context.Background(), store, []string{"BTC"}, "2022-01-01", "2022-01-01")
	require.NoError(t, err)
	assert.True(t, report.Complete())
}
