package exchange

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/fx-calc/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingProvider struct {
	pairCalls   atomic.Int32
	latestCalls atomic.Int32

	mu       sync.Mutex
	rate     decimal.Decimal
	err      error
	snapshot Snapshot
	gate     chan struct{}
	entered  chan struct{}
}

func newCountingProvider(rate string) *countingProvider {
	return &countingProvider{rate: decimal.RequireFromString(rate)}
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) setErr(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func (p *countingProvider) PairRate(_ context.Context, from, to string) (Quote, error) {
	p.pairCalls.Add(1)
	if p.entered != nil {
		select {
		case p.entered <- struct{}{}:
		default:
		}
	}
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return Quote{}, p.err
	}
	update := time.Date(2026, 2, 14, 0, 0, 1, 0, time.UTC)
	return Quote{
		From:          from,
		To:            to,
		Rate:          p.rate,
		LastUpdate:    &update,
		LastUpdateUTC: "Sat, 14 Feb 2026 00:00:01 +0000",
		NextUpdateUTC: "Sun, 15 Feb 2026 00:00:01 +0000",
	}, nil
}

func (p *countingProvider) LatestRates(_ context.Context, _ string) (Snapshot, error) {
	p.latestCalls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return Snapshot{}, p.err
	}
	return p.snapshot, nil
}

func newTestRepository(p Provider, ttl time.Duration, clock *fakeClock) *CachedRepository {
	return NewCachedRepository(p, models.NewCurrencyRegistry(), ttl, WithClock(clock.Now))
}

func TestCachedRepository_ExchangeRate(t *testing.T) {
	t.Parallel()

	t.Run("serves repeated reads from cache", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		provider := newCountingProvider("5.67")
		repo := newTestRepository(provider, time.Hour, clock)

		first, err := repo.ExchangeRate(context.Background(), "usd", "brl")
		require.NoError(t, err)
		require.False(t, first.FromCache)
		require.Equal(t, "USD-BRL", first.Pair.Key())
		require.Equal(t, decimal.RequireFromString("5.67"), first.Rate)
		require.Equal(t, clock.Now(), first.LastCacheRefreshTime)
		require.Equal(t, clock.Now().Add(time.Hour), first.NextCacheRefreshTime)
		require.Equal(t, "Sat, 14 Feb 2026 00:00:01 +0000", first.TimeLastUpdateUTC)

		clock.Advance(30 * time.Minute)
		second, err := repo.ExchangeRate(context.Background(), "USD", "BRL")
		require.NoError(t, err)
		require.True(t, second.FromCache)
		require.True(t, first.Rate.Equal(second.Rate))
		require.Equal(t, first.LastCacheRefreshTime, second.LastCacheRefreshTime)
		require.Equal(t, int32(1), provider.pairCalls.Load())
	})

	t.Run("cache key is per pair", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		provider := newCountingProvider("1.2")
		repo := newTestRepository(provider, time.Hour, clock)

		_, err := repo.ExchangeRate(context.Background(), "USD", "EUR")
		require.NoError(t, err)
		_, err = repo.ExchangeRate(context.Background(), "EUR", "USD")
		require.NoError(t, err)
		require.Equal(t, int32(2), provider.pairCalls.Load())
	})

	t.Run("entry at exactly ttl is still fresh", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		provider := newCountingProvider("1.1")
		repo := newTestRepository(provider, time.Hour, clock)

		_, err := repo.ExchangeRate(context.Background(), "USD", "GBP")
		require.NoError(t, err)
		clock.Advance(time.Hour)
		got, err := repo.ExchangeRate(context.Background(), "USD", "GBP")
		require.NoError(t, err)
		require.True(t, got.FromCache)
		require.Equal(t, int32(1), provider.pairCalls.Load())
	})

	t.Run("expired entry triggers exactly one refetch", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		provider := newCountingProvider("1.1")
		repo := newTestRepository(provider, time.Hour, clock)

		_, err := repo.ExchangeRate(context.Background(), "USD", "GBP")
		require.NoError(t, err)

		clock.Advance(time.Hour + time.Nanosecond)
		refreshed, err := repo.ExchangeRate(context.Background(), "USD", "GBP")
		require.NoError(t, err)
		require.False(t, refreshed.FromCache)
		require.Equal(t, clock.Now(), refreshed.LastCacheRefreshTime)

		_, err = repo.ExchangeRate(context.Background(), "USD", "GBP")
		require.NoError(t, err)
		require.Equal(t, int32(2), provider.pairCalls.Load())
	})

	t.Run("unsupported currency never reaches the provider", func(t *testing.T) {
		t.Parallel()
		provider := newCountingProvider("1")
		repo := newTestRepository(provider, time.Hour, newFakeClock())

		_, err := repo.ExchangeRate(context.Background(), "USD", "SGD")
		require.ErrorIs(t, err, ErrUnsupportedCurrency)

		var unsupported *UnsupportedCurrencyError
		require.ErrorAs(t, err, &unsupported)
		require.Equal(t, "SGD", unsupported.Code)

		_, err = repo.ExchangeRate(context.Background(), "xyz", "USD")
		require.ErrorIs(t, err, ErrUnsupportedCurrency)
		require.Zero(t, provider.pairCalls.Load())
	})

	t.Run("provider failure is wrapped and leaves cache untouched", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		provider := newCountingProvider("5.5")
		repo := newTestRepository(provider, time.Minute, clock)

		_, err := repo.ExchangeRate(context.Background(), "USD", "BRL")
		require.NoError(t, err)
		before := repo.Metadata()

		clock.Advance(2 * time.Minute)
		cause := &APIError{Provider: "counting", StatusCode: 503, Message: "down"}
		provider.setErr(cause)

		_, err = repo.ExchangeRate(context.Background(), "USD", "BRL")
		var convErr *ConversionError
		require.ErrorAs(t, err, &convErr)
		require.Equal(t, "ExchangeRate", convErr.Method)
		require.Equal(t, "USD", convErr.From)
		require.Equal(t, "BRL", convErr.To)
		require.ErrorIs(t, err, cause)
		require.Equal(t, before.LastCacheRefreshTime, repo.Metadata().LastCacheRefreshTime)

		provider.setErr(nil)
		got, err := repo.ExchangeRate(context.Background(), "USD", "BRL")
		require.NoError(t, err)
		require.False(t, got.FromCache)
	})

	t.Run("coalesces concurrent misses", func(t *testing.T) {
		t.Parallel()
		provider := newCountingProvider("5.67")
		provider.gate = make(chan struct{})
		provider.entered = make(chan struct{}, 1)
		repo := NewCachedRepository(provider, models.NewCurrencyRegistry(), time.Hour)

		const callers = 10
		var wg sync.WaitGroup
		errs := make(chan error, callers)
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.ExchangeRate(context.Background(), "USD", "BRL")
				errs <- err
			}()
		}

		<-provider.entered
		time.Sleep(20 * time.Millisecond)
		close(provider.gate)
		wg.Wait()
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}
		require.Equal(t, int32(1), provider.pairCalls.Load())
	})

	t.Run("impatient caller does not cancel the shared fetch", func(t *testing.T) {
		t.Parallel()
		provider := newCountingProvider("5.67")
		provider.gate = make(chan struct{})
		provider.entered = make(chan struct{}, 1)
		repo := NewCachedRepository(provider, models.NewCurrencyRegistry(), time.Hour)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() {
			_, err := repo.ExchangeRate(ctx, "USD", "BRL")
			errCh <- err
		}()
		<-provider.entered
		cancel()
		require.ErrorIs(t, <-errCh, context.Canceled)

		close(provider.gate)
		require.Eventually(t, func() bool {
			got, err := repo.ExchangeRate(context.Background(), "USD", "BRL")
			return err == nil && got.FromCache
		}, time.Second, 5*time.Millisecond)
		require.Equal(t, int32(1), provider.pairCalls.Load())
	})
}

func TestCachedRepository_USDToBRLRate(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	provider := newCountingProvider("5.4321")
	repo := newTestRepository(provider, time.Hour, clock)

	got, err := repo.USDToBRLRate(context.Background())
	require.NoError(t, err)
	require.Equal(t, decimal.RequireFromString("5.4321"), got)

	// The shortcut has its own key, separate from the generic pair.
	_, err = repo.USDToBRLRate(context.Background())
	require.NoError(t, err)
	_, err = repo.ExchangeRate(context.Background(), "USD", "BRL")
	require.NoError(t, err)
	require.Equal(t, int32(2), provider.pairCalls.Load())
}

func TestCachedRepository_AllRates(t *testing.T) {
	t.Parallel()

	t.Run("returns every supported currency except the base", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		asOf := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)
		repo := newTestRepository(NewStaticProvider("USD", DefaultStaticRates, asOf), time.Hour, clock)

		rates, err := repo.AllRates(context.Background())
		require.NoError(t, err)
		require.Len(t, rates, 4)

		targets := make([]string, 0, len(rates))
		for _, r := range rates {
			require.Equal(t, "USD", r.Pair.Source.Code)
			require.False(t, r.FromCache)
			targets = append(targets, r.Pair.Target.Code)
		}
		require.Equal(t, []string{"BRL", "EUR", "GBP", "JPY"}, targets)
		require.Equal(t, decimal.RequireFromString("5.65"), rates[0].Rate)

		cached, err := repo.AllRates(context.Background())
		require.NoError(t, err)
		require.True(t, cached[0].FromCache)
		require.True(t, repo.Metadata().FromCache)
	})

	t.Run("honors the configured base currency", func(t *testing.T) {
		t.Parallel()
		repo := NewCachedRepository(
			NewStaticProvider("USD", DefaultStaticRates, time.Now()),
			models.NewCurrencyRegistry(),
			time.Hour,
			WithBaseCurrency("eur"),
		)

		rates, err := repo.AllRates(context.Background())
		require.NoError(t, err)
		require.Len(t, rates, 4)
		require.Equal(t, "EUR", rates[0].Pair.Source.Code)
		require.Equal(t, "BRL", rates[0].Pair.Target.Code)
	})

	t.Run("missing supported code fails the whole query", func(t *testing.T) {
		t.Parallel()
		provider := newCountingProvider("1")
		provider.snapshot = Snapshot{
			Base: "USD",
			Rates: map[string]decimal.Decimal{
				"BRL": decimal.RequireFromString("5.6"),
				"EUR": decimal.RequireFromString("0.9"),
			},
		}
		repo := newTestRepository(provider, time.Hour, newFakeClock())

		_, err := repo.AllRates(context.Background())
		var convErr *ConversionError
		require.ErrorAs(t, err, &convErr)
		require.Equal(t, "AllRates", convErr.Method)
		require.ErrorIs(t, err, errRateMissing)
	})

	t.Run("unsupported base is rejected", func(t *testing.T) {
		t.Parallel()
		provider := newCountingProvider("1")
		repo := NewCachedRepository(provider, models.NewCurrencyRegistry(), time.Hour, WithBaseCurrency("SGD"))

		_, err := repo.AllRates(context.Background())
		require.ErrorIs(t, err, ErrUnsupportedCurrency)
		require.Zero(t, provider.latestCalls.Load())
	})
}

func TestCachedRepository_Metadata(t *testing.T) {
	t.Parallel()

	t.Run("defaults before the first fetch", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		repo := newTestRepository(newCountingProvider("1"), 10*time.Minute, clock)

		meta := repo.Metadata()
		require.Equal(t, clock.Now(), meta.LastCacheRefreshTime)
		require.Equal(t, clock.Now().Add(10*time.Minute), meta.NextCacheRefreshTime)
		require.Nil(t, meta.LastAPIUpdateTime)
		require.False(t, meta.FromCache)
		require.Empty(t, meta.TimeLastUpdateUTC)
	})

	t.Run("tracks the latest refresh", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		repo := newTestRepository(newCountingProvider("1.5"), time.Hour, clock)

		_, err := repo.ExchangeRate(context.Background(), "GBP", "JPY")
		require.NoError(t, err)
		fetchedAt := clock.Now()
		clock.Advance(5 * time.Minute)

		meta := repo.Metadata()
		require.Equal(t, fetchedAt, meta.LastCacheRefreshTime)
		require.Equal(t, fetchedAt.Add(time.Hour), meta.NextCacheRefreshTime)
		require.NotNil(t, meta.LastAPIUpdateTime)
		require.Equal(t, "Sun, 15 Feb 2026 00:00:01 +0000", meta.TimeNextUpdateUTC)
		require.False(t, meta.FromCache)
	})

	t.Run("non-positive ttl falls back to default", func(t *testing.T) {
		t.Parallel()
		repo := newTestRepository(newCountingProvider("1"), 0, newFakeClock())
		require.Equal(t, DefaultCacheDuration, repo.CacheDuration())
	})
}

func TestCachedRepository_ErrorIsNotCached(t *testing.T) {
	t.Parallel()

	provider := newCountingProvider("2")
	provider.setErr(errors.New("boom"))
	repo := newTestRepository(provider, time.Hour, newFakeClock())

	_, err := repo.ExchangeRate(context.Background(), "USD", "JPY")
	require.Error(t, err)
	_, err = repo.ExchangeRate(context.Background(), "USD", "JPY")
	require.Error(t, err)
	require.Equal(t, int32(2), provider.pairCalls.Load())
}
