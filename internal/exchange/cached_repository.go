package exchange

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/fx-calc/internal/logger"
	"gitlab.com/yelinaung/fx-calc/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const (
	usdBRLKey   = "usd-brl-rate"
	allRatesKey = "all-rates"

	// DefaultCacheDuration applies when a non-positive duration is given.
	DefaultCacheDuration = time.Hour
	maxCleanupInterval   = 5 * time.Minute

	instrumentationName = "gitlab.com/yelinaung/fx-calc/internal/exchange"
)

// RateRepository serves exchange rates with freshness metadata.
type RateRepository interface {
	USDToBRLRate(ctx context.Context) (decimal.Decimal, error)
	ExchangeRate(ctx context.Context, from, to string) (models.ExchangeRate, error)
	AllRates(ctx context.Context) ([]models.ExchangeRate, error)
	Metadata() models.RateMetadata
}

type cacheEntry struct {
	rates     []models.ExchangeRate
	fetchedAt time.Time
}

// refresh is what a provider fetch produces before it is cached.
type refresh struct {
	pairs         []models.CurrencyPair
	rates         []decimal.Decimal
	lastUpdate    *time.Time
	lastUpdateUTC string
	nextUpdateUTC string
}

type cacheMetrics struct {
	hits     metric.Int64Counter
	misses   metric.Int64Counter
	failures metric.Int64Counter
}

// CachedRepository wraps a Provider with an in-memory TTL cache. Entries are
// keyed by "FROM-TO", plus fixed keys for the USD/BRL shortcut and the
// all-rates query. An entry older than the cache duration is refetched
// before it is served.
type CachedRepository struct {
	provider Provider
	registry models.CurrencyRegistry
	ttl      time.Duration
	base     string
	now      func() time.Time

	group   singleflight.Group
	tracer  trace.Tracer
	metrics cacheMetrics

	mu            sync.RWMutex
	entries       map[string]cacheEntry
	lastCleanup   time.Time
	lastRefresh   time.Time
	lastAPIUpdate *time.Time
	fromCache     bool
	lastUpdateUTC string
	nextUpdateUTC string
}

// Option customizes a CachedRepository.
type Option func(*CachedRepository)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *CachedRepository) {
		r.now = now
	}
}

// WithBaseCurrency sets the base used by AllRates. Defaults to USD.
func WithBaseCurrency(code string) Option {
	return func(r *CachedRepository) {
		r.base = models.NormalizeCode(code)
	}
}

// NewCachedRepository returns a repository caching provider results for ttl.
func NewCachedRepository(
	provider Provider,
	registry models.CurrencyRegistry,
	ttl time.Duration,
	opts ...Option,
) *CachedRepository {
	if ttl <= 0 {
		ttl = DefaultCacheDuration
	}
	r := &CachedRepository{
		provider: provider,
		registry: registry,
		ttl:      ttl,
		base:     "USD",
		now:      time.Now,
		tracer:   otel.Tracer(instrumentationName),
		metrics:  newCacheMetrics(),
		entries:  make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func newCacheMetrics() cacheMetrics {
	meter := otel.Meter(instrumentationName)
	var m cacheMetrics
	var err error
	if m.hits, err = meter.Int64Counter("fx.rate_cache.hits",
		metric.WithDescription("Exchange rate reads served from cache")); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to create cache hit counter")
	}
	if m.misses, err = meter.Int64Counter("fx.rate_cache.misses",
		metric.WithDescription("Exchange rate reads that required a provider fetch")); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to create cache miss counter")
	}
	if m.failures, err = meter.Int64Counter("fx.provider.failures",
		metric.WithDescription("Failed exchange rate provider fetches")); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to create provider failure counter")
	}
	return m
}

// CacheDuration returns the configured time-to-live.
func (r *CachedRepository) CacheDuration() time.Duration {
	return r.ttl
}

// USDToBRLRate returns the USD→BRL multiplier.
func (r *CachedRepository) USDToBRLRate(ctx context.Context) (decimal.Decimal, error) {
	pair, err := r.pair("USD", "BRL")
	if err != nil {
		return decimal.Zero, err
	}
	rates, err := r.load(ctx, usdBRLKey, "USDToBRLRate", pair.Source.Code, pair.Target.Code, r.fetchPair(pair))
	if err != nil {
		return decimal.Zero, err
	}
	return rates[0].Rate, nil
}

// ExchangeRate returns the from→to rate. Codes outside the registry fail
// with *UnsupportedCurrencyError without contacting the provider.
func (r *CachedRepository) ExchangeRate(ctx context.Context, from, to string) (models.ExchangeRate, error) {
	pair, err := r.pair(from, to)
	if err != nil {
		return models.ExchangeRate{}, err
	}
	rates, err := r.load(ctx, pair.Key(), "ExchangeRate", pair.Source.Code, pair.Target.Code, r.fetchPair(pair))
	if err != nil {
		return models.ExchangeRate{}, err
	}
	return rates[0], nil
}

// AllRates returns the base currency's rate to every other supported
// currency, ordered by target code.
func (r *CachedRepository) AllRates(ctx context.Context) ([]models.ExchangeRate, error) {
	base, ok := r.registry.Lookup(r.base)
	if !ok {
		return nil, &UnsupportedCurrencyError{Code: r.base}
	}
	return r.load(ctx, allRatesKey, "AllRates", base.Code, "", func(ctx context.Context) (refresh, error) {
		snapshot, err := r.provider.LatestRates(ctx, base.Code)
		if err != nil {
			return refresh{}, err
		}
		out := refresh{
			lastUpdate:    snapshot.LastUpdate,
			lastUpdateUTC: snapshot.LastUpdateUTC,
			nextUpdateUTC: snapshot.NextUpdateUTC,
		}
		for _, code := range r.registry.Codes() {
			if code == base.Code {
				continue
			}
			rate, ok := snapshot.Rates[code]
			if !ok {
				return refresh{}, &APIError{
					Provider:   r.provider.Name(),
					StatusCode: 200,
					Message:    "rate for " + code + " missing",
					Err:        errRateMissing,
				}
			}
			target, _ := r.registry.Lookup(code)
			out.pairs = append(out.pairs, models.CurrencyPair{Source: base, Target: target})
			out.rates = append(out.rates, rate)
		}
		return out, nil
	})
}

// Metadata reports cache freshness. Before the first fetch the refresh time
// defaults to now.
func (r *CachedRepository) Metadata() models.RateMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	refreshedAt := r.lastRefresh
	if refreshedAt.IsZero() {
		refreshedAt = r.now()
	}
	return models.RateMetadata{
		LastCacheRefreshTime: refreshedAt,
		LastAPIUpdateTime:    r.lastAPIUpdate,
		NextCacheRefreshTime: refreshedAt.Add(r.ttl),
		FromCache:            r.fromCache,
		TimeLastUpdateUTC:    r.lastUpdateUTC,
		TimeNextUpdateUTC:    r.nextUpdateUTC,
	}
}

func (r *CachedRepository) pair(from, to string) (models.CurrencyPair, error) {
	source, ok := r.registry.Lookup(from)
	if !ok {
		return models.CurrencyPair{}, &UnsupportedCurrencyError{Code: models.NormalizeCode(from)}
	}
	target, ok := r.registry.Lookup(to)
	if !ok {
		return models.CurrencyPair{}, &UnsupportedCurrencyError{Code: models.NormalizeCode(to)}
	}
	return models.CurrencyPair{Source: source, Target: target}, nil
}

func (r *CachedRepository) fetchPair(pair models.CurrencyPair) func(context.Context) (refresh, error) {
	return func(ctx context.Context) (refresh, error) {
		q, err := r.provider.PairRate(ctx, pair.Source.Code, pair.Target.Code)
		if err != nil {
			return refresh{}, err
		}
		return refresh{
			pairs:         []models.CurrencyPair{pair},
			rates:         []decimal.Decimal{q.Rate},
			lastUpdate:    q.LastUpdate,
			lastUpdateUTC: q.LastUpdateUTC,
			nextUpdateUTC: q.NextUpdateUTC,
		}, nil
	}
}

func (r *CachedRepository) load(
	ctx context.Context,
	key, method, from, to string,
	fetch func(context.Context) (refresh, error),
) ([]models.ExchangeRate, error) {
	attrs := metric.WithAttributes(attribute.String("key", key))

	if rates, ok := r.cached(key); ok {
		r.metrics.hits.Add(ctx, 1, attrs)
		return rates, nil
	}
	r.metrics.misses.Add(ctx, 1, attrs)

	// Waiters on a key share one fetch; it outlives any single caller.
	fetchCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (any, error) {
		spanCtx, span := r.tracer.Start(fetchCtx, "exchange.fetch",
			trace.WithAttributes(
				attribute.String("fx.key", key),
				attribute.String("fx.provider", r.provider.Name()),
			))
		defer span.End()

		res, err := fetch(spanCtx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "provider fetch failed")
			return nil, err
		}
		return r.store(key, res), nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			r.metrics.failures.Add(ctx, 1, attrs)
			logger.Log.Error().
				Err(res.Err).
				Str("method", method).
				Str("from", from).
				Str("to", to).
				Str("provider", r.provider.Name()).
				Msg("Failed to fetch exchange rate")
			var unsupported *UnsupportedCurrencyError
			if errors.As(res.Err, &unsupported) {
				return nil, res.Err
			}
			return nil, &ConversionError{Method: method, From: from, To: to, Err: res.Err}
		}
		rates, _ := res.Val.([]models.ExchangeRate)
		return rates, nil
	}
}

// cached returns a copy of a live entry marked as served from cache.
func (r *CachedRepository) cached(key string) ([]models.ExchangeRate, bool) {
	now := r.now()

	r.mu.RLock()
	entry, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok || now.Sub(entry.fetchedAt) > r.ttl {
		return nil, false
	}

	r.mu.Lock()
	r.fromCache = true
	r.mu.Unlock()

	out := make([]models.ExchangeRate, len(entry.rates))
	for i, rate := range entry.rates {
		rate.FromCache = true
		out[i] = rate
	}
	return out, true
}

func (r *CachedRepository) store(key string, res refresh) []models.ExchangeRate {
	fetchedAt := r.now()
	next := fetchedAt.Add(r.ttl)

	rates := make([]models.ExchangeRate, len(res.pairs))
	for i, pair := range res.pairs {
		rates[i] = models.ExchangeRate{
			Pair:                 pair,
			Rate:                 res.rates[i],
			Timestamp:            fetchedAt,
			LastAPIUpdateTime:    res.lastUpdate,
			LastCacheRefreshTime: fetchedAt,
			NextCacheRefreshTime: next,
			TimeLastUpdateUTC:    res.lastUpdateUTC,
			TimeNextUpdateUTC:    res.nextUpdateUTC,
		}
	}

	r.mu.Lock()
	r.entries[key] = cacheEntry{rates: rates, fetchedAt: fetchedAt}
	r.lastRefresh = fetchedAt
	r.lastAPIUpdate = res.lastUpdate
	r.lastUpdateUTC = res.lastUpdateUTC
	r.nextUpdateUTC = res.nextUpdateUTC
	r.fromCache = false
	r.cleanupExpiredLocked(fetchedAt)
	r.mu.Unlock()

	logger.Log.Info().
		Str("key", key).
		Int("rates", len(rates)).
		Time("next_refresh", next).
		Msg("Exchange rate cache refreshed")

	out := make([]models.ExchangeRate, len(rates))
	copy(out, rates)
	return out
}

func (r *CachedRepository) cleanupExpiredLocked(now time.Time) {
	interval := min(r.ttl, maxCleanupInterval)
	if !r.lastCleanup.IsZero() && now.Sub(r.lastCleanup) < interval {
		return
	}
	for key, entry := range r.entries {
		if now.Sub(entry.fetchedAt) > r.ttl {
			delete(r.entries, key)
		}
	}
	r.lastCleanup = now
}
