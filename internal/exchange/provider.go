// Package exchange fetches exchange rates from third-party providers and
// caches them with freshness metadata.
package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a single pair rate as reported by a provider.
type Quote struct {
	From string
	To   string
	Rate decimal.Decimal
	// LastUpdate is the provider-reported update time, nil when unknown.
	LastUpdate    *time.Time
	LastUpdateUTC string
	NextUpdateUTC string
}

// Snapshot holds every rate a provider reports for one base currency.
type Snapshot struct {
	Base          string
	Rates         map[string]decimal.Decimal
	LastUpdate    *time.Time
	LastUpdateUTC string
	NextUpdateUTC string
}

// Provider is a source of raw exchange rate data.
type Provider interface {
	Name() string
	PairRate(ctx context.Context, from, to string) (Quote, error)
	LatestRates(ctx context.Context, base string) (Snapshot, error)
}

func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
