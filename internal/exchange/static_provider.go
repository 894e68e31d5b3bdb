package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ProviderMock serves a fixed in-memory rate table.
const ProviderMock = "mock"

// DefaultStaticRates are USD-based rates used by the mock provider.
var DefaultStaticRates = map[string]decimal.Decimal{
	"USD": decimal.NewFromInt(1),
	"EUR": decimal.RequireFromString("0.92"),
	"BRL": decimal.RequireFromString("5.65"),
	"GBP": decimal.RequireFromString("0.79"),
	"JPY": decimal.RequireFromString("151.20"),
}

// StaticProvider answers from a fixed table of rates against one base
// currency. Cross rates are derived through the base.
type StaticProvider struct {
	base  string
	rates map[string]decimal.Decimal
	asOf  time.Time
}

// NewStaticProvider copies rates, which must be quoted against base.
func NewStaticProvider(base string, rates map[string]decimal.Decimal, asOf time.Time) *StaticProvider {
	copied := make(map[string]decimal.Decimal, len(rates)+1)
	for code, r := range rates {
		copied[code] = r
	}
	copied[base] = decimal.NewFromInt(1)
	return &StaticProvider{base: base, rates: copied, asOf: asOf.UTC()}
}

// Name returns the provider identifier.
func (p *StaticProvider) Name() string {
	return ProviderMock
}

// PairRate derives from→to from the table.
func (p *StaticProvider) PairRate(_ context.Context, from, to string) (Quote, error) {
	fromRate, ok := p.rates[from]
	if !ok {
		return Quote{}, &UnsupportedCurrencyError{Code: from}
	}
	toRate, ok := p.rates[to]
	if !ok {
		return Quote{}, &UnsupportedCurrencyError{Code: to}
	}
	asOf := p.asOf
	return Quote{
		From:          from,
		To:            to,
		Rate:          toRate.Div(fromRate),
		LastUpdate:    &asOf,
		LastUpdateUTC: asOf.Format(time.RFC1123Z),
	}, nil
}

// LatestRates re-bases the table on base.
func (p *StaticProvider) LatestRates(ctx context.Context, base string) (Snapshot, error) {
	rates := make(map[string]decimal.Decimal, len(p.rates))
	for code := range p.rates {
		q, err := p.PairRate(ctx, base, code)
		if err != nil {
			return Snapshot{}, err
		}
		rates[code] = q.Rate
	}
	asOf := p.asOf
	return Snapshot{
		Base:          base,
		Rates:         rates,
		LastUpdate:    &asOf,
		LastUpdateUTC: asOf.Format(time.RFC1123Z),
	}, nil
}
