package exchange

import (
	"fmt"
	"strings"
	"time"
)

// ProviderConfig selects and configures a Provider.
type ProviderConfig struct {
	Name              string
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Retry             RetryPolicy
}

// NewProvider builds the provider named by cfg.Name. HTTP providers get
// their own executor; close them through io.Closer when done.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "", ProviderExchangeRateAPI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%s provider requires an API key", ProviderExchangeRateAPI)
		}
		executor := NewExecutor(cfg.RequestsPerSecond, cfg.Retry)
		return NewExchangeRateAPIClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout, executor), nil
	case ProviderFrankfurter:
		executor := NewExecutor(cfg.RequestsPerSecond, cfg.Retry)
		return NewFrankfurterClient(cfg.BaseURL, cfg.Timeout, executor), nil
	case ProviderMock:
		return NewStaticProvider("USD", DefaultStaticRates, time.Now()), nil
	default:
		return nil, fmt.Errorf("unknown exchange rate provider %q", cfg.Name)
	}
}
