package exchange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/fx-calc/internal/logger"
)

const (
	// ProviderExchangeRateAPI is the primary provider, exchangerate-api.com v6.
	ProviderExchangeRateAPI = "exchangerate-api"

	defaultExchangeRateAPIURL = "https://v6.exchangerate-api.com/v6"
	maxErrorBodyBytes         = 4 << 10
)

// Provider error types that a retry cannot fix.
var permanentErrorTypes = map[string]bool{
	"unsupported-code":  true,
	"malformed-request": true,
	"invalid-key":       true,
	"inactive-account":  true,
	"quota-reached":     true,
}

// ExchangeRateAPIClient is a client for the exchangerate-api.com v6 API.
type ExchangeRateAPIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	executor   *Executor
}

type exchangeRateAPIResponse struct {
	Result             string                 `json:"result"`
	ErrorType          string                 `json:"error-type"`
	BaseCode           string                 `json:"base_code"`
	TargetCode         string                 `json:"target_code"`
	ConversionRate     *json.Number           `json:"conversion_rate"`
	ConversionRates    map[string]json.Number `json:"conversion_rates"`
	TimeLastUpdateUnix *json.Number           `json:"time_last_update_unix"`
	TimeLastUpdateUTC  string                 `json:"time_last_update_utc"`
	TimeNextUpdateUTC  string                 `json:"time_next_update_utc"`
}

// NewExchangeRateAPIClient creates a client. Calls go through executor; a
// nil executor calls the API directly.
func NewExchangeRateAPIClient(
	baseURL, apiKey string,
	timeout time.Duration,
	executor *Executor,
) *ExchangeRateAPIClient {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		trimmed = defaultExchangeRateAPIURL
	}
	return &ExchangeRateAPIClient{
		baseURL:    trimmed,
		apiKey:     apiKey,
		httpClient: newHTTPClient(timeout),
		executor:   executor,
	}
}

// Name returns the provider identifier.
func (c *ExchangeRateAPIClient) Name() string {
	return ProviderExchangeRateAPI
}

// Close stops the client's request executor.
func (c *ExchangeRateAPIClient) Close() error {
	c.executor.Close()
	return nil
}

// PairRate fetches the from→to rate via GET {base}/{key}/pair/{from}/{to}.
func (c *ExchangeRateAPIClient) PairRate(ctx context.Context, from, to string) (Quote, error) {
	endpoint := fmt.Sprintf("%s/%s/pair/%s/%s",
		c.baseURL, url.PathEscape(c.apiKey), url.PathEscape(from), url.PathEscape(to))

	payload, err := Execute(ctx, c.executor, func(ctx context.Context) (exchangeRateAPIResponse, error) {
		return c.get(ctx, endpoint)
	})
	if err != nil {
		return Quote{}, err
	}

	if payload.ConversionRate == nil {
		return Quote{}, c.apiError(http.StatusOK, endpoint, "conversion_rate missing", errRateMissing)
	}
	rate, err := parseRate(*payload.ConversionRate)
	if err != nil {
		return Quote{}, c.apiError(http.StatusOK, endpoint, "invalid conversion_rate", err)
	}
	lastUpdate, err := parseUnix(payload.TimeLastUpdateUnix)
	if err != nil {
		return Quote{}, c.apiError(http.StatusOK, endpoint, "invalid time_last_update_unix", err)
	}

	return Quote{
		From:          from,
		To:            to,
		Rate:          rate,
		LastUpdate:    lastUpdate,
		LastUpdateUTC: payload.TimeLastUpdateUTC,
		NextUpdateUTC: payload.TimeNextUpdateUTC,
	}, nil
}

// LatestRates fetches all rates for base via GET {base}/{key}/latest/{base}.
func (c *ExchangeRateAPIClient) LatestRates(ctx context.Context, base string) (Snapshot, error) {
	endpoint := fmt.Sprintf("%s/%s/latest/%s", c.baseURL, url.PathEscape(c.apiKey), url.PathEscape(base))

	payload, err := Execute(ctx, c.executor, func(ctx context.Context) (exchangeRateAPIResponse, error) {
		return c.get(ctx, endpoint)
	})
	if err != nil {
		return Snapshot{}, err
	}

	if len(payload.ConversionRates) == 0 {
		return Snapshot{}, c.apiError(http.StatusOK, endpoint, "conversion_rates missing", errRateMissing)
	}
	rates := make(map[string]decimal.Decimal, len(payload.ConversionRates))
	for code, raw := range payload.ConversionRates {
		rate, err := parseRate(raw)
		if err != nil {
			return Snapshot{}, c.apiError(http.StatusOK, endpoint, "invalid rate for "+code, err)
		}
		rates[strings.ToUpper(code)] = rate
	}
	lastUpdate, err := parseUnix(payload.TimeLastUpdateUnix)
	if err != nil {
		return Snapshot{}, c.apiError(http.StatusOK, endpoint, "invalid time_last_update_unix", err)
	}

	return Snapshot{
		Base:          base,
		Rates:         rates,
		LastUpdate:    lastUpdate,
		LastUpdateUTC: payload.TimeLastUpdateUTC,
		NextUpdateUTC: payload.TimeNextUpdateUTC,
	}, nil
}

func (c *ExchangeRateAPIClient) get(ctx context.Context, endpoint string) (exchangeRateAPIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return exchangeRateAPIResponse{}, c.apiError(0, endpoint, "failed to create request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return exchangeRateAPIResponse{}, ctxErr
		}
		return exchangeRateAPIResponse{}, c.apiError(0, endpoint, "request failed", unwrapURLError(err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		var payload exchangeRateAPIResponse
		msg := fmt.Sprintf("unexpected status %d", resp.StatusCode)
		if json.Unmarshal(body, &payload) == nil && payload.ErrorType != "" {
			msg += ": " + payload.ErrorType
		}
		return exchangeRateAPIResponse{}, c.apiError(resp.StatusCode, endpoint, msg, nil)
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()

	var payload exchangeRateAPIResponse
	if err := decoder.Decode(&payload); err != nil {
		return exchangeRateAPIResponse{}, c.apiError(resp.StatusCode, endpoint, "failed to decode response", err)
	}

	if payload.Result != "success" {
		apiErr := c.apiError(resp.StatusCode, endpoint,
			fmt.Sprintf("result=%q error-type=%q", payload.Result, payload.ErrorType), nil)
		apiErr.Permanent = permanentErrorTypes[payload.ErrorType]
		return exchangeRateAPIResponse{}, apiErr
	}

	logger.Log.Debug().
		Str("provider", ProviderExchangeRateAPI).
		Str("endpoint", logger.MaskURL(endpoint, c.apiKey)).
		Msg("Fetched exchange rates")

	return payload, nil
}

func (c *ExchangeRateAPIClient) apiError(status int, endpoint, msg string, err error) *APIError {
	if err != nil && c.apiKey != "" && strings.Contains(err.Error(), c.apiKey) {
		err = errors.New(logger.MaskURL(err.Error(), c.apiKey))
	}
	return &APIError{
		Provider:   ProviderExchangeRateAPI,
		StatusCode: status,
		Endpoint:   logger.MaskURL(endpoint, c.apiKey),
		Message:    msg,
		Err:        err,
	}
}

func parseRate(raw json.Number) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse conversion rate: %w", err)
	}
	if !rate.IsPositive() {
		return decimal.Zero, errInvalidNonPositiveRate
	}
	return rate, nil
}

func parseUnix(raw *json.Number) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	sec, err := raw.Int64()
	if err != nil {
		return nil, fmt.Errorf("failed to parse unix timestamp: %w", err)
	}
	return unixTime(sec), nil
}

// unwrapURLError drops the *url.Error wrapper, whose message repeats the
// request URL.
func unwrapURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		return ue.Err
	}
	return err
}
