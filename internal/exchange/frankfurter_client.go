package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

const (
	// ProviderFrankfurter is the keyless frankfurter.app provider.
	ProviderFrankfurter = "frankfurter"

	defaultFrankfurterURL = "https://api.frankfurter.app"
)

// FrankfurterClient is a client for frankfurter.app exchange rates API.
type FrankfurterClient struct {
	baseURL    string
	httpClient *http.Client
	executor   *Executor
}

type frankfurterResponse struct {
	Base  string                 `json:"base"`
	Date  string                 `json:"date"`
	Rates map[string]json.Number `json:"rates"`
}

// NewFrankfurterClient creates a Frankfurter API client.
func NewFrankfurterClient(baseURL string, timeout time.Duration, executor *Executor) *FrankfurterClient {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		trimmed = defaultFrankfurterURL
	}

	return &FrankfurterClient{
		baseURL:    trimmed,
		httpClient: newHTTPClient(timeout),
		executor:   executor,
	}
}

// Name returns the provider identifier.
func (c *FrankfurterClient) Name() string {
	return ProviderFrankfurter
}

// Close stops the client's request executor.
func (c *FrankfurterClient) Close() error {
	c.executor.Close()
	return nil
}

// PairRate returns the latest from→to rate. Identical codes short-circuit to 1.
func (c *FrankfurterClient) PairRate(ctx context.Context, from, to string) (Quote, error) {
	if from == "" || to == "" {
		return Quote{}, &APIError{Provider: ProviderFrankfurter, Message: "from and to currencies are required", Permanent: true}
	}
	if from == to {
		now := time.Now().UTC()
		return Quote{From: from, To: to, Rate: decimal.NewFromInt(1), LastUpdate: &now}, nil
	}

	snapshot, err := c.latest(ctx, from, to)
	if err != nil {
		return Quote{}, err
	}
	rate, ok := snapshot.Rates[to]
	if !ok {
		return Quote{}, &APIError{Provider: ProviderFrankfurter, StatusCode: http.StatusOK, Message: "rate for " + to + " missing", Err: errRateMissing}
	}

	return Quote{
		From:          from,
		To:            to,
		Rate:          rate,
		LastUpdate:    snapshot.LastUpdate,
		LastUpdateUTC: snapshot.LastUpdateUTC,
	}, nil
}

// LatestRates returns every rate frankfurter publishes for base.
func (c *FrankfurterClient) LatestRates(ctx context.Context, base string) (Snapshot, error) {
	return c.latest(ctx, base, "")
}

func (c *FrankfurterClient) latest(ctx context.Context, from, to string) (Snapshot, error) {
	endpoint := fmt.Sprintf("%s/latest?from=%s", c.baseURL, url.QueryEscape(from))
	if to != "" {
		endpoint += "&to=" + url.QueryEscape(to)
	}

	payload, err := Execute(ctx, c.executor, func(ctx context.Context) (frankfurterResponse, error) {
		return c.get(ctx, endpoint)
	})
	if err != nil {
		return Snapshot{}, err
	}

	rates := make(map[string]decimal.Decimal, len(payload.Rates))
	for code, raw := range payload.Rates {
		rate, err := parseRate(raw)
		if err != nil {
			return Snapshot{}, &APIError{Provider: ProviderFrankfurter, StatusCode: http.StatusOK, Endpoint: endpoint, Message: "invalid rate for " + code, Err: err}
		}
		rates[code] = rate
	}

	rateDate, err := time.Parse("2006-01-02", payload.Date)
	if err != nil {
		return Snapshot{}, &APIError{Provider: ProviderFrankfurter, StatusCode: http.StatusOK, Endpoint: endpoint, Message: "failed to parse conversion date", Err: err}
	}

	return Snapshot{
		Base:          from,
		Rates:         rates,
		LastUpdate:    &rateDate,
		LastUpdateUTC: rateDate.Format(time.RFC1123Z),
	}, nil
}

func (c *FrankfurterClient) get(ctx context.Context, endpoint string) (frankfurterResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return frankfurterResponse{}, fmt.Errorf("failed to create conversion request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return frankfurterResponse{}, ctxErr
		}
		return frankfurterResponse{}, &APIError{Provider: ProviderFrankfurter, Endpoint: endpoint, Message: "request failed", Err: unwrapURLError(err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return frankfurterResponse{}, &APIError{
			Provider:   ProviderFrankfurter,
			StatusCode: resp.StatusCode,
			Endpoint:   endpoint,
			Message:    fmt.Sprintf("exchange API returned status %d", resp.StatusCode),
		}
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()

	var payload frankfurterResponse
	if err := decoder.Decode(&payload); err != nil {
		return frankfurterResponse{}, &APIError{Provider: ProviderFrankfurter, StatusCode: resp.StatusCode, Endpoint: endpoint, Message: "failed to decode conversion response", Err: err}
	}
	return payload, nil
}
