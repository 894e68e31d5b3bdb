package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnsupportedCurrency matches any *UnsupportedCurrencyError.
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	// ErrThrottlerClosed is returned for work submitted after Close.
	ErrThrottlerClosed = errors.New("request throttler closed")

	errRateMissing            = errors.New("conversion rate missing in response")
	errInvalidNonPositiveRate = errors.New("conversion rate must be positive")
)

// UnsupportedCurrencyError reports a code outside the currency registry.
type UnsupportedCurrencyError struct {
	Code string
}

func (e *UnsupportedCurrencyError) Error() string {
	return fmt.Sprintf("unsupported currency: %q", e.Code)
}

// Is makes errors.Is(err, ErrUnsupportedCurrency) hold.
func (e *UnsupportedCurrencyError) Is(target error) bool {
	return target == ErrUnsupportedCurrency
}

// APIError is a failed or malformed response from a rate provider.
// Endpoint never contains the API key.
type APIError struct {
	Provider   string
	StatusCode int
	Endpoint   string
	Message    string
	// Permanent marks provider-reported failures that a retry cannot fix,
	// such as an invalid key, even when the HTTP status is 2xx.
	Permanent bool
	Err       error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s API error (status %d, %s): %s", e.Provider, e.StatusCode, e.Endpoint, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ConversionError wraps a failure that happened while fetching a rate.
type ConversionError struct {
	Method string
	From   string
	To     string
	Err    error
}

func (e *ConversionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("%s (%s): %v", e.Method, e.From, e.Err)
	}
	return fmt.Sprintf("%s (%s->%s): %v", e.Method, e.From, e.To, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a failed provider call is worth repeating.
// Client-class failures (4xx, permanent provider errors, unsupported codes)
// and cancellation are not; network errors, 5xx and malformed payloads are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrUnsupportedCurrency) || errors.Is(err, ErrThrottlerClosed) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Permanent {
			return false
		}
		if apiErr.StatusCode >= http.StatusBadRequest && apiErr.StatusCode < http.StatusInternalServerError {
			return false
		}
	}
	return true
}
