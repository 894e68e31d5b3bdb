// Package models defines the value types shared by the calculator, the
// exchange rate layer and history persistence.
package models

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency describes a supported currency.
type Currency struct {
	Code   string `json:"code"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// DefaultCurrencies seeds the registry built by NewCurrencyRegistry.
var DefaultCurrencies = map[string]Currency{
	"USD": {Code: "USD", Symbol: "$", Name: "US Dollar"},
	"EUR": {Code: "EUR", Symbol: "€", Name: "Euro"},
	"BRL": {Code: "BRL", Symbol: "R$", Name: "Brazilian Real"},
	"GBP": {Code: "GBP", Symbol: "£", Name: "British Pound"},
	"JPY": {Code: "JPY", Symbol: "¥", Name: "Japanese Yen"},
}

// CurrencyRegistry is an immutable lookup table of supported currencies.
// Build it once with NewCurrencyRegistry and pass it to consumers.
type CurrencyRegistry struct {
	currencies map[string]Currency
}

// NewCurrencyRegistry returns a registry holding a copy of DefaultCurrencies.
func NewCurrencyRegistry() CurrencyRegistry {
	currencies := make(map[string]Currency, len(DefaultCurrencies))
	for code, c := range DefaultCurrencies {
		currencies[code] = c
	}
	return CurrencyRegistry{currencies: currencies}
}

// NormalizeCode upper-cases and trims a currency code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Lookup returns the currency for code. The second value is false when the
// code is not supported.
func (r CurrencyRegistry) Lookup(code string) (Currency, bool) {
	c, ok := r.currencies[NormalizeCode(code)]
	return c, ok
}

// Codes returns all supported codes in sorted order.
func (r CurrencyRegistry) Codes() []string {
	codes := make([]string, 0, len(r.currencies))
	for code := range r.currencies {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}

// CurrencyPair is an ordered (source, target) tuple.
type CurrencyPair struct {
	Source Currency `json:"source"`
	Target Currency `json:"target"`
}

// Key returns the "FROM-TO" cache key for the pair.
func (p CurrencyPair) Key() string {
	return p.Source.Code + "-" + p.Target.Code
}

// ExchangeRate is a source→target multiplier plus cache freshness details.
type ExchangeRate struct {
	Pair                 CurrencyPair    `json:"currencyPair"`
	Rate                 decimal.Decimal `json:"rate"`
	Timestamp            time.Time       `json:"timestamp"`
	FromCache            bool            `json:"fromCache"`
	LastAPIUpdateTime    *time.Time      `json:"lastApiUpdateTime"`
	LastCacheRefreshTime time.Time       `json:"lastCacheRefreshTime"`
	NextCacheRefreshTime time.Time       `json:"nextCacheRefreshTime"`
	TimeLastUpdateUTC    string          `json:"time_last_update_utc,omitempty"`
	TimeNextUpdateUTC    string          `json:"time_next_update_utc,omitempty"`
}

// RateMetadata reports how fresh the cached rates are.
type RateMetadata struct {
	LastCacheRefreshTime time.Time  `json:"lastCacheRefreshTime"`
	LastAPIUpdateTime    *time.Time `json:"lastApiUpdateTime"`
	NextCacheRefreshTime time.Time  `json:"nextCacheRefreshTime"`
	FromCache            bool       `json:"fromCache"`
	TimeLastUpdateUTC    string     `json:"time_last_update_utc"`
	TimeNextUpdateUTC    string     `json:"time_next_update_utc"`
}

// StepType identifies how a calculation step changes the running total.
type StepType string

// Supported step types.
const (
	StepInitial             StepType = "initial"
	StepExchangeRate        StepType = "exchange_rate"
	StepPercentageReduction StepType = "percentage_reduction"
	StepFixedReduction      StepType = "fixed_reduction"
	StepAddition            StepType = "addition"
	StepCustom              StepType = "custom"
)

// Label returns a human-readable name used in messages.
func (t StepType) Label() string {
	switch t {
	case StepInitial:
		return "Initial value"
	case StepExchangeRate:
		return "Exchange rate"
	case StepPercentageReduction:
		return "Percentage reduction"
	case StepFixedReduction:
		return "Fixed reduction"
	case StepAddition:
		return "Addition"
	case StepCustom:
		return "Custom"
	default:
		return string(t)
	}
}

// InputStep is a user-authored calculation step. Slice order is execution order.
type InputStep struct {
	Description string          `json:"description" validate:"max=255"`
	Type        StepType        `json:"type"`
	Value       decimal.Decimal `json:"value"`
	Explanation string          `json:"explanation,omitempty" validate:"max=1000"`
}

// CalculationStep is the ledger line produced from one InputStep.
type CalculationStep struct {
	Step               int             `json:"step"`
	Description        string          `json:"description"`
	CalculationDetails string          `json:"calculation_details"`
	ResultIntermediate decimal.Decimal `json:"result_intermediate"`
	ResultRunningTotal decimal.Decimal `json:"result_running_total"`
	Explanation        string          `json:"explanation,omitempty"`
}

// DetailedResult is the output of a detailed calculation.
type DetailedResult struct {
	Steps       []CalculationStep `json:"steps"`
	FinalResult decimal.Decimal   `json:"final_result"`
}

// ReductionStep is one percentage reduction applied in simple mode.
type ReductionStep struct {
	Step               int             `json:"step"`
	Percentage         decimal.Decimal `json:"percentage"`
	StartingBalance    decimal.Decimal `json:"starting_balance"`
	ReductionAmount    decimal.Decimal `json:"reduction_amount"`
	FinalBalance       decimal.Decimal `json:"final_balance"`
	CalculationDetails string          `json:"calculation_details"`
}

// SimpleResult is the output of a simple calculation. InitialBRLNoReduction
// is the converted amount before any reduction.
type SimpleResult struct {
	Steps                 []ReductionStep `json:"steps"`
	InitialBRLNoReduction decimal.Decimal `json:"initialBRLNoReduction"`
	FinalResult           decimal.Decimal `json:"final_result"`
}

// Calculation is a finished calculation stored in a user's history.
type Calculation struct {
	ID            uuid.UUID         `json:"id"`
	UserID        string            `json:"userId"`
	InitialAmount decimal.Decimal   `json:"initialAmount"`
	FinalAmount   decimal.Decimal   `json:"finalAmount"`
	CurrencyCode  string            `json:"currencyCode"`
	Steps         []CalculationStep `json:"steps,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}
