package calculator

import (
	"strings"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/fx-calc/internal/logger"
	"gitlab.com/yelinaung/fx-calc/internal/models"
)

// ProcessSimple converts initialAmount with exchangeRate and then applies the
// comma-separated reduction percentages in order.
//
// A reduction that leaves zero or less is rejected. This is stricter than
// ProcessDetailed, which only rejects a negative running total.
func ProcessSimple(initialAmount, exchangeRate decimal.Decimal, reductions string) (models.SimpleResult, error) {
	if !withinBounds(initialAmount) {
		return models.SimpleResult{}, validationErrorf("Initial amount is out of range")
	}
	if !withinBounds(exchangeRate) {
		return models.SimpleResult{}, validationErrorf("Exchange rate is out of range")
	}
	if !initialAmount.IsPositive() {
		return models.SimpleResult{}, validationErrorf("Initial amount is required and must be greater than zero")
	}
	if !exchangeRate.IsPositive() {
		return models.SimpleResult{}, validationErrorf("Exchange rate is required and must be greater than zero")
	}

	percentages, err := ParseReductions(reductions)
	if err != nil {
		return models.SimpleResult{}, err
	}

	converted := initialAmount.Mul(exchangeRate)
	balance := converted
	steps := make([]models.ReductionStep, 0, len(percentages))

	for i, pct := range percentages {
		amount := balance.Mul(pct.Div(hundred))
		final := balance.Sub(amount)
		if !final.IsPositive() {
			return models.SimpleResult{}, validationErrorf(
				"Reduction would result in zero or negative value at reduction %d (%s%%)", i+1, pct.String())
		}

		steps = append(steps, models.ReductionStep{
			Step:               i + 1,
			Percentage:         pct,
			StartingBalance:    balance,
			ReductionAmount:    amount,
			FinalBalance:       final,
			CalculationDetails: formatPercentage(balance, pct, amount, final),
		})
		balance = final
	}

	logger.Log.Debug().
		Int("reductions", len(steps)).
		Str("converted", money(converted)).
		Str("final_result", money(balance)).
		Msg("Simple calculation completed")

	return models.SimpleResult{
		Steps:                 steps,
		InitialBRLNoReduction: converted,
		FinalResult:           balance,
	}, nil
}

// ParseReductions splits a comma-separated list of percentages. Blank entries
// are dropped; every other entry must be a number between 0 and 100.
func ParseReductions(input string) ([]decimal.Decimal, error) {
	var out []decimal.Decimal
	for token := range strings.SplitSeq(input, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		pct, err := decimal.NewFromString(token)
		if err != nil {
			return nil, validationErrorf("Invalid reduction percentage: %q is not a valid number", token)
		}
		if !withinBounds(pct) {
			return nil, validationErrorf("Invalid reduction percentage: %q has too many digits", token)
		}
		if pct.IsNegative() || pct.GreaterThan(hundred) {
			return nil, validationErrorf("Invalid reduction percentage: %s must be between 0 and 100", token)
		}
		out = append(out, pct)
	}
	return out, nil
}
