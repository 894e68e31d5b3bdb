package calculator

import (
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/fx-calc/internal/logger"
	"gitlab.com/yelinaung/fx-calc/internal/models"
)

// ProcessDetailed walks steps in slice order, threading a running total that
// starts at zero. The first invalid step aborts the whole calculation and its
// *ValidationError is returned as is; no partial ledger is produced.
func ProcessDetailed(steps []models.InputStep) (models.DetailedResult, error) {
	if len(steps) == 0 {
		return models.DetailedResult{}, validationErrorf("No calculation steps provided")
	}
	if !hasInitialStep(steps) {
		return models.DetailedResult{}, validationErrorf("An Initial Value step is required for calculation")
	}

	results := make([]models.CalculationStep, 0, len(steps))
	runningTotal := decimal.Zero

	for i, in := range steps {
		stepNumber := i + 1
		if !withinBounds(in.Value) {
			return models.DetailedResult{}, validationErrorf(
				"Step %d: value is out of range (at most %d integer and %d decimal digits)",
				stepNumber, maxIntegerDigits, maxFractionDigits)
		}
		intermediate, total, details, err := applyStep(stepNumber, in, runningTotal)
		if err != nil {
			return models.DetailedResult{}, err
		}
		// Only the running total is guarded; intermediates may be negative.
		if total.IsNegative() {
			return models.DetailedResult{}, validationErrorf(
				"Step %d would result in a negative value (%s)", stepNumber, money(total))
		}
		runningTotal = total

		description := in.Description
		if description == "" {
			description = in.Type.Label()
		}
		results = append(results, models.CalculationStep{
			Step:               stepNumber,
			Description:        description,
			CalculationDetails: details,
			ResultIntermediate: intermediate,
			ResultRunningTotal: runningTotal,
			Explanation:        in.Explanation,
		})
	}

	logger.Log.Debug().
		Int("steps", len(results)).
		Str("final_result", money(runningTotal)).
		Msg("Detailed calculation completed")

	return models.DetailedResult{Steps: results, FinalResult: runningTotal}, nil
}

func hasInitialStep(steps []models.InputStep) bool {
	for _, s := range steps {
		if s.Type == models.StepInitial {
			return true
		}
	}
	return false
}

// applyStep returns the intermediate result, the new running total and the
// display formula for a single step.
func applyStep(
	stepNumber int,
	in models.InputStep,
	runningTotal decimal.Decimal,
) (decimal.Decimal, decimal.Decimal, string, error) {
	switch in.Type {
	case models.StepInitial:
		return in.Value, in.Value, "Initial value: " + money(in.Value), nil

	case models.StepExchangeRate:
		if err := requireRunningTotal(stepNumber, in.Type, runningTotal); err != nil {
			return decimal.Zero, decimal.Zero, "", err
		}
		converted := in.Value.Mul(runningTotal)
		return converted, converted, formatProduct(runningTotal, in.Value, converted), nil

	case models.StepPercentageReduction:
		if err := requireRunningTotal(stepNumber, in.Type, runningTotal); err != nil {
			return decimal.Zero, decimal.Zero, "", err
		}
		portion := runningTotal.Mul(in.Value.Div(hundred))
		remaining := runningTotal.Sub(portion)
		return portion, remaining, formatPercentage(runningTotal, in.Value, portion, remaining), nil

	case models.StepFixedReduction:
		if err := requireRunningTotal(stepNumber, in.Type, runningTotal); err != nil {
			return decimal.Zero, decimal.Zero, "", err
		}
		remaining := runningTotal.Sub(in.Value)
		return in.Value, remaining, formatDifference(runningTotal, in.Value, remaining), nil

	case models.StepAddition:
		total := runningTotal.Add(in.Value)
		return in.Value, total, formatSum(runningTotal, in.Value, total), nil

	case models.StepCustom:
		return in.Value, in.Value, "Custom value: " + money(in.Value), nil

	default:
		return decimal.Zero, decimal.Zero, "", validationErrorf("Step %d: Unknown step type: %s", stepNumber, in.Type)
	}
}

func requireRunningTotal(stepNumber int, t models.StepType, runningTotal decimal.Decimal) error {
	if runningTotal.IsZero() {
		return validationErrorf(
			"Step %d: %s step requires a previous initial value step or non-zero running total",
			stepNumber, t.Label())
	}
	return nil
}
