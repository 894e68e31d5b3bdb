package export

import (
	"errors"
	"fmt"

	"github.com/go-analyze/charts"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/fx-calc/internal/models"
)

// ErrNothingToChart is returned when a calculation has no positive slices.
var ErrNothingToChart = errors.New("nothing to chart")

// BreakdownChart renders a PNG pie chart splitting the peak running total
// into the final amount and every step that lowered it.
func BreakdownChart(calc *models.Calculation) ([]byte, error) {
	names, values := breakdown(calc)
	if len(values) == 0 {
		return nil, ErrNothingToChart
	}

	p, err := charts.PieRender(
		values,
		charts.TitleOptionFunc(charts.TitleOption{
			Text: fmt.Sprintf("Calculation Breakdown - %s", calc.CreatedAt.UTC().Format("2006-01-02")),
		}),
		charts.LegendLabelsOptionFunc(names),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	return buf, nil
}

// breakdown returns slice labels and sizes. Steps whose running total did not
// drop are skipped.
func breakdown(calc *models.Calculation) ([]string, []float64) {
	var (
		names  []string
		values []float64
	)

	if calc.FinalAmount.IsPositive() {
		names = append(names, "Final amount")
		values = append(values, calc.FinalAmount.InexactFloat64())
	}

	previous := decimal.Zero
	for i, s := range calc.Steps {
		if i > 0 {
			if drop := previous.Sub(s.ResultRunningTotal); drop.IsPositive() {
				names = append(names, s.Description)
				values = append(values, drop.InexactFloat64())
			}
		}
		previous = s.ResultRunningTotal
	}

	return names, values
}
