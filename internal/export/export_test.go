package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/fx-calc/internal/models"
)

func sampleCalculation() *models.Calculation {
	return &models.Calculation{
		ID:            uuid.MustParse("3f1f6c2e-8c44-4a52-9d55-1f7c0f1b2a10"),
		UserID:        "user-1",
		InitialAmount: decimal.RequireFromString("3000"),
		FinalAmount:   decimal.RequireFromString("15770.48616"),
		CurrencyCode:  "BRL",
		CreatedAt:     time.Date(2026, 2, 14, 10, 30, 0, 0, time.UTC),
		Steps: []models.CalculationStep{
			{
				Step: 1, Description: "Salary", CalculationDetails: "Initial value: 3000.00",
				ResultIntermediate: decimal.RequireFromString("3000"), ResultRunningTotal: decimal.RequireFromString("3000"),
			},
			{
				Step: 2, Description: "USD to BRL", CalculationDetails: "3000.00 × 5.673 = 17019.00",
				ResultIntermediate: decimal.RequireFromString("17019"), ResultRunningTotal: decimal.RequireFromString("17019"),
				Explanation: "Commercial rate",
			},
			{
				Step: 3, Description: "Wire fee", CalculationDetails: "17019.00 × 1% = 170.19 (17019.00 - 170.19 = 16848.81)",
				ResultIntermediate: decimal.RequireFromString("16848.81"), ResultRunningTotal: decimal.RequireFromString("16848.81"),
			},
			{
				Step: 4, Description: "Tax", CalculationDetails: "16848.81 × 6.4% = 1078.32384 (16848.81 - 1078.32384 = 15770.48616)",
				ResultIntermediate: decimal.RequireFromString("15770.48616"), ResultRunningTotal: decimal.RequireFromString("15770.48616"),
			},
		},
	}
}

func TestCalculationCSV(t *testing.T) {
	t.Parallel()

	data, err := CalculationCSV(sampleCalculation())
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 6) // header + 4 steps + final

	require.Equal(t, []string{"Step", "Description", "Details", "Intermediate", "Running Total", "Explanation"}, records[0])
	require.Equal(t, []string{"2", "USD to BRL", "3000.00 × 5.673 = 17019.00", "17019.00", "17019.00", "Commercial rate"}, records[2])
	require.Equal(t, "15770.49", records[4][4])
	require.Equal(t, []string{"", "Final result", "", "", "15770.49", ""}, records[5])
}

func TestCalculationCSV_NoSteps(t *testing.T) {
	t.Parallel()

	calc := sampleCalculation()
	calc.Steps = nil
	data, err := CalculationCSV(calc)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
}

func TestCalculationText(t *testing.T) {
	t.Parallel()

	out := string(CalculationText(sampleCalculation()))
	require.Contains(t, out, "Calculation 3f1f6c2e-8c44-4a52-9d55-1f7c0f1b2a10")
	require.Contains(t, out, "Initial amount: 3000.00")
	require.Contains(t, out, "2. USD to BRL")
	require.Contains(t, out, "   Note: Commercial rate")
	require.Contains(t, out, "Final result: R$ 15770.49")
}

func TestFilename(t *testing.T) {
	t.Parallel()

	require.Equal(t, "calculation_2026-02-14_3f1f6c2e.csv", Filename(sampleCalculation(), "csv"))
}

func TestBreakdownChart(t *testing.T) {
	t.Parallel()

	t.Run("renders png", func(t *testing.T) {
		t.Parallel()
		png, err := BreakdownChart(sampleCalculation())
		require.NoError(t, err)
		require.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
	})

	t.Run("nothing to chart", func(t *testing.T) {
		t.Parallel()
		calc := sampleCalculation()
		calc.Steps = nil
		calc.FinalAmount = decimal.Zero
		_, err := BreakdownChart(calc)
		require.ErrorIs(t, err, ErrNothingToChart)
	})
}

func TestBreakdown(t *testing.T) {
	t.Parallel()

	names, values := breakdown(sampleCalculation())
	require.Equal(t, []string{"Final amount", "Wire fee", "Tax"}, names)
	require.Len(t, values, 3)
	require.InDelta(t, 170.19, values[1], 1e-9)
	require.InDelta(t, 1078.32384, values[2], 1e-9)
}
