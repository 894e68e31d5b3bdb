// Package export renders stored calculations as CSV, plain text and charts.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"gitlab.com/yelinaung/fx-calc/internal/models"
)

// CalculationCSV renders the calculation's steps, one row each, followed by
// a final result row.
func CalculationCSV(calc *models.Calculation) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{"Step", "Description", "Details", "Intermediate", "Running Total", "Explanation"}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i := range calc.Steps {
		s := calc.Steps[i]
		row := []string{
			strconv.Itoa(s.Step),
			s.Description,
			s.CalculationDetails,
			s.ResultIntermediate.StringFixed(2),
			s.ResultRunningTotal.StringFixed(2),
			s.Explanation,
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	if err := writer.Write([]string{"", "Final result", "", "", calc.FinalAmount.StringFixed(2), ""}); err != nil {
		return nil, fmt.Errorf("failed to write CSV row: %w", err)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// Filename returns "calculation_{date}_{shortid}.{ext}".
func Filename(calc *models.Calculation, ext string) string {
	id := calc.ID.String()
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("calculation_%s_%s.%s", calc.CreatedAt.UTC().Format("2006-01-02"), id, ext)
}
