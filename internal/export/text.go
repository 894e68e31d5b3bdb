package export

import (
	"fmt"
	"strings"

	"gitlab.com/yelinaung/fx-calc/internal/models"
)

// CalculationText renders a plain-text receipt of the calculation.
func CalculationText(calc *models.Calculation) []byte {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Calculation %s\n", calc.ID)
	fmt.Fprintf(&sb, "Date: %s\n", calc.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "Initial amount: %s\n", calc.InitialAmount.StringFixed(2))
	sb.WriteString(strings.Repeat("-", 40) + "\n")

	for _, s := range calc.Steps {
		fmt.Fprintf(&sb, "%d. %s\n", s.Step, s.Description)
		fmt.Fprintf(&sb, "   %s\n", s.CalculationDetails)
		fmt.Fprintf(&sb, "   Running total: %s\n", s.ResultRunningTotal.StringFixed(2))
		if s.Explanation != "" {
			fmt.Fprintf(&sb, "   Note: %s\n", s.Explanation)
		}
	}

	sb.WriteString(strings.Repeat("-", 40) + "\n")
	fmt.Fprintf(&sb, "Final result: %s %s\n", formatCurrency(calc.CurrencyCode), calc.FinalAmount.StringFixed(2))
	return []byte(sb.String())
}

func formatCurrency(code string) string {
	if c, ok := models.NewCurrencyRegistry().Lookup(code); ok {
		return c.Symbol
	}
	return code
}
