package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// money formats an amount for display with two decimal places.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatProduct(amount, factor, result decimal.Decimal) string {
	return fmt.Sprintf("%s × %s = %s", money(amount), factor.String(), money(result))
}

func formatPercentage(amount, pct, portion, remaining decimal.Decimal) string {
	return fmt.Sprintf("%s × %s%% = %s (%s - %s = %s)",
		money(amount), pct.String(), money(portion),
		money(amount), money(portion), money(remaining))
}

func formatDifference(amount, subtrahend, result decimal.Decimal) string {
	return fmt.Sprintf("%s - %s = %s", money(amount), money(subtrahend), money(result))
}

func formatSum(amount, addend, result decimal.Decimal) string {
	return fmt.Sprintf("%s + %s = %s", money(amount), money(addend), money(result))
}
