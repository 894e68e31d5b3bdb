package calculator

import "github.com/shopspring/decimal"

// Limits on user-supplied numbers. Decimal arithmetic scales with the
// exponent, so a short input such as "1e-2000000" must be rejected before it
// reaches Mul, Div or a comparison.
const (
	maxIntegerDigits     = 18
	maxFractionDigits    = 12
	maxSignificantDigits = 30
)

// withinBounds reports whether d has at most maxIntegerDigits before the
// decimal point, maxFractionDigits after it and maxSignificantDigits in
// total. It only inspects the coefficient and exponent.
func withinBounds(d decimal.Decimal) bool {
	exp := int(d.Exponent())
	if exp < -maxFractionDigits {
		return false
	}
	digits := d.NumDigits()
	return digits <= maxSignificantDigits && digits+exp <= maxIntegerDigits
}
