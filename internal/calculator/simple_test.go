package calculator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestProcessSimple(t *testing.T) {
	t.Parallel()

	t.Run("applies reductions in order", func(t *testing.T) {
		t.Parallel()
		got, err := ProcessSimple(dec("100"), dec("5.0"), "10,20,30")
		require.NoError(t, err)
		require.True(t, dec("500").Equal(got.InitialBRLNoReduction))
		require.Len(t, got.Steps, 3)
		require.True(t, dec("450").Equal(got.Steps[0].FinalBalance))
		require.True(t, dec("72").Equal(got.Steps[1].ReductionAmount))
		require.True(t, dec("360").Equal(got.Steps[1].FinalBalance))
		require.True(t, dec("252").Equal(got.FinalResult))
		require.Equal(t, "450.00 × 20% = 90.00 (450.00 - 90.00 = 360.00)", got.Steps[1].CalculationDetails)
	})

	t.Run("empty reductions returns converted amount", func(t *testing.T) {
		t.Parallel()
		got, err := ProcessSimple(dec("10"), dec("5.5"), "  ")
		require.NoError(t, err)
		require.Empty(t, got.Steps)
		require.True(t, dec("55").Equal(got.FinalResult))
	})

	t.Run("blank entries are dropped", func(t *testing.T) {
		t.Parallel()
		got, err := ProcessSimple(dec("100"), dec("1"), "10,, ,")
		require.NoError(t, err)
		require.Len(t, got.Steps, 1)
	})

	t.Run("rejects missing amount", func(t *testing.T) {
		t.Parallel()
		_, err := ProcessSimple(decimal.Zero, dec("5"), "")
		require.True(t, IsValidation(err))
		require.ErrorContains(t, err, "Initial amount")
	})

	t.Run("rejects missing rate", func(t *testing.T) {
		t.Parallel()
		_, err := ProcessSimple(dec("10"), dec("-1"), "")
		require.ErrorContains(t, err, "Exchange rate")
	})

	t.Run("rejects non-numeric reduction", func(t *testing.T) {
		t.Parallel()
		_, err := ProcessSimple(dec("10"), dec("5"), "10,abc")
		require.EqualError(t, err, `Invalid reduction percentage: "abc" is not a valid number`)
	})

	t.Run("rejects out of range reduction", func(t *testing.T) {
		t.Parallel()
		_, err := ProcessSimple(dec("10"), dec("5"), "101")
		require.EqualError(t, err, "Invalid reduction percentage: 101 must be between 0 and 100")
		_, err = ProcessSimple(dec("10"), dec("5"), "-1")
		require.ErrorContains(t, err, "between 0 and 100")
	})

	t.Run("full reduction fails", func(t *testing.T) {
		t.Parallel()
		got, err := ProcessSimple(dec("10"), dec("5"), "100")
		require.ErrorContains(t, err, "Reduction would result in zero or negative value")
		require.Nil(t, got.Steps)
	})

	t.Run("near full reduction succeeds", func(t *testing.T) {
		t.Parallel()
		got, err := ProcessSimple(dec("10"), dec("5"), "99.99")
		require.NoError(t, err)
		require.True(t, dec("0.005").Equal(got.FinalResult))
	})

	t.Run("rejects reductions with extreme exponents", func(t *testing.T) {
		t.Parallel()
		for _, token := range []string{"1e-2000000", "1e2000000", "0e-2000000", "1.0000000000001"} {
			_, err := ProcessSimple(dec("100"), dec("5"), token)
			require.EqualError(t, err, `Invalid reduction percentage: "`+token+`" has too many digits`)
		}
	})

	t.Run("rejects amount and rate with extreme exponents", func(t *testing.T) {
		t.Parallel()
		_, err := ProcessSimple(dec("1e2000000"), dec("5"), "")
		require.EqualError(t, err, "Initial amount is out of range")
		_, err = ProcessSimple(dec("100"), dec("1e-2000000"), "")
		require.EqualError(t, err, "Exchange rate is out of range")
	})
}

func TestParseReductions(t *testing.T) {
	t.Parallel()

	got, err := ParseReductions(" 1.5 ,0, 100 ")
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.True(t, dec("1.5").Equal(got[0]))
	require.True(t, got[1].IsZero())

	for _, bad := range []string{"NaN", "Inf", "1.2.3", "5%"} {
		_, err := ParseReductions(bad)
		require.Error(t, err, bad)
		require.True(t, IsValidation(err))
	}
}

func FuzzParseReductions(f *testing.F) {
	f.Add("10,20,30")
	f.Add("")
	f.Add(" , ,")
	f.Add("100")
	f.Add("-0.01")
	f.Add("1e2")
	f.Add("NaN")
	f.Add("99.999999999999999999")
	f.Add("1e-2000000")
	f.Add("1e2000000")

	f.Fuzz(func(t *testing.T, input string) {
		got, err := ParseReductions(input)
		if err != nil {
			if !IsValidation(err) {
				t.Errorf("ParseReductions(%q) returned non-validation error: %v", input, err)
			}
			if got != nil {
				t.Errorf("ParseReductions(%q) returned values with error", input)
			}
			return
		}
		for _, pct := range got {
			if !withinBounds(pct) {
				t.Errorf("ParseReductions(%q) returned unbounded value with exponent %d", input, pct.Exponent())
			}
			if pct.IsNegative() || pct.GreaterThan(hundred) {
				t.Errorf("ParseReductions(%q) returned out of range %s", input, pct)
			}
		}
	})
}
