package lexical

import "github.com/shopspring/decimal"

// DefaultAmountTolerance is the absolute tolerance used for same-currency
// amount comparison. Currency rounding between systems makes exact equality
// unreliable.
var DefaultAmountTolerance = decimal.NewFromFloat(0.01)

// AmountsEqual reports whether two amounts match within the given absolute
// tolerance. Signs are ignored: statement debits arrive negative in some
// sources.
func AmountsEqual(a, b, tolerance decimal.Decimal) bool {
	return a.Abs().Sub(b.Abs()).Abs().LessThanOrEqual(tolerance)
}

// CrossCurrencyEqual reports whether a local-currency amount is equivalent to
// a foreign-currency amount converted at the given historical rate, within a
// percentage tolerance. Exchange equivalence is inherently approximate, so
// the tolerance is relative rather than absolute.
func CrossCurrencyEqual(local, foreign, rate decimal.Decimal, tolerancePercent float64) bool {
	if rate.IsZero() || foreign.IsZero() {
		return false
	}

	expected := foreign.Abs().Mul(rate.Abs())
	diff := local.Abs().Sub(expected).Abs()
	limit := expected.Mul(decimal.NewFromFloat(tolerancePercent / 100.0))
	return diff.LessThanOrEqual(limit)
}
