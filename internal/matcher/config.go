// Package matcher implements the reconciliation core: classification of bank
// statement movements against pools of invoices, payments and salary
// receipts, and the ranking of invoice/receipt candidates for a payment.
//
// Match decisions reconcile several weak signals (tolerant amount equality,
// date proximity windows, CUIT/CUIL identity, keyword overlap, cross-currency
// equivalence) into a totally ordered MatchQuality. The same three-key
// comparison backs every "is this match better" decision, including the
// displacement engine's eviction rule.
//
// Example usage:
//
//	config := matcher.DefaultMatchingConfig()
//	config.CrossCurrencyTolerancePercent = 5
//
//	pm := matcher.NewPaymentMatcher(config, rateProvider)
//	candidates := pm.FindInvoiceMatches(payment, invoices)
package matcher

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MatchingConfig holds the tolerances and date windows used by all matchers.
//
// Date windows are expressed as day offsets of the later document relative to
// the earlier one: for a payment settling an invoice the offset is
// payment date minus issue date, so positive offsets mean the payment came
// after the invoice.
type MatchingConfig struct {
	// AmountTolerance is the absolute tolerance for same-currency amount
	// comparison (currency rounding between systems).
	AmountTolerance decimal.Decimal `json:"amount_tolerance"`

	// CrossCurrencyTolerancePercent is the relative tolerance applied when
	// comparing a local amount against a converted foreign amount (5 = ±5%).
	CrossCurrencyTolerancePercent float64 `json:"cross_currency_tolerance_percent"`

	// HighWindowAfterDays bounds the high-confidence window [0, N] for
	// payment-to-invoice/receipt matching.
	HighWindowAfterDays int `json:"high_window_after_days"`

	// MediumWindowBeforeDays / MediumWindowAfterDays bound the open medium
	// window (-before, +after).
	MediumWindowBeforeDays int `json:"medium_window_before_days"`
	MediumWindowAfterDays  int `json:"medium_window_after_days"`

	// LowWindowBeforeDays / LowWindowAfterDays bound the inclusive low window
	// [-before, +after]. Candidates outside it are discarded entirely.
	// These are the caller-configurable bounds.
	LowWindowBeforeDays int `json:"low_window_before_days"`
	LowWindowAfterDays  int `json:"low_window_after_days"`

	// MovementPaymentToleranceDays is the ± window between a bank movement
	// (transaction or value date) and a payment date.
	MovementPaymentToleranceDays int `json:"movement_payment_tolerance_days"`

	// MovementInvoiceBeforeDays / MovementInvoiceAfterDays bound the window
	// between an invoice issue date and a bank movement: the movement may
	// precede the invoice by up to Before days and follow it by up to After.
	MovementInvoiceBeforeDays int `json:"movement_invoice_before_days"`
	MovementInvoiceAfterDays  int `json:"movement_invoice_after_days"`
}

// DefaultMatchingConfig returns the production defaults.
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		AmountTolerance:               decimal.NewFromFloat(0.01),
		CrossCurrencyTolerancePercent: 5.0,
		HighWindowAfterDays:           15,
		MediumWindowBeforeDays:        3,
		MediumWindowAfterDays:         30,
		LowWindowBeforeDays:           10,
		LowWindowAfterDays:            60,
		MovementPaymentToleranceDays:  1,
		MovementInvoiceBeforeDays:     5,
		MovementInvoiceAfterDays:      30,
	}
}

// Validate checks the configuration for impossible windows or tolerances.
func (mc *MatchingConfig) Validate() error {
	if mc.AmountTolerance.IsNegative() {
		return fmt.Errorf("amount tolerance cannot be negative: %s", mc.AmountTolerance)
	}
	if mc.CrossCurrencyTolerancePercent < 0 || mc.CrossCurrencyTolerancePercent > 100 {
		return fmt.Errorf("cross-currency tolerance percent must be between 0 and 100: %f", mc.CrossCurrencyTolerancePercent)
	}
	if mc.HighWindowAfterDays < 0 {
		return fmt.Errorf("high window cannot be negative: %d", mc.HighWindowAfterDays)
	}
	if mc.MediumWindowBeforeDays < 0 || mc.MediumWindowAfterDays < 0 {
		return fmt.Errorf("medium window bounds cannot be negative: -%d/+%d", mc.MediumWindowBeforeDays, mc.MediumWindowAfterDays)
	}
	if mc.LowWindowBeforeDays < 0 || mc.LowWindowAfterDays < 0 {
		return fmt.Errorf("low window bounds cannot be negative: -%d/+%d", mc.LowWindowBeforeDays, mc.LowWindowAfterDays)
	}
	if mc.LowWindowAfterDays < mc.MediumWindowAfterDays {
		return fmt.Errorf("low window (+%d) must contain the medium window (+%d)", mc.LowWindowAfterDays, mc.MediumWindowAfterDays)
	}
	if mc.MovementPaymentToleranceDays < 0 {
		return fmt.Errorf("movement/payment tolerance cannot be negative: %d", mc.MovementPaymentToleranceDays)
	}
	if mc.MovementInvoiceBeforeDays < 0 || mc.MovementInvoiceAfterDays < 0 {
		return fmt.Errorf("movement/invoice window bounds cannot be negative: -%d/+%d", mc.MovementInvoiceBeforeDays, mc.MovementInvoiceAfterDays)
	}
	return nil
}

// Clone creates a copy of the configuration.
func (mc *MatchingConfig) Clone() *MatchingConfig {
	if mc == nil {
		return nil
	}
	clone := *mc
	return &clone
}

// String returns a human-readable description of the configuration.
func (mc *MatchingConfig) String() string {
	return fmt.Sprintf("MatchingConfig{AmountTolerance: %s, CrossCurrency: %.1f%%, Windows: high [0,%d], medium (-%d,%d), low [-%d,%d]}",
		mc.AmountTolerance, mc.CrossCurrencyTolerancePercent,
		mc.HighWindowAfterDays, mc.MediumWindowBeforeDays, mc.MediumWindowAfterDays,
		mc.LowWindowBeforeDays, mc.LowWindowAfterDays)
}

// withinHighWindow reports whether a day offset falls in the inclusive
// high-confidence window [0, after].
func (mc *MatchingConfig) withinHighWindow(offset int) bool {
	return offset >= 0 && offset <= mc.HighWindowAfterDays
}

// withinMediumWindow reports whether a day offset falls in the open medium
// window (-before, +after).
func (mc *MatchingConfig) withinMediumWindow(offset int) bool {
	return offset > -mc.MediumWindowBeforeDays && offset < mc.MediumWindowAfterDays
}

// withinLowWindow reports whether a day offset falls in the inclusive low
// window [-before, +after].
func (mc *MatchingConfig) withinLowWindow(offset int) bool {
	return offset >= -mc.LowWindowBeforeDays && offset <= mc.LowWindowAfterDays
}
