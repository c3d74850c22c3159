package matcher

import (
	"fmt"
	"sort"

	"conciliador/internal/lexical"
	"conciliador/internal/models"
	"conciliador/internal/rates"
	"conciliador/pkg/logger"
)

// MatchCandidate is a proposed pairing between a payment and an invoice or
// receipt, carrying the comparable quality, human-readable reasons, and — when
// the target already has an assignment — enough of the existing assignment to
// compare old vs. new without re-querying.
type MatchCandidate struct {
	Payment *models.Payment
	Target  models.Document

	Quality MatchQuality
	Reasons []string

	// IsUpgrade is true when the target already carries an assignment that
	// accepting this candidate would replace.
	IsUpgrade          bool
	ExistingConfidence models.MatchConfidence
	// ExistingProximityDays is -1 when the previous counterpart's date is not
	// derivable from the target alone.
	ExistingProximityDays int
}

// PaymentMatcher ranks invoice and receipt candidates for a single payment.
// Stateless aside from the configured date-window tiers and the injected
// rate provider.
type PaymentMatcher struct {
	config *MatchingConfig
	rates  rates.Provider
	logger logger.Logger
}

// NewPaymentMatcher creates a payment matcher. A nil config falls back to
// defaults; a nil rate provider disables cross-currency matching.
func NewPaymentMatcher(config *MatchingConfig, rateProvider rates.Provider) *PaymentMatcher {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	return &PaymentMatcher{
		config: config,
		rates:  rateProvider,
		logger: logger.GetGlobalLogger().WithComponent("payment_matcher"),
	}
}

// Config returns the matcher's configuration.
func (pm *PaymentMatcher) Config() *MatchingConfig {
	return pm.config
}

// FindInvoiceMatches ranks all compatible invoices for a payment, best first.
// Candidates outside the low date window are discarded entirely.
func (pm *PaymentMatcher) FindInvoiceMatches(payment *models.Payment, invoices []*models.Invoice) []*MatchCandidate {
	var candidates []*MatchCandidate
	for _, inv := range invoices {
		if cand, ok := pm.ScoreInvoice(payment, inv); ok {
			candidates = append(candidates, cand)
		}
	}
	SortCandidates(candidates)
	return candidates
}

// FindReceiptMatches ranks all compatible salary receipts for a payment,
// best first.
func (pm *PaymentMatcher) FindReceiptMatches(payment *models.Payment, receipts []*models.Receipt) []*MatchCandidate {
	var candidates []*MatchCandidate
	for _, r := range receipts {
		if cand, ok := pm.ScoreReceipt(payment, r); ok {
			candidates = append(candidates, cand)
		}
	}
	SortCandidates(candidates)
	return candidates
}

// ScoreInvoice evaluates a single payment/invoice pairing. The boolean result
// is false when the pairing does not qualify at any tier.
func (pm *PaymentMatcher) ScoreInvoice(payment *models.Payment, inv *models.Invoice) (*MatchCandidate, bool) {
	if inv.IssueDate.IsZero() || payment.PaymentDate.IsZero() {
		return nil, false
	}

	cross, ok := pm.amountMatches(payment, inv)
	if !ok {
		return nil, false
	}

	offset := lexical.DayOffset(inv.IssueDate, payment.PaymentDate)
	if !pm.config.withinLowWindow(offset) {
		return nil, false
	}

	identity := lexical.SameTaxID(payment.CounterpartyTaxID, inv.IssuerTaxID)
	nameMatch := !identity && lexical.NameOverlaps(payment.CounterpartyName, inv.IssuerName)

	cand := &MatchCandidate{
		Payment: payment,
		Target:  models.InvoiceDocument(inv),
		Quality: MatchQuality{
			Confidence:        pm.deriveConfidence(offset, identity || nameMatch, cross, identity),
			IdentityMatched:   identity,
			DateProximityDays: abs(offset),
		},
	}

	cand.Reasons = append(cand.Reasons, "importe coincide con factura "+inv.ID)
	if cross {
		cand.Reasons = append(cand.Reasons, fmt.Sprintf("equivalencia cambiaria %s dentro de %.1f%%", inv.Currency, pm.config.CrossCurrencyTolerancePercent))
	}
	if identity {
		cand.Reasons = append(cand.Reasons, "CUIT del emisor coincide")
	} else if nameMatch {
		cand.Reasons = append(cand.Reasons, "nombre del emisor coincide")
	}
	cand.Reasons = append(cand.Reasons, fmt.Sprintf("fecha a %d día(s)", abs(offset)))

	pm.annotateUpgrade(cand, inv.MatchedPaymentID, inv.MatchConfidence)
	return cand, true
}

// ScoreReceipt evaluates a single payment/receipt pairing. Receipts are
// always in the local currency, so only tolerant equality applies.
func (pm *PaymentMatcher) ScoreReceipt(payment *models.Payment, r *models.Receipt) (*MatchCandidate, bool) {
	if r.PaymentDate.IsZero() || payment.PaymentDate.IsZero() {
		return nil, false
	}
	if !lexical.AmountsEqual(payment.Amount, r.NetAmount, pm.config.AmountTolerance) {
		return nil, false
	}

	offset := lexical.DayOffset(r.PaymentDate, payment.PaymentDate)
	if !pm.config.withinLowWindow(offset) {
		return nil, false
	}

	identity := lexical.SameTaxID(payment.CounterpartyTaxID, r.EmployeeTaxID)
	nameMatch := !identity && lexical.NameOverlaps(payment.CounterpartyName, r.EmployeeName)

	cand := &MatchCandidate{
		Payment: payment,
		Target:  models.ReceiptDocument(r),
		Quality: MatchQuality{
			Confidence:        pm.deriveConfidence(offset, identity || nameMatch, false, identity),
			IdentityMatched:   identity,
			DateProximityDays: abs(offset),
		},
	}

	cand.Reasons = append(cand.Reasons, "importe coincide con recibo "+r.ID)
	if identity {
		cand.Reasons = append(cand.Reasons, "CUIL del empleado coincide")
	} else if nameMatch {
		cand.Reasons = append(cand.Reasons, "nombre del empleado coincide")
	}
	cand.Reasons = append(cand.Reasons, fmt.Sprintf("fecha a %d día(s)", abs(offset)))

	pm.annotateUpgrade(cand, r.MatchedPaymentID, r.MatchConfidence)
	return cand, true
}

// deriveConfidence applies the window tiers and cross-currency caps:
//
//   - outside the medium window        -> low, regardless of any signal
//   - inside medium/high with an identity or name signal -> high
//   - inside medium/high without support                 -> medium
//   - cross-currency caps: medium with identity, low without
func (pm *PaymentMatcher) deriveConfidence(offset int, supported, cross, identity bool) models.MatchConfidence {
	var confidence models.MatchConfidence
	switch {
	case !pm.config.withinMediumWindow(offset) && !pm.config.withinHighWindow(offset):
		confidence = models.ConfidenceLow
	case supported:
		confidence = models.ConfidenceHigh
	default:
		confidence = models.ConfidenceMedium
	}

	if cross {
		limit := models.ConfidenceLow
		if identity {
			limit = models.ConfidenceMedium
		}
		if limit.Less(confidence) {
			confidence = limit
		}
	}
	return confidence
}

// annotateUpgrade records the target's existing assignment so callers can
// compare old vs. new without re-querying. The previous counterpart's date
// is not available from the target alone, hence the -1 proximity.
func (pm *PaymentMatcher) annotateUpgrade(cand *MatchCandidate, matchedPaymentID string, existing models.MatchConfidence) {
	cand.ExistingProximityDays = -1
	if matchedPaymentID != "" && matchedPaymentID != cand.Payment.ID {
		cand.IsUpgrade = true
		cand.ExistingConfidence = existing
	}
}

func (pm *PaymentMatcher) amountMatches(payment *models.Payment, inv *models.Invoice) (cross bool, ok bool) {
	if !inv.Currency.IsForeign() || inv.Currency == payment.Currency {
		return false, lexical.AmountsEqual(payment.Amount, inv.Total, pm.config.AmountTolerance)
	}

	if pm.rates == nil {
		return false, false
	}
	rate, found := pm.rates.RateFor(inv.Currency, inv.IssueDate)
	if !found {
		return false, false
	}
	return true, lexical.CrossCurrencyEqual(payment.Amount, inv.Total, rate, pm.config.CrossCurrencyTolerancePercent)
}

// SortCandidates orders candidates best first using the shared quality
// comparator.
func SortCandidates(candidates []*MatchCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return CompareQuality(candidates[i].Quality, candidates[j].Quality) > 0
	})
}
