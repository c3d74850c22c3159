package matcher

import (
	"fmt"
	"sort"
	"strings"

	"conciliador/internal/lexical"
	"conciliador/internal/models"
	"conciliador/internal/rates"
	"conciliador/pkg/logger"

	"github.com/shopspring/decimal"
)

// MovementMatchType classifies what a bank statement line was matched to.
type MovementMatchType string

const (
	// MatchBankFee marks taxes, commissions and other bank charges.
	MatchBankFee MovementMatchType = "bank_fee"
	// MatchCreditCard marks credit card statement settlements.
	MatchCreditCard MovementMatchType = "credit_card_payment"
	// MatchPaymentInvoice marks a movement matched to a payment that already
	// references an invoice. Strongest possible result.
	MatchPaymentInvoice MovementMatchType = "pago_factura"
	// MatchDirectInvoice marks a movement matched directly to an invoice.
	MatchDirectInvoice MovementMatchType = "direct_factura"
	// MatchReceipt marks a movement matched to a salary receipt.
	MatchReceipt MovementMatchType = "recibo"
	// MatchPaymentOnly marks a movement matched to a payment with no linked
	// invoice; needs manual review.
	MatchPaymentOnly MovementMatchType = "pago_only"
	// MatchNone marks a movement with no acceptable candidate.
	MatchNone MovementMatchType = "no_match"
)

// String returns the string representation of the movement match type.
func (mt MovementMatchType) String() string {
	return string(mt)
}

// MovementMatch is the ranked decision for one bank statement line.
type MovementMatch struct {
	Type        MovementMatchType      `json:"type"`
	Description string                 `json:"description"`
	Confidence  models.MatchConfidence `json:"confidence"`
	TaxID       string                 `json:"tax_id,omitempty"`
	Reasons     []string               `json:"reasons"`
}

// feePhrases are known bank charge concepts: tax withholdings, account
// maintenance, transfer commissions and VAT lines on those fees.
var feePhrases = []string{
	"IMP.LEY",
	"IMP. LEY",
	"LEY 25413",
	"IMP.DEB",
	"IMPUESTO",
	"PERCEPCION",
	"PERCEPCIONES",
	"RETENCION",
	"SIRCREB",
	"COMISION",
	"COMISIONES",
	"MANTENIMIENTO",
	"IVA TASA",
	"IVA COMISION",
	"GASTOS",
}

// cardPhrases identify credit card statement settlements.
var cardPhrases = []string{
	"PAGO TARJETA",
	"TARJETA DE CREDITO",
	"PAGO TARJ",
	"VISA",
	"MASTERCARD",
	"AMEX",
}

// directDebitPhrases identify automatic/direct-debit charges. Only these
// movements may match an invoice on keyword overlap alone.
var directDebitPhrases = []string{
	"DEBITO AUTOMATICO",
	"DEB.AUT",
	"DEB. AUT",
	"DEB AUTOM",
	"DEBIN",
	"PAGO AUTOMATICO",
}

// MovementMatcher classifies single bank movements against the full pool of
// invoices, receipts and payments. It holds no per-movement state; the only
// configuration beyond tolerances is the injected rate provider used for
// foreign-currency invoices.
type MovementMatcher struct {
	config *MatchingConfig
	rates  rates.Provider
	logger logger.Logger
}

// NewMovementMatcher creates a movement matcher. A nil config falls back to
// defaults; a nil rate provider disables cross-currency matching.
func NewMovementMatcher(config *MatchingConfig, rateProvider rates.Provider) *MovementMatcher {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	return &MovementMatcher{
		config: config,
		rates:  rateProvider,
		logger: logger.GetGlobalLogger().WithComponent("movement_matcher"),
	}
}

// MatchMovement decides what a bank statement line corresponds to. The stages
// run in fixed order and the first applicable one wins:
//
//	1. bank fee/charge phrase           -> bank_fee
//	2. no debit amount                  -> no_match
//	3. credit card settlement phrase    -> credit_card_payment
//	4. tax-ID extraction from concept
//	5. payment with linked invoice      -> pago_factura
//	6. direct invoice match             -> direct_factura
//	7. salary receipt match             -> recibo
//	8. payment without invoice          -> pago_only (manual review)
//	9. otherwise                        -> no_match
func (mm *MovementMatcher) MatchMovement(
	mv *models.BankMovement,
	invoices []*models.Invoice,
	receipts []*models.Receipt,
	payments []*models.Payment,
) *MovementMatch {
	concept := lexical.NormalizeText(mv.Concept)

	if phrase, ok := containsAny(concept, feePhrases); ok {
		return &MovementMatch{
			Type:        MatchBankFee,
			Description: "Gastos bancarios",
			Confidence:  models.ConfidenceHigh,
			Reasons:     []string{fmt.Sprintf("concepto coincide con gasto bancario (%s)", phrase)},
		}
	}

	if !mv.HasDebit() {
		return &MovementMatch{
			Type:    MatchNone,
			Reasons: []string{"sin importe de débito"},
		}
	}

	if phrase, ok := containsAny(concept, cardPhrases); ok {
		return &MovementMatch{
			Type:        MatchCreditCard,
			Description: "Pago tarjeta de crédito",
			Confidence:  models.ConfidenceHigh,
			Reasons:     []string{fmt.Sprintf("concepto coincide con pago de tarjeta (%s)", phrase)},
		}
	}

	taxID := lexical.ExtractCUIT(mv.Concept)

	paymentCands := mm.rankPayments(mv, payments, taxID)
	if len(paymentCands) > 0 {
		best := paymentCands[0]
		if best.payment.IsMatched() {
			return mm.buildPaymentInvoiceMatch(best, invoices, taxID)
		}
	}

	if result := mm.matchDirectInvoice(mv, invoices, taxID, concept); result != nil {
		return result
	}

	if result := mm.matchReceipt(mv, receipts); result != nil {
		return result
	}

	if len(paymentCands) > 0 {
		best := paymentCands[0]
		reasons := append(best.reasons, "pago sin factura asociada")
		return &MovementMatch{
			Type:        MatchPaymentOnly,
			Description: fmt.Sprintf("Pago %s a %s - revisar manualmente", best.payment.ID, best.payment.CounterpartyName),
			Confidence:  models.ConfidenceLow,
			TaxID:       taxID,
			Reasons:     reasons,
		}
	}

	return &MovementMatch{
		Type:    MatchNone,
		TaxID:   taxID,
		Reasons: []string{"sin candidatos compatibles"},
	}
}

// paymentCandidate is an internal ranking entry for stage 5/8.
type paymentCandidate struct {
	payment    *models.Payment
	taxIDMatch bool
	proximity  int
	reasons    []string
}

// rankPayments finds payments whose amount matches the debit and whose date
// is within the configured tolerance of either the transaction or the value
// date, preferring beneficiary tax-ID matches and then nearer dates.
func (mm *MovementMatcher) rankPayments(mv *models.BankMovement, payments []*models.Payment, taxID string) []*paymentCandidate {
	debit := mv.DebitAmount()

	var candidates []*paymentCandidate
	for _, p := range payments {
		if p.PaymentDate.IsZero() {
			continue
		}
		if !lexical.AmountsEqual(debit, p.Amount, mm.config.AmountTolerance) {
			continue
		}

		proximity := lexical.DayDistance(p.PaymentDate, mv.TransactionDate)
		if !mv.ValueDate.IsZero() {
			if d := lexical.DayDistance(p.PaymentDate, mv.ValueDate); d < proximity {
				proximity = d
			}
		}
		if proximity > mm.config.MovementPaymentToleranceDays {
			continue
		}

		cand := &paymentCandidate{
			payment:   p,
			proximity: proximity,
			reasons: []string{
				"importe coincide con pago " + p.ID,
				fmt.Sprintf("fecha a %d día(s)", proximity),
			},
		}
		if taxID != "" && lexical.SameTaxID(taxID, p.CounterpartyTaxID) {
			cand.taxIDMatch = true
			cand.reasons = append(cand.reasons, "CUIT del beneficiario coincide")
		}
		candidates = append(candidates, cand)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].taxIDMatch != candidates[j].taxIDMatch {
			return candidates[i].taxIDMatch
		}
		return candidates[i].proximity < candidates[j].proximity
	})
	return candidates
}

// buildPaymentInvoiceMatch surfaces the invoice already referenced by the
// matched payment. When the invoice is in the pool its description is used;
// otherwise the payment's own description stands in.
func (mm *MovementMatcher) buildPaymentInvoiceMatch(best *paymentCandidate, invoices []*models.Invoice, taxID string) *MovementMatch {
	description := best.payment.Description
	for _, inv := range invoices {
		if inv.ID == best.payment.MatchedInvoiceID {
			description = inv.Description
			if description == "" {
				description = inv.IssuerName
			}
			break
		}
	}
	if description == "" {
		description = fmt.Sprintf("Pago %s", best.payment.ID)
	}

	reasons := append(best.reasons, "pago con factura asociada "+best.payment.MatchedInvoiceID)
	return &MovementMatch{
		Type:        MatchPaymentInvoice,
		Description: description,
		Confidence:  models.ConfidenceHigh,
		TaxID:       taxID,
		Reasons:     reasons,
	}
}

// invoiceCandidate is an internal ranking entry for stage 6.
type invoiceCandidate struct {
	invoice       *models.Invoice
	taxIDMatch    bool
	keywordScore  int
	proximity     int
	crossCurrency bool
	reasons       []string
}

// matchDirectInvoice searches invoices whose amount matches the debit (using
// cross-currency equivalence for foreign-currency invoices) and whose issue
// date falls inside the movement window. An issuer tax-ID match always
// qualifies; keyword overlap only qualifies for automatic/direct-debit
// movements.
func (mm *MovementMatcher) matchDirectInvoice(mv *models.BankMovement, invoices []*models.Invoice, taxID, concept string) *MovementMatch {
	debit := mv.DebitAmount()
	_, directDebit := containsAny(concept, directDebitPhrases)
	tokens := lexical.Tokenize(mv.Concept)

	var candidates []*invoiceCandidate
	for _, inv := range invoices {
		if inv.IssueDate.IsZero() {
			continue
		}

		cross, ok := mm.amountMatchesInvoice(debit, inv)
		if !ok {
			continue
		}

		offset := lexical.DayOffset(inv.IssueDate, mv.TransactionDate)
		if offset < -mm.config.MovementInvoiceBeforeDays || offset > mm.config.MovementInvoiceAfterDays {
			continue
		}

		cand := &invoiceCandidate{
			invoice:       inv,
			proximity:     abs(offset),
			crossCurrency: cross,
		}

		if taxID != "" && lexical.SameTaxID(taxID, inv.IssuerTaxID) {
			cand.taxIDMatch = true
			cand.reasons = append(cand.reasons, "CUIT del emisor coincide")
		} else if directDebit {
			cand.keywordScore = lexical.KeywordScore(tokens, inv.IssuerName, inv.Description)
			if cand.keywordScore < lexical.MinKeywordScore {
				continue
			}
			cand.reasons = append(cand.reasons, fmt.Sprintf("coincidencia por palabras clave (puntaje %d)", cand.keywordScore))
		} else {
			continue
		}

		cand.reasons = append(cand.reasons, "importe coincide con factura "+inv.ID,
			fmt.Sprintf("fecha a %d día(s)", cand.proximity))
		if cross {
			cand.reasons = append(cand.reasons, fmt.Sprintf("equivalencia cambiaria %s dentro de %.1f%%", inv.Currency, mm.config.CrossCurrencyTolerancePercent))
		}
		candidates = append(candidates, cand)
	}

	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.taxIDMatch != b.taxIDMatch {
			return a.taxIDMatch
		}
		if a.keywordScore != b.keywordScore {
			return a.keywordScore > b.keywordScore
		}
		return a.proximity < b.proximity
	})

	best := candidates[0]
	confidence := models.ConfidenceMedium
	if best.taxIDMatch {
		confidence = models.ConfidenceHigh
	}
	// Foreign-exchange equivalence is approximate; cap the tier.
	if best.crossCurrency {
		if best.taxIDMatch {
			confidence = models.ConfidenceMedium
		} else {
			confidence = models.ConfidenceLow
		}
	}

	description := best.invoice.Description
	if description == "" {
		description = best.invoice.IssuerName
	}
	return &MovementMatch{
		Type:        MatchDirectInvoice,
		Description: fmt.Sprintf("Factura %s - %s", best.invoice.ID, description),
		Confidence:  confidence,
		TaxID:       taxID,
		Reasons:     best.reasons,
	}
}

// matchReceipt searches salary receipts by net amount and date proximity.
// Bank lines carry no employee identity, so proximity is the only ranking key.
func (mm *MovementMatcher) matchReceipt(mv *models.BankMovement, receipts []*models.Receipt) *MovementMatch {
	debit := mv.DebitAmount()

	var best *models.Receipt
	bestProximity := 0
	for _, r := range receipts {
		if r.PaymentDate.IsZero() {
			continue
		}
		if !lexical.AmountsEqual(debit, r.NetAmount, mm.config.AmountTolerance) {
			continue
		}

		offset := lexical.DayOffset(r.PaymentDate, mv.TransactionDate)
		if offset < -mm.config.MovementInvoiceBeforeDays || offset > mm.config.MovementInvoiceAfterDays {
			continue
		}

		proximity := abs(offset)
		if best == nil || proximity < bestProximity {
			best = r
			bestProximity = proximity
		}
	}

	if best == nil {
		return nil
	}
	return &MovementMatch{
		Type:        MatchReceipt,
		Description: fmt.Sprintf("Recibo de sueldo - %s", best.EmployeeName),
		Confidence:  models.ConfidenceMedium,
		Reasons: []string{
			"importe coincide con recibo " + best.ID,
			fmt.Sprintf("fecha a %d día(s)", bestProximity),
		},
	}
}

// amountMatchesInvoice compares the debit against the invoice total,
// converting foreign-currency totals at the historical rate for the issue
// date. The first return reports whether the match was cross-currency.
func (mm *MovementMatcher) amountMatchesInvoice(debit decimal.Decimal, inv *models.Invoice) (cross bool, ok bool) {
	if !inv.Currency.IsForeign() {
		return false, lexical.AmountsEqual(debit, inv.Total, mm.config.AmountTolerance)
	}

	if mm.rates == nil {
		return false, false
	}
	rate, found := mm.rates.RateFor(inv.Currency, inv.IssueDate)
	if !found {
		return false, false
	}
	return true, lexical.CrossCurrencyEqual(debit, inv.Total, rate, mm.config.CrossCurrencyTolerancePercent)
}

func containsAny(haystack string, phrases []string) (string, bool) {
	for _, phrase := range phrases {
		if strings.Contains(haystack, phrase) {
			return phrase, true
		}
	}
	return "", false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
