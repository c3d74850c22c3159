// Package models defines the typed records that flow through the reconciliation
// core: invoices, payments, salary receipts and bank statement movements, plus
// the match-state values shared by the matchers and the displacement engine.
//
// Records are produced by upstream extraction/persistence collaborators and are
// assumed to be already validated for organizational role. The engine only ever
// mutates match state, never the document data itself.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Currency identifies the currency of a monetary amount.
type Currency string

const (
	// CurrencyARS is the local currency (Argentine peso).
	CurrencyARS Currency = "ARS"
	// CurrencyUSD is the most common foreign currency on invoices.
	CurrencyUSD Currency = "USD"
)

// IsForeign reports whether the currency differs from the local currency.
func (c Currency) IsForeign() bool {
	return c != "" && c != CurrencyARS
}

// String returns the string representation of the currency.
func (c Currency) String() string {
	return string(c)
}

// ParseCurrency normalizes the currency spellings found in exports. An empty
// value defaults to the local currency.
func ParseCurrency(s string) Currency {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "ARS", "$", "PESOS", "PES":
		return CurrencyARS
	case "USD", "U$S", "US$", "DOLARES", "DOL":
		return CurrencyUSD
	default:
		return Currency(strings.ToUpper(strings.TrimSpace(s)))
	}
}

// MatchConfidence is the ordered confidence tier of a match.
// Higher values always indicate a stronger match.
type MatchConfidence int

const (
	// ConfidenceNone means no match has been established.
	ConfidenceNone MatchConfidence = iota
	// ConfidenceLow covers amount-only matches and heavily discounted
	// signals such as cross-currency equivalence without identity support.
	ConfidenceLow
	// ConfidenceMedium covers amount+date matches and relaxed identity signals.
	ConfidenceMedium
	// ConfidenceHigh covers strong identity matches with tight date proximity.
	ConfidenceHigh
)

// String returns the string representation of the confidence tier.
func (mc MatchConfidence) String() string {
	switch mc {
	case ConfidenceLow:
		return "low"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceHigh:
		return "high"
	case ConfidenceNone:
		return "none"
	default:
		return "unknown"
	}
}

// Less reports whether mc is a strictly weaker tier than other.
func (mc MatchConfidence) Less(other MatchConfidence) bool {
	return mc < other
}

// ParseMatchConfidence parses a confidence tier from its string form.
func ParseMatchConfidence(s string) (MatchConfidence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return ConfidenceLow, nil
	case "medium":
		return ConfidenceMedium, nil
	case "high":
		return ConfidenceHigh, nil
	case "none", "":
		return ConfidenceNone, nil
	default:
		return ConfidenceNone, fmt.Errorf("invalid match confidence: %q", s)
	}
}

// Invoice is an issued invoice (factura) extracted from a source document.
type Invoice struct {
	ID          string          `json:"id"`
	IssueDate   time.Time       `json:"issue_date"`
	IssuerTaxID string          `json:"issuer_tax_id"`
	IssuerName  string          `json:"issuer_name"`
	Total       decimal.Decimal `json:"total"`
	Currency    Currency        `json:"currency"`
	Description string          `json:"description"`

	// Match state, owned by the displacement engine.
	MatchedPaymentID string          `json:"matched_payment_id,omitempty"`
	MatchConfidence  MatchConfidence `json:"match_confidence,omitempty"`
	Paid             bool            `json:"paid,omitempty"`
}

// Validate performs basic shape validation on the invoice.
func (inv *Invoice) Validate() error {
	if strings.TrimSpace(inv.ID) == "" {
		return fmt.Errorf("invoice ID cannot be empty")
	}
	if inv.Total.IsZero() {
		return fmt.Errorf("invoice total cannot be zero")
	}
	if inv.IssueDate.IsZero() {
		return fmt.Errorf("invoice issue date cannot be zero")
	}
	return nil
}

// IsMatched reports whether the invoice currently has an assigned payment.
func (inv *Invoice) IsMatched() bool {
	return inv.MatchedPaymentID != ""
}

// String returns a short human-readable representation of the invoice.
func (inv *Invoice) String() string {
	return fmt.Sprintf("Invoice{ID: %s, Issuer: %s, Total: %s %s, Date: %s}",
		inv.ID, inv.IssuerName, inv.Total.StringFixed(2), inv.Currency, inv.IssueDate.Format("2006-01-02"))
}

// Payment is an outgoing or incoming payment (pago).
type Payment struct {
	ID                string          `json:"id"`
	PaymentDate       time.Time       `json:"payment_date"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          Currency        `json:"currency"`
	CounterpartyTaxID string          `json:"counterparty_tax_id"`
	CounterpartyName  string          `json:"counterparty_name"`
	Description       string          `json:"description"`

	// Match state, owned by the displacement engine.
	MatchedInvoiceID string `json:"matched_invoice_id,omitempty"`
}

// Validate performs basic shape validation on the payment.
func (p *Payment) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("payment ID cannot be empty")
	}
	if p.Amount.IsZero() {
		return fmt.Errorf("payment amount cannot be zero")
	}
	if p.PaymentDate.IsZero() {
		return fmt.Errorf("payment date cannot be zero")
	}
	return nil
}

// IsMatched reports whether the payment currently references an invoice.
func (p *Payment) IsMatched() bool {
	return p.MatchedInvoiceID != ""
}

// String returns a short human-readable representation of the payment.
func (p *Payment) String() string {
	return fmt.Sprintf("Payment{ID: %s, Counterparty: %s, Amount: %s %s, Date: %s}",
		p.ID, p.CounterpartyName, p.Amount.StringFixed(2), p.Currency, p.PaymentDate.Format("2006-01-02"))
}

// Receipt is a salary receipt (recibo de sueldo) for one employee.
type Receipt struct {
	ID            string          `json:"id"`
	PaymentDate   time.Time       `json:"payment_date"`
	EmployeeTaxID string          `json:"employee_tax_id"`
	EmployeeName  string          `json:"employee_name"`
	NetAmount     decimal.Decimal `json:"net_amount"`

	// Match state, owned by the displacement engine.
	MatchedPaymentID string          `json:"matched_payment_id,omitempty"`
	MatchConfidence  MatchConfidence `json:"match_confidence,omitempty"`
}

// Validate performs basic shape validation on the receipt.
func (r *Receipt) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("receipt ID cannot be empty")
	}
	if r.NetAmount.IsZero() {
		return fmt.Errorf("receipt net amount cannot be zero")
	}
	if r.PaymentDate.IsZero() {
		return fmt.Errorf("receipt payment date cannot be zero")
	}
	return nil
}

// IsMatched reports whether the receipt currently has an assigned payment.
func (r *Receipt) IsMatched() bool {
	return r.MatchedPaymentID != ""
}

// String returns a short human-readable representation of the receipt.
func (r *Receipt) String() string {
	return fmt.Sprintf("Receipt{ID: %s, Employee: %s, Net: %s, Date: %s}",
		r.ID, r.EmployeeName, r.NetAmount.StringFixed(2), r.PaymentDate.Format("2006-01-02"))
}

// BankMovement is one line of a bank account statement. Exactly one of Debit
// or Credit is expected to be set; both nil means the line carries no amount.
type BankMovement struct {
	TransactionDate time.Time        `json:"transaction_date"`
	ValueDate       time.Time        `json:"value_date"`
	Concept         string           `json:"concept"`
	Debit           *decimal.Decimal `json:"debit,omitempty"`
	Credit          *decimal.Decimal `json:"credit,omitempty"`

	// Annotation is the human-facing output of matching, written back to the
	// statement sheet by the persistence collaborator.
	Annotation string `json:"annotation,omitempty"`

	// Write-back position.
	Sheet string `json:"sheet,omitempty"`
	Row   int    `json:"row,omitempty"`
}

// Validate performs basic shape validation on the movement.
func (bm *BankMovement) Validate() error {
	if strings.TrimSpace(bm.Concept) == "" {
		return fmt.Errorf("bank movement concept cannot be empty")
	}
	if bm.TransactionDate.IsZero() {
		return fmt.Errorf("bank movement transaction date cannot be zero")
	}
	return nil
}

// DebitAmount returns the outgoing amount, or zero when the line has none.
func (bm *BankMovement) DebitAmount() decimal.Decimal {
	if bm.Debit == nil {
		return decimal.Zero
	}
	return *bm.Debit
}

// CreditAmount returns the incoming amount, or zero when the line has none.
func (bm *BankMovement) CreditAmount() decimal.Decimal {
	if bm.Credit == nil {
		return decimal.Zero
	}
	return *bm.Credit
}

// HasDebit reports whether the movement carries a non-zero outgoing amount.
func (bm *BankMovement) HasDebit() bool {
	return bm.Debit != nil && !bm.Debit.IsZero()
}

// String returns a short human-readable representation of the movement.
func (bm *BankMovement) String() string {
	amount := "0.00"
	side := "none"
	if bm.HasDebit() {
		amount, side = bm.Debit.StringFixed(2), "debit"
	} else if bm.Credit != nil && !bm.Credit.IsZero() {
		amount, side = bm.Credit.StringFixed(2), "credit"
	}
	return fmt.Sprintf("BankMovement{Date: %s, Concept: %q, %s: %s}",
		bm.TransactionDate.Format("2006-01-02"), bm.Concept, side, amount)
}

// MatchUpdate describes one assignment change produced by the displacement
// engine. An empty CounterpartID clears the current assignment (unmatch).
// Updates are keyed by DocumentID and handed to the persistence collaborator
// as a single batch.
type MatchUpdate struct {
	DocumentID      string          `json:"document_id"`
	Kind            DocumentKind    `json:"kind"`
	CounterpartID   string          `json:"counterpart_id"`
	Confidence      MatchConfidence `json:"confidence"`
	IdentityMatched bool            `json:"identity_matched"`

	// MarkPaid is only meaningful for invoices: a non-empty counterpart
	// means the invoice should now be flagged as paid.
	MarkPaid bool `json:"mark_paid,omitempty"`
}

// IsUnmatch reports whether the update clears an assignment.
func (mu MatchUpdate) IsUnmatch() bool {
	return mu.CounterpartID == ""
}
