package models

import "fmt"

// DocumentKind discriminates the variants of a Document.
type DocumentKind string

const (
	// KindInvoice tags an Invoice variant.
	KindInvoice DocumentKind = "invoice"
	// KindPayment tags a Payment variant.
	KindPayment DocumentKind = "payment"
	// KindReceipt tags a Receipt variant.
	KindReceipt DocumentKind = "receipt"
)

// String returns the string representation of the document kind.
func (dk DocumentKind) String() string {
	return string(dk)
}

// Document is a tagged union over the three document types that participate
// in assignments. Exactly one of the pointers is set, matching Kind, so that
// switch logic over documents stays exhaustive and explicit.
type Document struct {
	Kind    DocumentKind
	Invoice *Invoice
	Payment *Payment
	Receipt *Receipt
}

// InvoiceDocument wraps an invoice as a Document.
func InvoiceDocument(inv *Invoice) Document {
	return Document{Kind: KindInvoice, Invoice: inv}
}

// PaymentDocument wraps a payment as a Document.
func PaymentDocument(p *Payment) Document {
	return Document{Kind: KindPayment, Payment: p}
}

// ReceiptDocument wraps a receipt as a Document.
func ReceiptDocument(r *Receipt) Document {
	return Document{Kind: KindReceipt, Receipt: r}
}

// ID returns the identifier of the wrapped document.
func (d Document) ID() string {
	switch d.Kind {
	case KindInvoice:
		if d.Invoice != nil {
			return d.Invoice.ID
		}
	case KindPayment:
		if d.Payment != nil {
			return d.Payment.ID
		}
	case KindReceipt:
		if d.Receipt != nil {
			return d.Receipt.ID
		}
	}
	return ""
}

// CounterpartID returns the identifier currently assigned to the wrapped
// document, or an empty string when it is unmatched.
func (d Document) CounterpartID() string {
	switch d.Kind {
	case KindInvoice:
		if d.Invoice != nil {
			return d.Invoice.MatchedPaymentID
		}
	case KindPayment:
		if d.Payment != nil {
			return d.Payment.MatchedInvoiceID
		}
	case KindReceipt:
		if d.Receipt != nil {
			return d.Receipt.MatchedPaymentID
		}
	}
	return ""
}

// Validate checks that the variant pointer matching Kind is set and no other.
func (d Document) Validate() error {
	set := 0
	if d.Invoice != nil {
		set++
	}
	if d.Payment != nil {
		set++
	}
	if d.Receipt != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("document must wrap exactly one record, got %d", set)
	}

	switch d.Kind {
	case KindInvoice:
		if d.Invoice == nil {
			return fmt.Errorf("document kind %s does not match wrapped record", d.Kind)
		}
	case KindPayment:
		if d.Payment == nil {
			return fmt.Errorf("document kind %s does not match wrapped record", d.Kind)
		}
	case KindReceipt:
		if d.Receipt == nil {
			return fmt.Errorf("document kind %s does not match wrapped record", d.Kind)
		}
	default:
		return fmt.Errorf("invalid document kind: %q", d.Kind)
	}
	return nil
}

// String returns a short human-readable representation of the document.
func (d Document) String() string {
	return fmt.Sprintf("Document{Kind: %s, ID: %s}", d.Kind, d.ID())
}
