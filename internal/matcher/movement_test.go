package matcher

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"conciliador/internal/models"
	"conciliador/internal/rates"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func debitMovement(day time.Time, concept, debit string) *models.BankMovement {
	return &models.BankMovement{
		TransactionDate: day,
		Concept:         concept,
		Debit:           amount(debit),
	}
}

func TestMatchMovementBankFee(t *testing.T) {
	mm := NewMovementMatcher(nil, nil)

	concepts := []string{
		"IMP.LEY 25413 DEBITO",
		"COMISION MANTENIMIENTO CUENTA",
		"SIRCREB RETENCION INGRESOS BRUTOS",
		"IVA TASA GENERAL",
	}
	for _, concept := range concepts {
		match := mm.MatchMovement(debitMovement(date(2025, 3, 3), concept, "850.50"), nil, nil, nil)
		if match.Type != MatchBankFee {
			t.Errorf("MatchMovement(%q) type = %s, want %s", concept, match.Type, MatchBankFee)
		}
		if match.Confidence != models.ConfidenceHigh {
			t.Errorf("MatchMovement(%q) confidence = %s, want high", concept, match.Confidence)
		}
		if match.Description != "Gastos bancarios" {
			t.Errorf("MatchMovement(%q) description = %q", concept, match.Description)
		}
	}
}

func TestMatchMovementNoDebit(t *testing.T) {
	mm := NewMovementMatcher(nil, nil)

	mv := &models.BankMovement{
		TransactionDate: date(2025, 3, 3),
		Concept:         "DEPOSITO EN EFECTIVO",
		Credit:          amount("5000"),
	}
	if match := mm.MatchMovement(mv, nil, nil, nil); match.Type != MatchNone {
		t.Errorf("credit-only movement type = %s, want %s", match.Type, MatchNone)
	}
}

func TestMatchMovementCreditCard(t *testing.T) {
	mm := NewMovementMatcher(nil, nil)

	match := mm.MatchMovement(debitMovement(date(2025, 3, 3), "PAGO TARJETA VISA 4552", "120000"), nil, nil, nil)
	if match.Type != MatchCreditCard {
		t.Fatalf("type = %s, want %s", match.Type, MatchCreditCard)
	}
	if match.Confidence != models.ConfidenceHigh {
		t.Errorf("confidence = %s, want high", match.Confidence)
	}
}

func TestMatchMovementPaymentWithInvoice(t *testing.T) {
	mm := NewMovementMatcher(nil, nil)

	invoice := &models.Invoice{
		ID:          "FC-0001",
		IssueDate:   date(2025, 3, 1),
		IssuerTaxID: "30-70907678-3",
		IssuerName:  "Proveedor SA",
		Total:       decimal.NewFromInt(1500),
		Description: "Servicio mensual",
	}
	payment := &models.Payment{
		ID:                "OP-0001",
		PaymentDate:       date(2025, 3, 5),
		Amount:            decimal.NewFromInt(1500),
		CounterpartyTaxID: "30-70907678-3",
		CounterpartyName:  "Proveedor SA",
		MatchedInvoiceID:  "FC-0001",
	}

	mv := debitMovement(date(2025, 3, 5), "TRANSFERENCI 30709076783", "1500")
	match := mm.MatchMovement(mv, []*models.Invoice{invoice}, nil, []*models.Payment{payment})

	if match.Type != MatchPaymentInvoice {
		t.Fatalf("type = %s, want %s", match.Type, MatchPaymentInvoice)
	}
	if match.Confidence != models.ConfidenceHigh {
		t.Errorf("confidence = %s, want high", match.Confidence)
	}
	if match.Description != "Servicio mensual" {
		t.Errorf("description = %q, want the linked invoice description", match.Description)
	}
	if match.TaxID != "30709076783" {
		t.Errorf("tax ID = %q, want 30709076783", match.TaxID)
	}
}

func TestMatchMovementDirectInvoice(t *testing.T) {
	mm := NewMovementMatcher(nil, nil)

	invoice := &models.Invoice{
		ID:          "FC-0002",
		IssueDate:   date(2025, 3, 1),
		IssuerTaxID: "30-70907678-3",
		IssuerName:  "Proveedor SA",
		Total:       decimal.NewFromInt(1500),
	}

	mv := debitMovement(date(2025, 3, 5), "TRANSFERENCI 30709076783", "1500")
	match := mm.MatchMovement(mv, []*models.Invoice{invoice}, nil, nil)

	if match.Type != MatchDirectInvoice {
		t.Fatalf("type = %s, want %s", match.Type, MatchDirectInvoice)
	}
	if match.Confidence != models.ConfidenceHigh {
		t.Errorf("confidence = %s, want high", match.Confidence)
	}
	if match.Description != "Factura FC-0002 - Proveedor SA" {
		t.Errorf("description = %q", match.Description)
	}
}

func TestMatchMovementKeywordOnlyForDirectDebit(t *testing.T) {
	mm := NewMovementMatcher(nil, nil)

	invoice := &models.Invoice{
		ID:         "FC-0003",
		IssueDate:  date(2025, 3, 1),
		IssuerName: "Luz del Sur SA",
		Total:      decimal.NewFromInt(980),
	}
	pool := []*models.Invoice{invoice}

	// An automatic-debit concept may match on keyword overlap alone.
	auto := debitMovement(date(2025, 3, 10), "DEBITO AUTOMATICO LUZ SUR", "980")
	if match := mm.MatchMovement(auto, pool, nil, nil); match.Type != MatchDirectInvoice {
		t.Errorf("direct-debit movement type = %s, want %s", match.Type, MatchDirectInvoice)
	} else if match.Confidence != models.ConfidenceMedium {
		t.Errorf("keyword match confidence = %s, want medium", match.Confidence)
	}

	// The same keywords on an ordinary transfer do not qualify.
	plain := debitMovement(date(2025, 3, 10), "TRANSFERENCIA LUZ SUR", "980")
	if match := mm.MatchMovement(plain, pool, nil, nil); match.Type != MatchNone {
		t.Errorf("plain transfer type = %s, want %s", match.Type, MatchNone)
	}
}

func TestMatchMovementCrossCurrencyCaps(t *testing.T) {
	provider := rates.NewStaticProvider()
	provider.Add(models.CurrencyUSD, date(2025, 3, 1), decimal.NewFromInt(1000))
	mm := NewMovementMatcher(nil, provider)

	invoice := &models.Invoice{
		ID:          "FC-0004",
		IssueDate:   date(2025, 3, 1),
		IssuerTaxID: "30-70907678-3",
		IssuerName:  "Proveedor SA",
		Total:       decimal.NewFromInt(1000),
		Currency:    models.CurrencyUSD,
	}

	mv := debitMovement(date(2025, 3, 5), "TRANSFERENCI 30709076783", "1000000")
	match := mm.MatchMovement(mv, []*models.Invoice{invoice}, nil, nil)

	if match.Type != MatchDirectInvoice {
		t.Fatalf("type = %s, want %s", match.Type, MatchDirectInvoice)
	}
	if match.Confidence != models.ConfidenceMedium {
		t.Errorf("cross-currency identity match confidence = %s, want medium", match.Confidence)
	}
}

func TestMatchMovementReceipt(t *testing.T) {
	mm := NewMovementMatcher(nil, nil)

	receipt := &models.Receipt{
		ID:            "REC-0001",
		PaymentDate:   date(2025, 3, 31),
		EmployeeTaxID: "20-12345678-6",
		EmployeeName:  "Juan Perez",
		NetAmount:     decimal.NewFromInt(850000),
	}

	mv := debitMovement(date(2025, 4, 1), "ACREDITACION HABERES", "850000")
	match := mm.MatchMovement(mv, nil, []*models.Receipt{receipt}, nil)

	if match.Type != MatchReceipt {
		t.Fatalf("type = %s, want %s", match.Type, MatchReceipt)
	}
	if match.Confidence != models.ConfidenceMedium {
		t.Errorf("confidence = %s, want medium", match.Confidence)
	}
	if match.Description != "Recibo de sueldo - Juan Perez" {
		t.Errorf("description = %q", match.Description)
	}
}

func TestMatchMovementPaymentOnly(t *testing.T) {
	mm := NewMovementMatcher(nil, nil)

	payment := &models.Payment{
		ID:               "OP-0002",
		PaymentDate:      date(2025, 3, 5),
		Amount:           decimal.NewFromInt(2500),
		CounterpartyName: "Consultora SRL",
	}

	mv := debitMovement(date(2025, 3, 5), "TRANSFERENCIA VARIOS", "2500")
	match := mm.MatchMovement(mv, nil, nil, []*models.Payment{payment})

	if match.Type != MatchPaymentOnly {
		t.Fatalf("type = %s, want %s", match.Type, MatchPaymentOnly)
	}
	if match.Confidence != models.ConfidenceLow {
		t.Errorf("confidence = %s, want low", match.Confidence)
	}
}

func TestMatchMovementPrefersTaxIDPayment(t *testing.T) {
	mm := NewMovementMatcher(nil, nil)

	matched := &models.Payment{
		ID:                "OP-0003",
		PaymentDate:       date(2025, 3, 6),
		Amount:            decimal.NewFromInt(1500),
		CounterpartyTaxID: "30-70907678-3",
		MatchedInvoiceID:  "FC-0005",
	}
	closer := &models.Payment{
		ID:          "OP-0004",
		PaymentDate: date(2025, 3, 5),
		Amount:      decimal.NewFromInt(1500),
	}

	mv := debitMovement(date(2025, 3, 5), "TRANSFERENCI 30709076783", "1500")
	match := mm.MatchMovement(mv, nil, nil, []*models.Payment{closer, matched})

	if match.Type != MatchPaymentInvoice {
		t.Fatalf("type = %s, want %s (tax-ID payment should outrank the nearer date)", match.Type, MatchPaymentInvoice)
	}
}

func TestMatchMovementNoCandidates(t *testing.T) {
	mm := NewMovementMatcher(nil, nil)

	mv := debitMovement(date(2025, 3, 5), "TRANSFERENCIA VARIOS", "999.99")
	if match := mm.MatchMovement(mv, nil, nil, nil); match.Type != MatchNone {
		t.Errorf("type = %s, want %s", match.Type, MatchNone)
	}
}
