package matcher

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"conciliador/internal/models"
	"conciliador/internal/rates"
)

func testInvoice(id string, issued time.Time, taxID string, total int64) *models.Invoice {
	return &models.Invoice{
		ID:          id,
		IssueDate:   issued,
		IssuerTaxID: taxID,
		IssuerName:  "Proveedor SA",
		Total:       decimal.NewFromInt(total),
	}
}

func testPayment(id string, paid time.Time, taxID string, amount int64) *models.Payment {
	return &models.Payment{
		ID:                id,
		PaymentDate:       paid,
		Amount:            decimal.NewFromInt(amount),
		CounterpartyTaxID: taxID,
		CounterpartyName:  "Proveedor SA",
	}
}

func TestScoreInvoiceConfidenceTiers(t *testing.T) {
	pm := NewPaymentMatcher(nil, nil)
	issued := date(2025, 3, 1)

	tests := []struct {
		name         string
		paymentDate  time.Time
		paymentTaxID string
		wantOK       bool
		want         models.MatchConfidence
		wantIdentity bool
	}{
		{
			name:         "identity inside high window",
			paymentDate:  date(2025, 3, 10),
			paymentTaxID: "30-70907678-3",
			wantOK:       true,
			want:         models.ConfidenceHigh,
			wantIdentity: true,
		},
		{
			name:        "no identity inside medium window",
			paymentDate: date(2025, 3, 20),
			wantOK:      true,
			want:        models.ConfidenceMedium,
		},
		{
			name:         "identity outside medium window is still low",
			paymentDate:  date(2025, 4, 15),
			paymentTaxID: "30-70907678-3",
			wantOK:       true,
			want:         models.ConfidenceLow,
			wantIdentity: true,
		},
		{
			name:        "payment slightly before issue date",
			paymentDate: date(2025, 2, 24),
			wantOK:      true,
			want:        models.ConfidenceLow,
		},
		{
			name:        "outside the low window entirely",
			paymentDate: date(2025, 5, 15),
			wantOK:      false,
		},
		{
			name:        "too far before the issue date",
			paymentDate: date(2025, 2, 10),
			wantOK:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := testInvoice("FC-0001", issued, "30-70907678-3", 1500)
			p := testPayment("OP-0001", tt.paymentDate, tt.paymentTaxID, 1500)
			if tt.paymentTaxID == "" {
				p.CounterpartyName = "Otro Nombre"
			}

			cand, ok := pm.ScoreInvoice(p, inv)
			if ok != tt.wantOK {
				t.Fatalf("ScoreInvoice() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if cand.Quality.Confidence != tt.want {
				t.Errorf("confidence = %s, want %s", cand.Quality.Confidence, tt.want)
			}
			if cand.Quality.IdentityMatched != tt.wantIdentity {
				t.Errorf("identity matched = %v, want %v", cand.Quality.IdentityMatched, tt.wantIdentity)
			}
		})
	}
}

func TestScoreInvoiceNameSupport(t *testing.T) {
	pm := NewPaymentMatcher(nil, nil)

	inv := testInvoice("FC-0001", date(2025, 3, 1), "30-70907678-3", 1500)
	p := testPayment("OP-0001", date(2025, 3, 10), "", 1500)
	p.CounterpartyName = "PROVEEDOR SOCIEDAD ANONIMA"

	cand, ok := pm.ScoreInvoice(p, inv)
	if !ok {
		t.Fatal("expected a candidate")
	}
	if cand.Quality.Confidence != models.ConfidenceHigh {
		t.Errorf("name-supported confidence = %s, want high", cand.Quality.Confidence)
	}
	if cand.Quality.IdentityMatched {
		t.Error("name overlap must not count as an identity match")
	}
}

func TestScoreInvoiceAmountMismatch(t *testing.T) {
	pm := NewPaymentMatcher(nil, nil)

	inv := testInvoice("FC-0001", date(2025, 3, 1), "30-70907678-3", 1500)
	p := testPayment("OP-0001", date(2025, 3, 10), "30-70907678-3", 1600)

	if _, ok := pm.ScoreInvoice(p, inv); ok {
		t.Error("amount mismatch should not qualify")
	}
}

func TestScoreInvoiceCrossCurrencyCaps(t *testing.T) {
	provider := rates.NewStaticProvider()
	provider.Add(models.CurrencyUSD, date(2025, 3, 1), decimal.NewFromInt(1000))
	pm := NewPaymentMatcher(nil, provider)

	inv := testInvoice("FC-0001", date(2025, 3, 1), "30-70907678-3", 1000)
	inv.Currency = models.CurrencyUSD

	withIdentity := testPayment("OP-0001", date(2025, 3, 10), "30-70907678-3", 1000000)
	cand, ok := pm.ScoreInvoice(withIdentity, inv)
	if !ok {
		t.Fatal("expected a cross-currency candidate")
	}
	if cand.Quality.Confidence != models.ConfidenceMedium {
		t.Errorf("cross-currency with identity = %s, want medium", cand.Quality.Confidence)
	}

	withoutIdentity := testPayment("OP-0002", date(2025, 3, 10), "", 1000000)
	withoutIdentity.CounterpartyName = "Otro Nombre"
	cand, ok = pm.ScoreInvoice(withoutIdentity, inv)
	if !ok {
		t.Fatal("expected a cross-currency candidate")
	}
	if cand.Quality.Confidence != models.ConfidenceLow {
		t.Errorf("cross-currency without identity = %s, want low", cand.Quality.Confidence)
	}
}

func TestScoreInvoiceWithoutRateProvider(t *testing.T) {
	pm := NewPaymentMatcher(nil, nil)

	inv := testInvoice("FC-0001", date(2025, 3, 1), "30-70907678-3", 1000)
	inv.Currency = models.CurrencyUSD
	p := testPayment("OP-0001", date(2025, 3, 10), "30-70907678-3", 1000000)

	if _, ok := pm.ScoreInvoice(p, inv); ok {
		t.Error("foreign-currency invoice should not qualify without a rate provider")
	}
}

func TestScoreInvoiceAnnotatesUpgrade(t *testing.T) {
	pm := NewPaymentMatcher(nil, nil)

	inv := testInvoice("FC-0001", date(2025, 3, 1), "30-70907678-3", 1500)
	inv.MatchedPaymentID = "OP-OTHER"
	inv.MatchConfidence = models.ConfidenceMedium

	cand, ok := pm.ScoreInvoice(testPayment("OP-0001", date(2025, 3, 10), "30-70907678-3", 1500), inv)
	if !ok {
		t.Fatal("expected a candidate")
	}
	if !cand.IsUpgrade {
		t.Error("candidate against an assigned invoice should be flagged as an upgrade")
	}
	if cand.ExistingConfidence != models.ConfidenceMedium {
		t.Errorf("existing confidence = %s, want medium", cand.ExistingConfidence)
	}

	// The invoice's own payment is not an upgrade.
	inv.MatchedPaymentID = "OP-0001"
	cand, _ = pm.ScoreInvoice(testPayment("OP-0001", date(2025, 3, 10), "30-70907678-3", 1500), inv)
	if cand.IsUpgrade {
		t.Error("re-scoring the current assignment should not be an upgrade")
	}
}

func TestScoreReceipt(t *testing.T) {
	pm := NewPaymentMatcher(nil, nil)

	r := &models.Receipt{
		ID:            "REC-0001",
		PaymentDate:   date(2025, 3, 31),
		EmployeeTaxID: "20-12345678-6",
		EmployeeName:  "Juan Perez",
		NetAmount:     decimal.NewFromInt(850000),
	}
	p := testPayment("OP-0001", date(2025, 4, 1), "20-12345678-6", 850000)

	cand, ok := pm.ScoreReceipt(p, r)
	if !ok {
		t.Fatal("expected a candidate")
	}
	if cand.Quality.Confidence != models.ConfidenceHigh {
		t.Errorf("confidence = %s, want high", cand.Quality.Confidence)
	}
	if !cand.Quality.IdentityMatched {
		t.Error("matching CUIL should count as identity")
	}
	if cand.Target.Kind != models.KindReceipt {
		t.Errorf("target kind = %s, want receipt", cand.Target.Kind)
	}
}

func TestFindInvoiceMatchesOrdering(t *testing.T) {
	pm := NewPaymentMatcher(nil, nil)
	p := testPayment("OP-0001", date(2025, 3, 15), "30-70907678-3", 1500)

	invoices := []*models.Invoice{
		testInvoice("FC-MEDIUM", date(2025, 2, 25), "20-12345678-6", 1500),
		testInvoice("FC-FAR", date(2025, 3, 1), "30-70907678-3", 1500),
		testInvoice("FC-NEAR", date(2025, 3, 12), "30-70907678-3", 1500),
	}
	for _, inv := range invoices {
		if inv.IssuerTaxID != "30-70907678-3" {
			inv.IssuerName = "Otro Nombre"
		}
	}

	candidates := pm.FindInvoiceMatches(p, invoices)
	if len(candidates) != 3 {
		t.Fatalf("got %d candidates, want 3", len(candidates))
	}

	wantOrder := []string{"FC-NEAR", "FC-FAR", "FC-MEDIUM"}
	for i, want := range wantOrder {
		if got := candidates[i].Target.ID(); got != want {
			t.Errorf("candidate[%d] = %s, want %s", i, got, want)
		}
	}
}
