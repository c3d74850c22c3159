package parsers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"conciliador/internal/models"
)

func writeTempCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp CSV: %v", err)
	}
	return path
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "1234.56", want: "1234.56"},
		{input: "1.234,56", want: "1234.56"},
		{input: "$ 1.234,56", want: "1234.56"},
		{input: "1,234.56", want: "1234.56"},
		{input: "-850000,00", want: "-850000"},
		{input: "1500", want: "1500"},
		{input: "0,01", want: "0.01"},
		{input: "", wantErr: true},
		{input: "sin importe", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAmount(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got.String() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseInvoices(t *testing.T) {
	csv := `numero,fecha_emision,cuit_emisor,razon_social,total,moneda,descripcion
FC-0001,15/03/2025,30-70907678-3,Proveedor SA,"1.500,00",ARS,Servicio mensual
FC-0002,2025-03-20,20-12345678-6,Consultora SRL,2000.50,USD,Honorarios
`
	path := writeTempCSV(t, "facturas.csv", csv)

	parser, err := NewInvoiceParser(nil)
	if err != nil {
		t.Fatalf("NewInvoiceParser() error = %v", err)
	}
	invoices, stats, err := parser.ParseInvoices(path)
	if err != nil {
		t.Fatalf("ParseInvoices() error = %v", err)
	}

	if len(invoices) != 2 {
		t.Fatalf("parsed %d invoices, want 2", len(invoices))
	}
	if stats.HasErrors() {
		t.Errorf("unexpected row errors: %v", stats.SampleErrors(5))
	}

	first := invoices[0]
	if first.ID != "FC-0001" {
		t.Errorf("ID = %q, want FC-0001", first.ID)
	}
	if got := first.Total.String(); got != "1500" {
		t.Errorf("Total = %s, want 1500", got)
	}
	if first.Currency != models.CurrencyARS {
		t.Errorf("Currency = %s, want ARS", first.Currency)
	}
	if first.IssueDate.Day() != 15 || first.IssueDate.Month() != 3 {
		t.Errorf("IssueDate = %s, want 2025-03-15", first.IssueDate)
	}

	if invoices[1].Currency != models.CurrencyUSD {
		t.Errorf("second invoice currency = %s, want USD", invoices[1].Currency)
	}
}

func TestParseInvoicesCollectsRowErrors(t *testing.T) {
	csv := `numero,fecha_emision,cuit_emisor,razon_social,total,moneda,descripcion
FC-0001,no-es-fecha,30-70907678-3,Proveedor SA,1500,ARS,
FC-0002,20/03/2025,30-70907678-3,Proveedor SA,1500,ARS,
`
	path := writeTempCSV(t, "facturas.csv", csv)

	parser, err := NewInvoiceParser(nil)
	if err != nil {
		t.Fatalf("NewInvoiceParser() error = %v", err)
	}
	invoices, stats, err := parser.ParseInvoices(path)
	if err != nil {
		t.Fatalf("ParseInvoices() error = %v, bad rows must not abort the file", err)
	}

	if len(invoices) != 1 {
		t.Errorf("parsed %d invoices, want 1", len(invoices))
	}
	if stats.ErrorCount != 1 {
		t.Errorf("error count = %d, want 1", stats.ErrorCount)
	}
}

func TestParseInvoicesMissingColumn(t *testing.T) {
	csv := `numero,cuit_emisor,total
FC-0001,30-70907678-3,1500
`
	path := writeTempCSV(t, "facturas.csv", csv)

	parser, err := NewInvoiceParser(nil)
	if err != nil {
		t.Fatalf("NewInvoiceParser() error = %v", err)
	}
	if _, _, err := parser.ParseInvoices(path); err == nil {
		t.Fatal("expected an error for a missing required column")
	}
}

func TestParsePayments(t *testing.T) {
	csv := `numero,fecha_pago,importe,moneda,cuit_beneficiario,beneficiario,descripcion,factura
OP-0001,18/03/2025,"1.500,00",,30-70907678-3,Proveedor SA,Pago factura,FC-0001
`
	path := writeTempCSV(t, "pagos.csv", csv)

	parser, err := NewPaymentParser(nil)
	if err != nil {
		t.Fatalf("NewPaymentParser() error = %v", err)
	}
	payments, _, err := parser.ParsePayments(path)
	if err != nil {
		t.Fatalf("ParsePayments() error = %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("parsed %d payments, want 1", len(payments))
	}

	p := payments[0]
	if p.MatchedInvoiceID != "FC-0001" {
		t.Errorf("MatchedInvoiceID = %q, want FC-0001", p.MatchedInvoiceID)
	}
	if p.Currency != models.CurrencyARS {
		t.Errorf("empty currency should default to ARS, got %s", p.Currency)
	}
}

func TestParseReceipts(t *testing.T) {
	csv := `numero,fecha_pago,cuil,empleado,neto
REC-0001,30/04/2025,20-12345678-6,Juan Perez,"850.000,00"
`
	path := writeTempCSV(t, "recibos.csv", csv)

	parser, err := NewReceiptParser(nil)
	if err != nil {
		t.Fatalf("NewReceiptParser() error = %v", err)
	}
	receipts, _, err := parser.ParseReceipts(path)
	if err != nil {
		t.Fatalf("ParseReceipts() error = %v", err)
	}
	if len(receipts) != 1 {
		t.Fatalf("parsed %d receipts, want 1", len(receipts))
	}
	if got := receipts[0].NetAmount.String(); got != "850000" {
		t.Errorf("NetAmount = %s, want 850000", got)
	}
}

func TestParseMovements(t *testing.T) {
	csv := `fecha,fecha_valor,concepto,debito,credito,observaciones
03/03/2025,03/03/2025,IMP.LEY 25413 DEBITO,"1.234,56",,
05/03/2025,,TRANSFERENCI 30709076783,"1.500,00",,
10/03/2025,,ACREDITACION SUBSIDIO,,"20.000,00",ya revisado
`
	path := writeTempCSV(t, "extracto.csv", csv)

	parser, err := NewMovementParser(nil)
	if err != nil {
		t.Fatalf("NewMovementParser() error = %v", err)
	}
	movements, stats, err := parser.ParseMovements(path)
	if err != nil {
		t.Fatalf("ParseMovements() error = %v", err)
	}
	if len(movements) != 3 {
		t.Fatalf("parsed %d movements, want 3", len(movements))
	}
	if stats.HasErrors() {
		t.Errorf("unexpected row errors: %v", stats.SampleErrors(5))
	}

	first := movements[0]
	if !first.HasDebit() {
		t.Error("first movement should carry a debit")
	}
	if got := first.DebitAmount().String(); got != "1234.56" {
		t.Errorf("debit = %s, want 1234.56", got)
	}
	if first.ValueDate.IsZero() {
		t.Error("first movement should carry a value date")
	}
	if first.Sheet != "extracto" {
		t.Errorf("sheet = %q, want extracto", first.Sheet)
	}
	if first.Row != 2 {
		t.Errorf("row = %d, want 2", first.Row)
	}

	second := movements[1]
	if second.Credit != nil {
		t.Error("second movement should not carry a credit")
	}
	if !second.ValueDate.IsZero() {
		t.Error("second movement has no value date")
	}

	third := movements[2]
	if third.HasDebit() {
		t.Error("third movement should not carry a debit")
	}
	if third.Annotation != "ya revisado" {
		t.Errorf("annotation = %q, want %q", third.Annotation, "ya revisado")
	}
}

func TestParserFileNotFound(t *testing.T) {
	parser, err := NewInvoiceParser(nil)
	if err != nil {
		t.Fatalf("NewInvoiceParser() error = %v", err)
	}
	if _, _, err := parser.ParseInvoices("/nonexistent/facturas.csv"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestParserConfigColumnOverride(t *testing.T) {
	config := DefaultInvoiceParserConfig()
	config.ColumnMappings["id"] = "comprobante"
	config.ColumnMappings["total"] = "importe_total"

	csv := `comprobante,fecha_emision,importe_total
FC-0900,01/02/2025,100
`
	path := writeTempCSV(t, "facturas.csv", csv)

	parser, err := NewInvoiceParser(config)
	if err != nil {
		t.Fatalf("NewInvoiceParser() error = %v", err)
	}
	invoices, _, err := parser.ParseInvoices(path)
	if err != nil {
		t.Fatalf("ParseInvoices() error = %v", err)
	}
	if len(invoices) != 1 || invoices[0].ID != "FC-0900" {
		t.Fatalf("column override not applied: %+v", invoices)
	}
}

func TestParseRates(t *testing.T) {
	csv := `moneda,fecha,cotizacion
USD,01/03/2025,"1.000,00"
USD,10/03/2025,"1.020,50"
ARS,01/03/2025,"1,00"
`
	path := writeTempCSV(t, "cotizaciones.csv", csv)

	parser, err := NewRateParser(nil)
	if err != nil {
		t.Fatalf("NewRateParser() error = %v", err)
	}
	provider, stats, err := parser.ParseRates(path)
	if err != nil {
		t.Fatalf("ParseRates() error = %v", err)
	}

	if stats.RecordsValid != 2 {
		t.Errorf("valid records = %d, want 2", stats.RecordsValid)
	}
	if stats.ErrorCount != 1 {
		t.Errorf("error count = %d, want 1 (local-currency row rejected)", stats.ErrorCount)
	}

	rate, ok := provider.RateFor(models.CurrencyUSD, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	if !ok {
		t.Fatal("expected a rate for mid-March")
	}
	if rate.String() != "1020.5" {
		t.Errorf("rate = %s, want 1020.5", rate)
	}
}
