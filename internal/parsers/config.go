package parsers

import (
	"fmt"
)

// ParserConfig configures one document parser: CSV-level options plus a
// mapping from logical field names to the header names the export uses.
// Accounting systems rename columns freely, so every lookup goes through
// ColumnMappings.
type ParserConfig struct {
	HasHeader bool
	Delimiter rune

	// ColumnMappings maps logical field names (the map keys of the Default*
	// factories) to the column headers present in the file.
	ColumnMappings map[string]string
}

// GetColumnName resolves a logical field name to the configured header name,
// falling back to the logical name itself.
func (pc *ParserConfig) GetColumnName(field string) string {
	if name, ok := pc.ColumnMappings[field]; ok && name != "" {
		return name
	}
	return field
}

// Validate checks the parser configuration.
func (pc *ParserConfig) Validate() error {
	if pc.Delimiter == 0 {
		return fmt.Errorf("delimiter cannot be empty")
	}
	if pc.ColumnMappings == nil {
		return fmt.Errorf("column mappings cannot be nil")
	}
	return nil
}

// Clone creates a deep copy of the configuration.
func (pc *ParserConfig) Clone() *ParserConfig {
	if pc == nil {
		return nil
	}
	clone := *pc
	clone.ColumnMappings = make(map[string]string, len(pc.ColumnMappings))
	for field, name := range pc.ColumnMappings {
		clone.ColumnMappings[field] = name
	}
	return &clone
}

// DefaultInvoiceParserConfig matches the standard issued-invoices export.
func DefaultInvoiceParserConfig() *ParserConfig {
	return &ParserConfig{
		HasHeader: true,
		Delimiter: ',',
		ColumnMappings: map[string]string{
			"id":            "numero",
			"issue_date":    "fecha_emision",
			"issuer_tax_id": "cuit_emisor",
			"issuer_name":   "razon_social",
			"total":         "total",
			"currency":      "moneda",
			"description":   "descripcion",
		},
	}
}

// DefaultPaymentParserConfig matches the registered-payments export.
func DefaultPaymentParserConfig() *ParserConfig {
	return &ParserConfig{
		HasHeader: true,
		Delimiter: ',',
		ColumnMappings: map[string]string{
			"id":                 "numero",
			"payment_date":       "fecha_pago",
			"amount":             "importe",
			"currency":           "moneda",
			"counterparty_tax_id": "cuit_beneficiario",
			"counterparty_name":  "beneficiario",
			"description":        "descripcion",
			"invoice_id":         "factura",
		},
	}
}

// DefaultReceiptParserConfig matches the salary-receipts export.
func DefaultReceiptParserConfig() *ParserConfig {
	return &ParserConfig{
		HasHeader: true,
		Delimiter: ',',
		ColumnMappings: map[string]string{
			"id":              "numero",
			"payment_date":    "fecha_pago",
			"employee_tax_id": "cuil",
			"employee_name":   "empleado",
			"net_amount":      "neto",
		},
	}
}

// DefaultMovementParserConfig matches the bank statement export. Debit and
// credit are separate columns, both optional per row.
func DefaultMovementParserConfig() *ParserConfig {
	return &ParserConfig{
		HasHeader: true,
		Delimiter: ',',
		ColumnMappings: map[string]string{
			"transaction_date": "fecha",
			"value_date":       "fecha_valor",
			"concept":          "concepto",
			"debit":            "debito",
			"credit":           "credito",
			"annotation":       "observaciones",
		},
	}
}

func (pc *ParserConfig) parseConfig() *ParseConfig {
	config := DefaultParseConfig()
	config.HasHeader = pc.HasHeader
	config.Delimiter = pc.Delimiter
	return config
}
