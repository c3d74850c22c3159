package parsers

import (
	"context"
	"io"

	"conciliador/internal/models"
	"conciliador/pkg/errors"
	"conciliador/pkg/logger"
)

// InvoiceParser ingests issued-invoice CSV exports.
type InvoiceParser struct {
	*baseParser
	config *ParserConfig
}

// NewInvoiceParser creates an invoice parser. A nil config uses the standard
// export layout.
func NewInvoiceParser(config *ParserConfig) (*InvoiceParser, error) {
	if config == nil {
		config = DefaultInvoiceParserConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "invoice_parser_config", config, err)
	}
	return &InvoiceParser{
		baseParser: newBaseParser(config.parseConfig(), "invoice_parser"),
		config:     config,
	}, nil
}

// ParseInvoices parses a CSV file of issued invoices.
func (ip *InvoiceParser) ParseInvoices(filePath string) ([]*models.Invoice, *ParseStats, error) {
	return ip.ParseInvoicesWithContext(context.Background(), filePath)
}

// ParseInvoicesWithContext parses invoices with cancellation support. Row
// failures are collected into the stats; only file-level problems abort.
func (ip *InvoiceParser) ParseInvoicesWithContext(ctx context.Context, filePath string) ([]*models.Invoice, *ParseStats, error) {
	ip.logger.WithField("file_path", filePath).Info("parsing invoices")

	file, reader, err := ip.openFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	parseCtx := newParseContext(ctx)
	stats := &ParseStats{}

	required := []string{
		ip.config.GetColumnName("id"),
		ip.config.GetColumnName("issue_date"),
		ip.config.GetColumnName("total"),
	}
	if err := ip.readHeaders(reader, parseCtx, filePath, required); err != nil {
		return nil, stats, err
	}

	var invoices []*models.Invoice
	for {
		if parseCtx.cancelled() {
			return invoices, stats, errors.InternalError("invoice_parsing", ctx.Err())
		}

		record, err := ip.readRecord(reader, parseCtx)
		if err == io.EOF {
			break
		}
		if err != nil {
			stats.AddError(&RowError{Line: parseCtx.lineNumber, Message: "unreadable CSV record", Err: err})
			continue
		}

		invoice, rowErr := ip.parseRecord(record, parseCtx)
		if rowErr != nil {
			stats.AddError(rowErr)
			continue
		}
		if err := invoice.Validate(); err != nil {
			stats.AddError(&RowError{Line: parseCtx.lineNumber, Value: invoice.ID, Message: "invalid invoice", Err: err})
			continue
		}

		invoices = append(invoices, invoice)
		stats.RecordsValid++
	}
	stats.TotalLines = parseCtx.lineNumber

	ip.logger.WithFields(logger.Fields{
		"file_path":     filePath,
		"records_valid": stats.RecordsValid,
		"error_count":   stats.ErrorCount,
	}).Info("invoice parsing completed")
	if stats.HasErrors() {
		ip.logger.WithField("sample_errors", stats.SampleErrors(3)).Warn("some invoice rows were skipped")
	}
	return invoices, stats, nil
}

func (ip *InvoiceParser) parseRecord(record []string, parseCtx *parseContext) (*models.Invoice, *RowError) {
	issueDate, rowErr := ip.parseDateField(record, parseCtx, ip.config.GetColumnName("issue_date"))
	if rowErr != nil {
		return nil, rowErr
	}
	total, rowErr := ip.parseAmountField(record, parseCtx, ip.config.GetColumnName("total"))
	if rowErr != nil {
		return nil, rowErr
	}

	return &models.Invoice{
		ID:          ip.fieldValue(record, parseCtx, ip.config.GetColumnName("id")),
		IssueDate:   issueDate,
		IssuerTaxID: ip.fieldValue(record, parseCtx, ip.config.GetColumnName("issuer_tax_id")),
		IssuerName:  ip.fieldValue(record, parseCtx, ip.config.GetColumnName("issuer_name")),
		Total:       total,
		Currency:    models.ParseCurrency(ip.fieldValue(record, parseCtx, ip.config.GetColumnName("currency"))),
		Description: ip.fieldValue(record, parseCtx, ip.config.GetColumnName("description")),
	}, nil
}
