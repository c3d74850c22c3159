package parsers

import (
	"context"
	"io"

	"conciliador/internal/models"
	"conciliador/pkg/errors"
	"conciliador/pkg/logger"
)

// PaymentParser ingests registered-payment CSV exports.
type PaymentParser struct {
	*baseParser
	config *ParserConfig
}

// NewPaymentParser creates a payment parser. A nil config uses the standard
// export layout.
func NewPaymentParser(config *ParserConfig) (*PaymentParser, error) {
	if config == nil {
		config = DefaultPaymentParserConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "payment_parser_config", config, err)
	}
	return &PaymentParser{
		baseParser: newBaseParser(config.parseConfig(), "payment_parser"),
		config:     config,
	}, nil
}

// ParsePayments parses a CSV file of registered payments.
func (pp *PaymentParser) ParsePayments(filePath string) ([]*models.Payment, *ParseStats, error) {
	return pp.ParsePaymentsWithContext(context.Background(), filePath)
}

// ParsePaymentsWithContext parses payments with cancellation support.
func (pp *PaymentParser) ParsePaymentsWithContext(ctx context.Context, filePath string) ([]*models.Payment, *ParseStats, error) {
	pp.logger.WithField("file_path", filePath).Info("parsing payments")

	file, reader, err := pp.openFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	parseCtx := newParseContext(ctx)
	stats := &ParseStats{}

	required := []string{
		pp.config.GetColumnName("id"),
		pp.config.GetColumnName("payment_date"),
		pp.config.GetColumnName("amount"),
	}
	if err := pp.readHeaders(reader, parseCtx, filePath, required); err != nil {
		return nil, stats, err
	}

	var payments []*models.Payment
	for {
		if parseCtx.cancelled() {
			return payments, stats, errors.InternalError("payment_parsing", ctx.Err())
		}

		record, err := pp.readRecord(reader, parseCtx)
		if err == io.EOF {
			break
		}
		if err != nil {
			stats.AddError(&RowError{Line: parseCtx.lineNumber, Message: "unreadable CSV record", Err: err})
			continue
		}

		payment, rowErr := pp.parseRecord(record, parseCtx)
		if rowErr != nil {
			stats.AddError(rowErr)
			continue
		}
		if err := payment.Validate(); err != nil {
			stats.AddError(&RowError{Line: parseCtx.lineNumber, Value: payment.ID, Message: "invalid payment", Err: err})
			continue
		}

		payments = append(payments, payment)
		stats.RecordsValid++
	}
	stats.TotalLines = parseCtx.lineNumber

	pp.logger.WithFields(logger.Fields{
		"file_path":     filePath,
		"records_valid": stats.RecordsValid,
		"error_count":   stats.ErrorCount,
	}).Info("payment parsing completed")
	if stats.HasErrors() {
		pp.logger.WithField("sample_errors", stats.SampleErrors(3)).Warn("some payment rows were skipped")
	}
	return payments, stats, nil
}

func (pp *PaymentParser) parseRecord(record []string, parseCtx *parseContext) (*models.Payment, *RowError) {
	paymentDate, rowErr := pp.parseDateField(record, parseCtx, pp.config.GetColumnName("payment_date"))
	if rowErr != nil {
		return nil, rowErr
	}
	amount, rowErr := pp.parseAmountField(record, parseCtx, pp.config.GetColumnName("amount"))
	if rowErr != nil {
		return nil, rowErr
	}

	return &models.Payment{
		ID:                pp.fieldValue(record, parseCtx, pp.config.GetColumnName("id")),
		PaymentDate:       paymentDate,
		Amount:            amount,
		Currency:          models.ParseCurrency(pp.fieldValue(record, parseCtx, pp.config.GetColumnName("currency"))),
		CounterpartyTaxID: pp.fieldValue(record, parseCtx, pp.config.GetColumnName("counterparty_tax_id")),
		CounterpartyName:  pp.fieldValue(record, parseCtx, pp.config.GetColumnName("counterparty_name")),
		Description:       pp.fieldValue(record, parseCtx, pp.config.GetColumnName("description")),
		MatchedInvoiceID:  pp.fieldValue(record, parseCtx, pp.config.GetColumnName("invoice_id")),
	}, nil
}
