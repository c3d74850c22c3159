package parsers

import (
	"context"
	"io"

	"conciliador/internal/models"
	"conciliador/pkg/errors"
	"conciliador/pkg/logger"
)

// ReceiptParser ingests salary-receipt CSV exports.
type ReceiptParser struct {
	*baseParser
	config *ParserConfig
}

// NewReceiptParser creates a receipt parser. A nil config uses the standard
// export layout.
func NewReceiptParser(config *ParserConfig) (*ReceiptParser, error) {
	if config == nil {
		config = DefaultReceiptParserConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "receipt_parser_config", config, err)
	}
	return &ReceiptParser{
		baseParser: newBaseParser(config.parseConfig(), "receipt_parser"),
		config:     config,
	}, nil
}

// ParseReceipts parses a CSV file of salary receipts.
func (rp *ReceiptParser) ParseReceipts(filePath string) ([]*models.Receipt, *ParseStats, error) {
	return rp.ParseReceiptsWithContext(context.Background(), filePath)
}

// ParseReceiptsWithContext parses receipts with cancellation support.
func (rp *ReceiptParser) ParseReceiptsWithContext(ctx context.Context, filePath string) ([]*models.Receipt, *ParseStats, error) {
	rp.logger.WithField("file_path", filePath).Info("parsing receipts")

	file, reader, err := rp.openFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	parseCtx := newParseContext(ctx)
	stats := &ParseStats{}

	required := []string{
		rp.config.GetColumnName("id"),
		rp.config.GetColumnName("payment_date"),
		rp.config.GetColumnName("net_amount"),
	}
	if err := rp.readHeaders(reader, parseCtx, filePath, required); err != nil {
		return nil, stats, err
	}

	var receipts []*models.Receipt
	for {
		if parseCtx.cancelled() {
			return receipts, stats, errors.InternalError("receipt_parsing", ctx.Err())
		}

		record, err := rp.readRecord(reader, parseCtx)
		if err == io.EOF {
			break
		}
		if err != nil {
			stats.AddError(&RowError{Line: parseCtx.lineNumber, Message: "unreadable CSV record", Err: err})
			continue
		}

		receipt, rowErr := rp.parseRecord(record, parseCtx)
		if rowErr != nil {
			stats.AddError(rowErr)
			continue
		}
		if err := receipt.Validate(); err != nil {
			stats.AddError(&RowError{Line: parseCtx.lineNumber, Value: receipt.ID, Message: "invalid receipt", Err: err})
			continue
		}

		receipts = append(receipts, receipt)
		stats.RecordsValid++
	}
	stats.TotalLines = parseCtx.lineNumber

	rp.logger.WithFields(logger.Fields{
		"file_path":     filePath,
		"records_valid": stats.RecordsValid,
		"error_count":   stats.ErrorCount,
	}).Info("receipt parsing completed")
	if stats.HasErrors() {
		rp.logger.WithField("sample_errors", stats.SampleErrors(3)).Warn("some receipt rows were skipped")
	}
	return receipts, stats, nil
}

func (rp *ReceiptParser) parseRecord(record []string, parseCtx *parseContext) (*models.Receipt, *RowError) {
	paymentDate, rowErr := rp.parseDateField(record, parseCtx, rp.config.GetColumnName("payment_date"))
	if rowErr != nil {
		return nil, rowErr
	}
	netAmount, rowErr := rp.parseAmountField(record, parseCtx, rp.config.GetColumnName("net_amount"))
	if rowErr != nil {
		return nil, rowErr
	}

	return &models.Receipt{
		ID:            rp.fieldValue(record, parseCtx, rp.config.GetColumnName("id")),
		PaymentDate:   paymentDate,
		EmployeeTaxID: rp.fieldValue(record, parseCtx, rp.config.GetColumnName("employee_tax_id")),
		EmployeeName:  rp.fieldValue(record, parseCtx, rp.config.GetColumnName("employee_name")),
		NetAmount:     netAmount,
	}, nil
}
