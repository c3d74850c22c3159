package parsers

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"conciliador/internal/models"
	"conciliador/pkg/errors"
	"conciliador/pkg/logger"
)

// MovementParser ingests bank statement CSV exports. Unlike the document
// parsers it keeps provenance (sheet and row) on every movement so match
// results can point back into the statement.
type MovementParser struct {
	*baseParser
	config *ParserConfig
}

// NewMovementParser creates a bank movement parser. A nil config uses the
// standard statement layout.
func NewMovementParser(config *ParserConfig) (*MovementParser, error) {
	if config == nil {
		config = DefaultMovementParserConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "movement_parser_config", config, err)
	}
	return &MovementParser{
		baseParser: newBaseParser(config.parseConfig(), "movement_parser"),
		config:     config,
	}, nil
}

// ParseMovements parses a CSV bank statement.
func (mp *MovementParser) ParseMovements(filePath string) ([]*models.BankMovement, *ParseStats, error) {
	return mp.ParseMovementsWithContext(context.Background(), filePath)
}

// ParseMovementsWithContext parses bank movements with cancellation support.
func (mp *MovementParser) ParseMovementsWithContext(ctx context.Context, filePath string) ([]*models.BankMovement, *ParseStats, error) {
	mp.logger.WithField("file_path", filePath).Info("parsing bank movements")

	file, reader, err := mp.openFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	parseCtx := newParseContext(ctx)
	stats := &ParseStats{}
	sheet := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))

	required := []string{
		mp.config.GetColumnName("transaction_date"),
		mp.config.GetColumnName("concept"),
	}
	if err := mp.readHeaders(reader, parseCtx, filePath, required); err != nil {
		return nil, stats, err
	}

	var movements []*models.BankMovement
	for {
		if parseCtx.cancelled() {
			return movements, stats, errors.InternalError("movement_parsing", ctx.Err())
		}

		record, err := mp.readRecord(reader, parseCtx)
		if err == io.EOF {
			break
		}
		if err != nil {
			stats.AddError(&RowError{Line: parseCtx.lineNumber, Message: "unreadable CSV record", Err: err})
			continue
		}

		movement, rowErr := mp.parseRecord(record, parseCtx, sheet)
		if rowErr != nil {
			stats.AddError(rowErr)
			continue
		}
		if err := movement.Validate(); err != nil {
			stats.AddError(&RowError{Line: parseCtx.lineNumber, Value: movement.Concept, Message: "invalid movement", Err: err})
			continue
		}

		movements = append(movements, movement)
		stats.RecordsValid++
	}
	stats.TotalLines = parseCtx.lineNumber

	mp.logger.WithFields(logger.Fields{
		"file_path":     filePath,
		"records_valid": stats.RecordsValid,
		"error_count":   stats.ErrorCount,
	}).Info("movement parsing completed")
	if stats.HasErrors() {
		mp.logger.WithField("sample_errors", stats.SampleErrors(3)).Warn("some movement rows were skipped")
	}
	return movements, stats, nil
}

func (mp *MovementParser) parseRecord(record []string, parseCtx *parseContext, sheet string) (*models.BankMovement, *RowError) {
	transactionDate, rowErr := mp.parseDateField(record, parseCtx, mp.config.GetColumnName("transaction_date"))
	if rowErr != nil {
		return nil, rowErr
	}

	movement := &models.BankMovement{
		TransactionDate: transactionDate,
		Concept:         mp.fieldValue(record, parseCtx, mp.config.GetColumnName("concept")),
		Annotation:      mp.fieldValue(record, parseCtx, mp.config.GetColumnName("annotation")),
		Sheet:           sheet,
		Row:             parseCtx.lineNumber,
	}

	// Value date is optional on many statements.
	if raw := mp.fieldValue(record, parseCtx, mp.config.GetColumnName("value_date")); raw != "" {
		valueDate, rowErr := mp.parseDateField(record, parseCtx, mp.config.GetColumnName("value_date"))
		if rowErr != nil {
			return nil, rowErr
		}
		movement.ValueDate = valueDate
	}

	debit, rowErr := mp.optionalAmount(record, parseCtx, mp.config.GetColumnName("debit"))
	if rowErr != nil {
		return nil, rowErr
	}
	movement.Debit = debit

	credit, rowErr := mp.optionalAmount(record, parseCtx, mp.config.GetColumnName("credit"))
	if rowErr != nil {
		return nil, rowErr
	}
	movement.Credit = credit

	return movement, nil
}

// optionalAmount parses a monetary column that may legitimately be empty:
// statement rows carry either a debit or a credit, rarely both.
func (mp *MovementParser) optionalAmount(record []string, parseCtx *parseContext, name string) (*decimal.Decimal, *RowError) {
	raw := mp.fieldValue(record, parseCtx, name)
	if raw == "" {
		return nil, nil
	}
	amount, err := ParseAmount(raw)
	if err != nil {
		return nil, &RowError{
			Line: parseCtx.lineNumber, Field: name, Value: raw,
			Message: "unparseable amount", Err: err,
		}
	}
	return &amount, nil
}
