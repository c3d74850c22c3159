package parsers

import (
	"context"
	"io"

	"conciliador/internal/models"
	"conciliador/internal/rates"
	"conciliador/pkg/errors"
	"conciliador/pkg/logger"
)

// DefaultRateParserConfig matches the exchange-rate table export.
func DefaultRateParserConfig() *ParserConfig {
	return &ParserConfig{
		HasHeader: true,
		Delimiter: ',',
		ColumnMappings: map[string]string{
			"currency": "moneda",
			"date":     "fecha",
			"rate":     "cotizacion",
		},
	}
}

// RateParser ingests historical exchange-rate CSV tables into a static rate
// provider.
type RateParser struct {
	*baseParser
	config *ParserConfig
}

// NewRateParser creates a rate parser. A nil config uses the standard layout.
func NewRateParser(config *ParserConfig) (*RateParser, error) {
	if config == nil {
		config = DefaultRateParserConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "rate_parser_config", config, err)
	}
	return &RateParser{
		baseParser: newBaseParser(config.parseConfig(), "rate_parser"),
		config:     config,
	}, nil
}

// ParseRates parses a CSV rate table into a provider.
func (rp *RateParser) ParseRates(filePath string) (*rates.StaticProvider, *ParseStats, error) {
	return rp.ParseRatesWithContext(context.Background(), filePath)
}

// ParseRatesWithContext parses rates with cancellation support.
func (rp *RateParser) ParseRatesWithContext(ctx context.Context, filePath string) (*rates.StaticProvider, *ParseStats, error) {
	rp.logger.WithField("file_path", filePath).Info("parsing exchange rates")

	file, reader, err := rp.openFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	parseCtx := newParseContext(ctx)
	stats := &ParseStats{}

	required := []string{
		rp.config.GetColumnName("currency"),
		rp.config.GetColumnName("date"),
		rp.config.GetColumnName("rate"),
	}
	if err := rp.readHeaders(reader, parseCtx, filePath, required); err != nil {
		return nil, stats, err
	}

	provider := rates.NewStaticProvider()
	for {
		if parseCtx.cancelled() {
			return provider, stats, errors.InternalError("rate_parsing", ctx.Err())
		}

		record, err := rp.readRecord(reader, parseCtx)
		if err == io.EOF {
			break
		}
		if err != nil {
			stats.AddError(&RowError{Line: parseCtx.lineNumber, Message: "unreadable CSV record", Err: err})
			continue
		}

		date, rowErr := rp.parseDateField(record, parseCtx, rp.config.GetColumnName("date"))
		if rowErr != nil {
			stats.AddError(rowErr)
			continue
		}
		rate, rowErr := rp.parseAmountField(record, parseCtx, rp.config.GetColumnName("rate"))
		if rowErr != nil {
			stats.AddError(rowErr)
			continue
		}
		currency := models.ParseCurrency(rp.fieldValue(record, parseCtx, rp.config.GetColumnName("currency")))
		if !currency.IsForeign() {
			stats.AddError(&RowError{
				Line: parseCtx.lineNumber, Field: rp.config.GetColumnName("currency"),
				Value: currency.String(), Message: "rates are only meaningful for foreign currencies",
			})
			continue
		}

		provider.Add(currency, date, rate)
		stats.RecordsValid++
	}
	stats.TotalLines = parseCtx.lineNumber

	rp.logger.WithFields(logger.Fields{
		"file_path":     filePath,
		"records_valid": stats.RecordsValid,
		"error_count":   stats.ErrorCount,
	}).Info("rate parsing completed")
	return provider, stats, nil
}
