// Package parsers ingests the CSV exports the reconciliation works from:
// issued invoices, registered payments, salary receipts and bank statement
// movements.
//
// Real exports are messy: day-first dates, comma decimals, currency symbols,
// shifted header names between accounting systems. Parsers accept configurable
// column mappings, collect row-level errors into ParseStats instead of
// aborting, and validate every record before it enters a batch.
//
// Example usage:
//
//	parser, err := parsers.NewInvoiceParser(nil)
//	invoices, stats, err := parser.ParseInvoices("facturas.csv")
package parsers

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"conciliador/internal/lexical"
	"conciliador/pkg/errors"
	"conciliador/pkg/logger"
)

// RowError is a parsing or validation failure pinned to one CSV row.
type RowError struct {
	Line    int
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("line %d, field %q (%q): %s", e.Line, e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ParseConfig holds the CSV-level knobs shared by all document parsers.
type ParseConfig struct {
	HasHeader        bool
	Delimiter        rune
	TrimLeadingSpace bool
	SkipEmptyRows    bool
	ValidateEncoding bool
}

// DefaultParseConfig returns a configuration with sensible defaults.
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		HasHeader:        true,
		Delimiter:        ',',
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
		ValidateEncoding: true,
	}
}

// baseParser provides the CSV plumbing shared by the document parsers.
type baseParser struct {
	config *ParseConfig
	logger logger.Logger
}

func newBaseParser(config *ParseConfig, component string) *baseParser {
	if config == nil {
		config = DefaultParseConfig()
	}
	return &baseParser{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent(component),
	}
}

// parseContext holds state for one file.
type parseContext struct {
	lineNumber int
	headers    []string
	headerMap  map[string]int
	ctx        context.Context
}

func newParseContext(ctx context.Context) *parseContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &parseContext{headerMap: make(map[string]int), ctx: ctx}
}

func (pc *parseContext) cancelled() bool {
	select {
	case <-pc.ctx.Done():
		return true
	default:
		return false
	}
}

// columnIndex resolves a logical column name through the headers, case
// insensitively.
func (pc *parseContext) columnIndex(name string) int {
	if index, ok := pc.headerMap[name]; ok {
		return index
	}
	lower := strings.ToLower(name)
	for header, index := range pc.headerMap {
		if strings.ToLower(header) == lower {
			return index
		}
	}
	return -1
}

func (bp *baseParser) openFile(filePath string) (*os.File, *csv.Reader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		bp.logger.WithError(err).WithField("file_path", filePath).Error("failed to open CSV file")
		if os.IsNotExist(err) {
			return nil, nil, errors.FileError(errors.CodeFileNotFound, filePath, err)
		}
		if os.IsPermission(err) {
			return nil, nil, errors.FileError(errors.CodeFilePermission, filePath, err)
		}
		return nil, nil, errors.FileError(errors.CodeFileRead, filePath, err)
	}

	if bp.config.ValidateEncoding {
		if err := bp.validateEncoding(file, filePath); err != nil {
			file.Close()
			return nil, nil, err
		}
		if _, err := file.Seek(0, 0); err != nil {
			file.Close()
			return nil, nil, errors.FileError(errors.CodeFileRead, filePath, err)
		}
	}

	reader := csv.NewReader(file)
	reader.Comma = bp.config.Delimiter
	reader.TrimLeadingSpace = bp.config.TrimLeadingSpace
	reader.FieldsPerRecord = -1
	return file, reader, nil
}

// validateEncoding checks the first lines for valid UTF-8 text, catching
// Latin-1 exports before they corrupt names and concepts downstream.
func (bp *baseParser) validateEncoding(file *os.File, filePath string) error {
	scanner := bufio.NewScanner(file)
	for line := 1; scanner.Scan() && line <= 100; line++ {
		if !utf8.Valid(scanner.Bytes()) {
			return errors.ParseError(errors.CodeInvalidFormat, filePath, line, "encoding", "", nil).
				WithSuggestion("save the file in UTF-8 encoding and try again")
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.FileError(errors.CodeFileRead, filePath, err)
	}
	return nil
}

// readHeaders consumes the header row and checks the required columns.
func (bp *baseParser) readHeaders(reader *csv.Reader, parseCtx *parseContext, filePath string, required []string) error {
	if !bp.config.HasHeader {
		parseCtx.headers = append(parseCtx.headers, required...)
		bp.buildHeaderMap(parseCtx)
		return nil
	}

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return errors.ParseError(errors.CodeInvalidFormat, filePath, 0, "headers", "", nil).
				WithSuggestion("the file is empty; ensure it contains header and data rows")
		}
		return errors.ParseError(errors.CodeInvalidFormat, filePath, 1, "headers", "", err)
	}

	parseCtx.lineNumber++
	parseCtx.headers = make([]string, len(headers))
	for i, header := range headers {
		parseCtx.headers[i] = strings.TrimSpace(header)
	}
	bp.buildHeaderMap(parseCtx)

	var missing []string
	for _, name := range required {
		if parseCtx.columnIndex(name) == -1 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		bp.logger.WithFields(logger.Fields{
			"missing_headers":   missing,
			"available_headers": parseCtx.headers,
		}).Error("required headers are missing")
		return errors.ParseError(errors.CodeMissingColumn, filePath, parseCtx.lineNumber,
			strings.Join(missing, ", "), "", nil)
	}
	return nil
}

func (bp *baseParser) buildHeaderMap(parseCtx *parseContext) {
	parseCtx.headerMap = make(map[string]int, len(parseCtx.headers))
	for i, header := range parseCtx.headers {
		parseCtx.headerMap[header] = i
	}
}

// readRecord reads the next data row, skipping empty rows when configured.
func (bp *baseParser) readRecord(reader *csv.Reader, parseCtx *parseContext) ([]string, error) {
	for {
		record, err := reader.Read()
		if err != nil {
			return nil, err
		}
		parseCtx.lineNumber++

		if bp.config.SkipEmptyRows && isEmptyRecord(record) {
			continue
		}
		return record, nil
	}
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// fieldValue returns the trimmed value of a logical column, or "" when the
// column is absent or the row is short.
func (bp *baseParser) fieldValue(record []string, parseCtx *parseContext, name string) string {
	index := parseCtx.columnIndex(name)
	if index == -1 || index >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[index])
}

// ParseAmount parses a monetary value tolerating Argentine formatting:
// currency symbols, thin spaces, dot thousands separators and a comma
// decimal mark ("$ 1.234,56") alongside plain "1234.56".
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-':
			return r
		default:
			return -1
		}
	}, s)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("no numeric content in %q", s)
	}

	hasDot := strings.Contains(cleaned, ".")
	hasComma := strings.Contains(cleaned, ",")
	switch {
	case hasDot && hasComma:
		// Whichever separator comes last is the decimal mark.
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case hasComma:
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	}

	return decimal.NewFromString(cleaned)
}

// parseDateField parses a required date column, reporting a RowError on
// failure.
func (bp *baseParser) parseDateField(record []string, parseCtx *parseContext, name string) (time.Time, *RowError) {
	raw := bp.fieldValue(record, parseCtx, name)
	if raw == "" {
		return time.Time{}, &RowError{
			Line: parseCtx.lineNumber, Field: name,
			Message: "required date is missing",
		}
	}
	t, err := lexical.ParseDate(raw)
	if err != nil {
		return time.Time{}, &RowError{
			Line: parseCtx.lineNumber, Field: name, Value: raw,
			Message: "unparseable date", Err: err,
		}
	}
	return t, nil
}

// parseAmountField parses a required monetary column, reporting a RowError on
// failure.
func (bp *baseParser) parseAmountField(record []string, parseCtx *parseContext, name string) (decimal.Decimal, *RowError) {
	raw := bp.fieldValue(record, parseCtx, name)
	if raw == "" {
		return decimal.Zero, &RowError{
			Line: parseCtx.lineNumber, Field: name,
			Message: "required amount is missing",
		}
	}
	amount, err := ParseAmount(raw)
	if err != nil {
		return decimal.Zero, &RowError{
			Line: parseCtx.lineNumber, Field: name, Value: raw,
			Message: "unparseable amount", Err: err,
		}
	}
	return amount, nil
}

// ParseStats summarizes one file ingestion.
type ParseStats struct {
	TotalLines   int
	RecordsValid int
	ErrorCount   int
	Errors       []*RowError
}

// AddError records a row-level failure.
func (ps *ParseStats) AddError(err *RowError) {
	ps.Errors = append(ps.Errors, err)
	ps.ErrorCount++
}

// HasErrors reports whether any rows failed.
func (ps *ParseStats) HasErrors() bool {
	return ps.ErrorCount > 0
}

// SampleErrors returns up to max formatted row errors for logging.
func (ps *ParseStats) SampleErrors(max int) []string {
	var samples []string
	for i, err := range ps.Errors {
		if max > 0 && i >= max {
			break
		}
		samples = append(samples, err.Error())
	}
	return samples
}

// String returns a human-readable summary.
func (ps *ParseStats) String() string {
	return fmt.Sprintf("parsed %d lines, %d valid records, %d errors",
		ps.TotalLines, ps.RecordsValid, ps.ErrorCount)
}
