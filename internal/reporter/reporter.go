// Package reporter renders reconciliation outcomes for people and pipelines.
//
// Supported output formats:
//   - Console: human-readable summary for terminal review
//   - JSON: structured output for programmatic consumption
//   - CSV: per-movement annotations for spreadsheet import
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"conciliador/internal/cascade"
	"conciliador/internal/matcher"
	"conciliador/internal/models"
	"conciliador/internal/reconciler"
)

// OutputFormat selects how results are rendered.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid reports whether the format is supported.
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// Config holds rendering options.
type Config struct {
	Format OutputFormat `json:"format"`

	// IncludeReasons adds the per-movement reason lists to console and CSV
	// output.
	IncludeReasons bool `json:"include_reasons"`

	// MaxDetailRows caps the per-movement detail section on console output;
	// zero means no cap.
	MaxDetailRows int `json:"max_detail_rows"`

	CSVDelimiter rune `json:"csv_delimiter"`
}

// DefaultConfig returns the default rendering options.
func DefaultConfig() *Config {
	return &Config{
		Format:       FormatConsole,
		CSVDelimiter: ',',
	}
}

// Validate checks the rendering options.
func (c *Config) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxDetailRows < 0 {
		return fmt.Errorf("max detail rows cannot be negative: %d", c.MaxDetailRows)
	}
	return nil
}

// Reporter renders match and cascade results.
type Reporter struct {
	config *Config
}

// New creates a reporter. A nil config uses defaults.
func New(config *Config) (*Reporter, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reporter configuration: %w", err)
	}
	return &Reporter{config: config}, nil
}

// WriteMatchResult renders a movement-matching pass.
func (r *Reporter) WriteMatchResult(result *reconciler.MatchResult, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("match result cannot be nil")
	}
	switch r.config.Format {
	case FormatConsole:
		return r.writeMatchConsole(result, writer)
	case FormatJSON:
		return writeJSON(result, writer)
	case FormatCSV:
		return r.writeMatchCSV(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", r.config.Format)
	}
}

// WriteCascadeResult renders a displacement run.
func (r *Reporter) WriteCascadeResult(result *cascade.Result, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("cascade result cannot be nil")
	}
	switch r.config.Format {
	case FormatConsole:
		return r.writeCascadeConsole(result, writer)
	case FormatJSON:
		return writeJSON(result, writer)
	case FormatCSV:
		return r.writeCascadeCSV(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", r.config.Format)
	}
}

func writeJSON(v interface{}, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func (r *Reporter) writeMatchConsole(result *reconciler.MatchResult, writer io.Writer) error {
	summary := result.Summary

	fmt.Fprintf(writer, "CONCILIACION DE EXTRACTO\n")
	fmt.Fprintf(writer, "Generado: %s\n", result.ProcessedAt.Format(time.RFC3339))
	fmt.Fprintf(writer, "Duración: %v\n\n", summary.ProcessingDuration)

	fmt.Fprintf(writer, "=== RESUMEN ===\n")
	fmt.Fprintf(writer, "Movimientos:  %d\n", summary.TotalMovements)
	fmt.Fprintf(writer, "Anotados:     %d\n", summary.Annotated)
	fmt.Fprintf(writer, "Omitidos:     %d\n", summary.Skipped)
	fmt.Fprintf(writer, "Sin conciliar: %d\n\n", summary.Unmatched)

	fmt.Fprintf(writer, "=== POR TIPO ===\n")
	for _, matchType := range sortedTypeKeys(summary.ByType) {
		fmt.Fprintf(writer, "%-22s %d\n", matchType, summary.ByType[matchType])
	}
	fmt.Fprintln(writer)

	if len(summary.ByConfidence) > 0 {
		fmt.Fprintf(writer, "=== POR CONFIANZA ===\n")
		for _, tier := range []string{"high", "medium", "low"} {
			if count, ok := summary.ByConfidence[tier]; ok {
				fmt.Fprintf(writer, "%-8s %d\n", tier, count)
			}
		}
		fmt.Fprintln(writer)
	}

	fmt.Fprintf(writer, "=== MOVIMIENTOS ===\n")
	for i, mr := range result.Results {
		if r.config.MaxDetailRows > 0 && i >= r.config.MaxDetailRows {
			fmt.Fprintf(writer, "... %d más\n", len(result.Results)-i)
			break
		}
		r.writeMovementLine(mr, writer)
	}
	return nil
}

func (r *Reporter) writeMovementLine(mr *reconciler.MovementResult, writer io.Writer) {
	mv := mr.Movement
	date := mv.TransactionDate.Format("02/01/2006")

	if mr.Skipped {
		fmt.Fprintf(writer, "%s  %-40s  [omitido: %s]\n", date, truncate(mv.Concept, 40), mv.Annotation)
		return
	}

	annotation := mr.Annotation
	if annotation == "" {
		annotation = "SIN CONCILIAR"
	}
	fmt.Fprintf(writer, "%s  %-40s  %s\n", date, truncate(mv.Concept, 40), annotation)

	if r.config.IncludeReasons && mr.Match != nil {
		for _, reason := range mr.Match.Reasons {
			fmt.Fprintf(writer, "    - %s\n", reason)
		}
	}
}

func (r *Reporter) writeMatchCSV(result *reconciler.MatchResult, writer io.Writer) error {
	w := csv.NewWriter(writer)
	w.Comma = r.config.CSVDelimiter

	header := []string{"fecha", "concepto", "debito", "credito", "tipo", "confianza", "anotacion"}
	if r.config.IncludeReasons {
		header = append(header, "motivos")
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, mr := range result.Results {
		mv := mr.Movement
		row := []string{
			mv.TransactionDate.Format("02/01/2006"),
			mv.Concept,
			decimalOrEmpty(mv.Debit != nil, mv.DebitAmount().StringFixed(2)),
			decimalOrEmpty(mv.Credit != nil, mv.CreditAmount().StringFixed(2)),
		}
		if mr.Skipped {
			row = append(row, "", "", mv.Annotation)
		} else {
			row = append(row, string(mr.Match.Type), mr.Match.Confidence.String(), mr.Annotation)
		}
		if r.config.IncludeReasons {
			if mr.Match != nil {
				row = append(row, strings.Join(mr.Match.Reasons, "; "))
			} else {
				row = append(row, "")
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func (r *Reporter) writeCascadeConsole(result *cascade.Result, writer io.Writer) error {
	fmt.Fprintf(writer, "CASCADA DE REASIGNACION\n")
	fmt.Fprintf(writer, "Corrida: %s\n", result.RunID)
	fmt.Fprintf(writer, "Duración: %v\n\n", result.Elapsed)

	fmt.Fprintf(writer, "=== RESUMEN ===\n")
	fmt.Fprintf(writer, "Procesados:     %d\n", result.Processed)
	fmt.Fprintf(writer, "Actualizaciones: %d\n", len(result.Updates))
	fmt.Fprintf(writer, "Desplazamientos: %d\n", result.Displacements)
	fmt.Fprintf(writer, "Profundidad máx: %d\n", result.MaxDepthReached)
	if result.CyclesDetected > 0 {
		fmt.Fprintf(writer, "Ciclos detectados: %d\n", result.CyclesDetected)
	}
	if result.DepthExceeded > 0 {
		fmt.Fprintf(writer, "Cadenas cortadas por profundidad: %d\n", result.DepthExceeded)
	}
	if result.Halted {
		fmt.Fprintf(writer, "ATENCION: corrida detenida por tiempo, actualizaciones parciales\n")
	}
	fmt.Fprintln(writer)

	fmt.Fprintf(writer, "=== ACTUALIZACIONES ===\n")
	for _, upd := range sortedUpdates(result.Updates) {
		if upd.IsUnmatch() {
			fmt.Fprintf(writer, "%-10s %-12s -> sin asignar\n", upd.Kind, upd.DocumentID)
			continue
		}
		fmt.Fprintf(writer, "%-10s %-12s -> %-12s (%s)\n", upd.Kind, upd.DocumentID, upd.CounterpartID, upd.Confidence)
	}
	return nil
}

func (r *Reporter) writeCascadeCSV(result *cascade.Result, writer io.Writer) error {
	w := csv.NewWriter(writer)
	w.Comma = r.config.CSVDelimiter

	if err := w.Write([]string{"tipo", "documento", "contraparte", "confianza", "identidad", "pagada"}); err != nil {
		return err
	}
	for _, upd := range sortedUpdates(result.Updates) {
		row := []string{
			string(upd.Kind),
			upd.DocumentID,
			upd.CounterpartID,
			upd.Confidence.String(),
			fmt.Sprintf("%t", upd.IdentityMatched),
			fmt.Sprintf("%t", upd.MarkPaid),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// sortedUpdates orders an update set by kind then document ID for stable
// output.
func sortedUpdates(updates map[string]models.MatchUpdate) []models.MatchUpdate {
	sorted := make([]models.MatchUpdate, 0, len(updates))
	for _, upd := range updates {
		sorted = append(sorted, upd)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Kind != sorted[j].Kind {
			return sorted[i].Kind < sorted[j].Kind
		}
		return sorted[i].DocumentID < sorted[j].DocumentID
	})
	return sorted
}

func sortedTypeKeys(byType map[matcher.MovementMatchType]int) []matcher.MovementMatchType {
	keys := make([]matcher.MovementMatchType, 0, len(byType))
	for k := range byType {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func decimalOrEmpty(present bool, value string) string {
	if !present {
		return ""
	}
	return value
}
