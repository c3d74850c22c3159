// Package config builds the component configurations from CLI inputs.
package config

import (
	"fmt"

	"github.com/shopspring/decimal"

	"conciliador/internal/reconciler"
	"conciliador/internal/reporter"
)

// CreateReconcilerConfig creates a reconciler configuration with the CLI
// tolerance overrides applied.
func CreateReconcilerConfig(amountTolerance, crossTolerancePercent float64) *reconciler.Config {
	config := reconciler.DefaultConfig()
	config.Matching.AmountTolerance = decimal.NewFromFloat(amountTolerance)
	config.Matching.CrossCurrencyTolerancePercent = crossTolerancePercent
	return config
}

// CreateReporterConfig creates a reporter configuration for the requested
// output format.
func CreateReporterConfig(format string, includeReasons bool) (*reporter.Config, error) {
	config := reporter.DefaultConfig()
	config.IncludeReasons = includeReasons

	switch format {
	case "console":
		config.Format = reporter.FormatConsole
	case "json":
		config.Format = reporter.FormatJSON
	case "csv":
		config.Format = reporter.FormatCSV
	default:
		return nil, fmt.Errorf("unsupported output format: %q (use console, json or csv)", format)
	}
	return config, nil
}
