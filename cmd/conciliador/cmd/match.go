package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"conciliador/cmd/conciliador/config"
	"conciliador/internal/models"
	"conciliador/internal/parsers"
	"conciliador/internal/rates"
	"conciliador/internal/reconciler"
	"conciliador/internal/reporter"
	"conciliador/pkg/errors"
	"conciliador/pkg/logger"
)

var matchFlags struct {
	extractoFile   string
	facturasFile   string
	pagosFile      string
	recibosFile    string
	ratesFile      string
	outputFormat   string
	outputFile     string
	includeReasons bool

	amountTolerance float64
	crossTolerance  float64
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Anota el extracto bancario contra facturas, pagos y recibos",
	Long: `Match classifies every bank statement movement against the document
pools: bank fees, credit card settlements, payments with linked invoices,
direct invoice matches, salary receipts. Movements that already carry an
annotation are skipped.

Examples:
  conciliador match --extracto extracto.csv --facturas facturas.csv --pagos pagos.csv
  conciliador match --extracto extracto.csv --facturas facturas.csv \
      --recibos recibos.csv --cotizaciones cotizaciones.csv --output-format csv`,
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringVar(&matchFlags.extractoFile, "extracto", "", "bank statement CSV (required)")
	matchCmd.Flags().StringVar(&matchFlags.facturasFile, "facturas", "", "invoices CSV")
	matchCmd.Flags().StringVar(&matchFlags.pagosFile, "pagos", "", "payments CSV")
	matchCmd.Flags().StringVar(&matchFlags.recibosFile, "recibos", "", "salary receipts CSV")
	matchCmd.Flags().StringVar(&matchFlags.ratesFile, "cotizaciones", "", "exchange rates CSV")
	matchCmd.Flags().StringVarP(&matchFlags.outputFormat, "output-format", "o", "console", "output format (console, json, csv)")
	matchCmd.Flags().StringVar(&matchFlags.outputFile, "output", "", "write the report to a file instead of stdout")
	matchCmd.Flags().BoolVar(&matchFlags.includeReasons, "include-reasons", false, "include per-movement match reasons")
	matchCmd.Flags().Float64Var(&matchFlags.amountTolerance, "amount-tolerance", 0.01, "absolute amount tolerance")
	matchCmd.Flags().Float64Var(&matchFlags.crossTolerance, "cross-tolerance", 5.0, "cross-currency tolerance percent")

	matchCmd.MarkFlagRequired("extracto")
}

func runMatch(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("cli")

	movements, err := loadMovements(matchFlags.extractoFile)
	if err != nil {
		return err
	}
	invoices, payments, receipts, err := loadPools(matchFlags.facturasFile, matchFlags.pagosFile, matchFlags.recibosFile)
	if err != nil {
		return err
	}
	rateProvider, err := loadRates(matchFlags.ratesFile)
	if err != nil {
		return err
	}

	reconcilerConfig := config.CreateReconcilerConfig(matchFlags.amountTolerance, matchFlags.crossTolerance)
	r, err := reconciler.New(reconcilerConfig, rateProvider)
	if err != nil {
		return err
	}

	result, err := r.MatchMovements(cmd.Context(), movements, invoices, receipts, payments)
	if err != nil {
		return err
	}

	reporterConfig, err := config.CreateReporterConfig(matchFlags.outputFormat, matchFlags.includeReasons)
	if err != nil {
		return err
	}
	rep, err := reporter.New(reporterConfig)
	if err != nil {
		return err
	}

	writer, closeWriter, err := openOutput(matchFlags.outputFile)
	if err != nil {
		return err
	}
	defer closeWriter()

	if err := rep.WriteMatchResult(result, writer); err != nil {
		return errors.InternalError("report_generation", err)
	}

	log.WithFields(logger.Fields{
		"annotated": result.Summary.Annotated,
		"unmatched": result.Summary.Unmatched,
	}).Info("match command completed")
	return nil
}

func loadMovements(path string) ([]*models.BankMovement, error) {
	parser, err := parsers.NewMovementParser(nil)
	if err != nil {
		return nil, err
	}
	movements, stats, err := parser.ParseMovements(path)
	if err != nil {
		return nil, err
	}
	warnStats("extracto", stats)
	return movements, nil
}

func loadPools(facturas, pagos, recibos string) ([]*models.Invoice, []*models.Payment, []*models.Receipt, error) {
	var invoices []*models.Invoice
	var payments []*models.Payment
	var receipts []*models.Receipt

	if facturas != "" {
		parser, err := parsers.NewInvoiceParser(nil)
		if err != nil {
			return nil, nil, nil, err
		}
		var stats *parsers.ParseStats
		invoices, stats, err = parser.ParseInvoices(facturas)
		if err != nil {
			return nil, nil, nil, err
		}
		warnStats("facturas", stats)
	}
	if pagos != "" {
		parser, err := parsers.NewPaymentParser(nil)
		if err != nil {
			return nil, nil, nil, err
		}
		var stats *parsers.ParseStats
		payments, stats, err = parser.ParsePayments(pagos)
		if err != nil {
			return nil, nil, nil, err
		}
		warnStats("pagos", stats)
	}
	if recibos != "" {
		parser, err := parsers.NewReceiptParser(nil)
		if err != nil {
			return nil, nil, nil, err
		}
		var stats *parsers.ParseStats
		receipts, stats, err = parser.ParseReceipts(recibos)
		if err != nil {
			return nil, nil, nil, err
		}
		warnStats("recibos", stats)
	}
	return invoices, payments, receipts, nil
}

// loadRates builds a coalescing provider over the static table so repeated
// lookups for the same currency/date resolve once.
func loadRates(path string) (rates.Provider, error) {
	if path == "" {
		return nil, nil
	}
	parser, err := parsers.NewRateParser(nil)
	if err != nil {
		return nil, err
	}
	static, stats, err := parser.ParseRates(path)
	if err != nil {
		return nil, err
	}
	warnStats("cotizaciones", stats)

	return rates.NewCoalescingProvider(func(currency models.Currency, date time.Time) (decimal.Decimal, error) {
		rate, ok := static.RateFor(currency, date)
		if !ok {
			return decimal.Zero, fmt.Errorf("no rate for %s at %s", currency, date.Format("2006-01-02"))
		}
		return rate, nil
	}), nil
}

func warnStats(name string, stats *parsers.ParseStats) {
	if stats != nil && stats.HasErrors() {
		logger.WithComponent("cli").WithFields(logger.Fields{
			"file":          name,
			"error_count":   stats.ErrorCount,
			"sample_errors": stats.SampleErrors(3),
		}).Warn("some rows were skipped")
	}
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, errors.FileError(errors.CodeFilePermission, path, err)
	}
	return file, func() { file.Close() }, nil
}
