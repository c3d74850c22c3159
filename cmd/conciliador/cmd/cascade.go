package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"conciliador/cmd/conciliador/config"
	"conciliador/internal/cascade"
	"conciliador/internal/reconciler"
	"conciliador/internal/reporter"
	"conciliador/pkg/errors"
	"conciliador/pkg/logger"
)

var cascadeFlags struct {
	facturasFile string
	pagosFile    string
	recibosFile  string
	ratesFile    string
	outputFormat string
	outputFile   string

	maxDepth int
	timeout  time.Duration

	amountTolerance float64
	crossTolerance  float64
}

var cascadeCmd = &cobra.Command{
	Use:   "cascade",
	Short: "Reasigna pagos a facturas y recibos por desplazamiento",
	Long: `Cascade re-matches every unassigned payment against the invoice and
receipt pools. A strictly better pairing displaces a weaker existing one; the
displaced document is re-matched in turn, bounded by depth, cycle detection
and a wall-clock budget.

Examples:
  conciliador cascade --facturas facturas.csv --pagos pagos.csv
  conciliador cascade --facturas facturas.csv --pagos pagos.csv \
      --recibos recibos.csv --max-depth 5 --output-format json`,
	RunE: runCascade,
}

func init() {
	rootCmd.AddCommand(cascadeCmd)

	cascadeCmd.Flags().StringVar(&cascadeFlags.facturasFile, "facturas", "", "invoices CSV")
	cascadeCmd.Flags().StringVar(&cascadeFlags.pagosFile, "pagos", "", "payments CSV (required)")
	cascadeCmd.Flags().StringVar(&cascadeFlags.recibosFile, "recibos", "", "salary receipts CSV")
	cascadeCmd.Flags().StringVar(&cascadeFlags.ratesFile, "cotizaciones", "", "exchange rates CSV")
	cascadeCmd.Flags().StringVarP(&cascadeFlags.outputFormat, "output-format", "o", "console", "output format (console, json, csv)")
	cascadeCmd.Flags().StringVar(&cascadeFlags.outputFile, "output", "", "write the report to a file instead of stdout")
	cascadeCmd.Flags().IntVar(&cascadeFlags.maxDepth, "max-depth", 10, "maximum eviction chain depth")
	cascadeCmd.Flags().DurationVar(&cascadeFlags.timeout, "timeout", 30*time.Second, "wall-clock budget for the run")
	cascadeCmd.Flags().Float64Var(&cascadeFlags.amountTolerance, "amount-tolerance", 0.01, "absolute amount tolerance")
	cascadeCmd.Flags().Float64Var(&cascadeFlags.crossTolerance, "cross-tolerance", 5.0, "cross-currency tolerance percent")

	cascadeCmd.MarkFlagRequired("pagos")
}

func runCascade(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("cli")

	invoices, payments, receipts, err := loadPools(cascadeFlags.facturasFile, cascadeFlags.pagosFile, cascadeFlags.recibosFile)
	if err != nil {
		return err
	}
	rateProvider, err := loadRates(cascadeFlags.ratesFile)
	if err != nil {
		return err
	}

	reconcilerConfig := config.CreateReconcilerConfig(cascadeFlags.amountTolerance, cascadeFlags.crossTolerance)
	reconcilerConfig.Cascade.MaxDepth = cascadeFlags.maxDepth
	reconcilerConfig.Cascade.Timeout = cascadeFlags.timeout

	r, err := reconciler.New(reconcilerConfig, rateProvider)
	if err != nil {
		return err
	}

	batch := &cascade.Batch{Invoices: invoices, Payments: payments, Receipts: receipts}
	pending := reconciler.PendingPayments(batch)
	if len(pending) == 0 {
		log.Info("no pending payments, nothing to do")
	}

	result, err := r.RunCascade(batch, pending)
	if err != nil {
		return err
	}
	reconciler.ApplyUpdates(batch, result.Updates)

	reporterConfig, err := config.CreateReporterConfig(cascadeFlags.outputFormat, false)
	if err != nil {
		return err
	}
	rep, err := reporter.New(reporterConfig)
	if err != nil {
		return err
	}

	writer, closeWriter, err := openOutput(cascadeFlags.outputFile)
	if err != nil {
		return err
	}
	defer closeWriter()

	if err := rep.WriteCascadeResult(result, writer); err != nil {
		return errors.InternalError("report_generation", err)
	}

	if result.Halted {
		return errors.MatchingError(errors.CodeCascadeHalted, "cascade", nil)
	}

	log.WithFields(logger.Fields{
		"updates":       len(result.Updates),
		"displacements": result.Displacements,
	}).Info("cascade command completed")
	return nil
}
