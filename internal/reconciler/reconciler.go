// Package reconciler orchestrates the two reconciliation passes: annotating
// bank statement movements against the document pools, and running the
// displacement cascade over payments, invoices and receipts.
//
// It owns no I/O: parsers produce the inputs, the reporter renders the
// outputs, and a persistence collaborator applies the update batches.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"conciliador/internal/cascade"
	"conciliador/internal/matcher"
	"conciliador/internal/models"
	"conciliador/internal/rates"
	"conciliador/pkg/errors"
	"conciliador/pkg/logger"
)

// Config aggregates the tuning knobs for both passes.
type Config struct {
	Matching *matcher.MatchingConfig `json:"matching"`
	Cascade  *cascade.Config         `json:"cascade"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		Matching: matcher.DefaultMatchingConfig(),
		Cascade:  cascade.DefaultConfig(),
	}
}

// Validate checks both sections.
func (c *Config) Validate() error {
	if c.Matching == nil || c.Cascade == nil {
		return fmt.Errorf("matching and cascade configuration are both required")
	}
	if err := c.Matching.Validate(); err != nil {
		return fmt.Errorf("matching: %w", err)
	}
	if err := c.Cascade.Validate(); err != nil {
		return fmt.Errorf("cascade: %w", err)
	}
	return nil
}

// Reconciler ties the matchers and the displacement engine together.
type Reconciler struct {
	config    *Config
	movements *matcher.MovementMatcher
	engine    *cascade.Engine
	logger    logger.Logger
}

// New creates a reconciler. A nil config uses defaults; a nil rate provider
// disables cross-currency matching.
func New(config *Config, rateProvider rates.Provider) (*Reconciler, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reconciler_config", config, err)
	}

	paymentMatcher := matcher.NewPaymentMatcher(config.Matching, rateProvider)
	return &Reconciler{
		config:    config,
		movements: matcher.NewMovementMatcher(config.Matching, rateProvider),
		engine:    cascade.NewEngine(config.Cascade, paymentMatcher),
		logger:    logger.GetGlobalLogger().WithComponent("reconciler"),
	}, nil
}

// MovementResult pairs one statement line with its match decision and the
// annotation to write back.
type MovementResult struct {
	Movement   *models.BankMovement   `json:"movement"`
	Match      *matcher.MovementMatch `json:"match"`
	Annotation string                 `json:"annotation,omitempty"`
	Skipped    bool                   `json:"skipped,omitempty"`
}

// MatchSummary aggregates a movement-matching pass.
type MatchSummary struct {
	TotalMovements int                               `json:"total_movements"`
	Annotated      int                               `json:"annotated"`
	Skipped        int                               `json:"skipped"`
	Unmatched      int                               `json:"unmatched"`
	ByType         map[matcher.MovementMatchType]int `json:"by_type"`
	ByConfidence   map[string]int                    `json:"by_confidence"`

	ProcessingDuration time.Duration `json:"processing_duration"`
}

// MatchResult is the outcome of one movement-matching pass.
type MatchResult struct {
	Results     []*MovementResult `json:"results"`
	Summary     *MatchSummary     `json:"summary"`
	ProcessedAt time.Time         `json:"processed_at"`
}

// MatchMovements classifies every statement line against the document pools.
// Lines that already carry an annotation were reviewed earlier and are
// skipped, never overwritten.
func (r *Reconciler) MatchMovements(
	ctx context.Context,
	movements []*models.BankMovement,
	invoices []*models.Invoice,
	receipts []*models.Receipt,
	payments []*models.Payment,
) (*MatchResult, error) {
	start := time.Now()
	r.logger.WithFields(logger.Fields{
		"movements": len(movements),
		"invoices":  len(invoices),
		"receipts":  len(receipts),
		"payments":  len(payments),
	}).Info("movement matching started")

	result := &MatchResult{
		Summary: &MatchSummary{
			ByType:       make(map[matcher.MovementMatchType]int),
			ByConfidence: make(map[string]int),
		},
		ProcessedAt: start,
	}

	for _, mv := range movements {
		if err := ctx.Err(); err != nil {
			return result, errors.InternalError("movement_matching", err)
		}

		result.Summary.TotalMovements++
		if mv.Annotation != "" {
			result.Summary.Skipped++
			result.Results = append(result.Results, &MovementResult{Movement: mv, Skipped: true})
			continue
		}

		match := r.movements.MatchMovement(mv, invoices, receipts, payments)
		mr := &MovementResult{
			Movement:   mv,
			Match:      match,
			Annotation: FormatAnnotation(match),
		}
		result.Results = append(result.Results, mr)

		result.Summary.ByType[match.Type]++
		if match.Type == matcher.MatchNone {
			result.Summary.Unmatched++
		} else {
			result.Summary.Annotated++
			result.Summary.ByConfidence[match.Confidence.String()]++
		}
	}

	result.Summary.ProcessingDuration = time.Since(start)
	r.logger.WithFields(logger.Fields{
		"total":     result.Summary.TotalMovements,
		"annotated": result.Summary.Annotated,
		"skipped":   result.Summary.Skipped,
		"unmatched": result.Summary.Unmatched,
		"duration":  result.Summary.ProcessingDuration,
	}).Info("movement matching completed")
	return result, nil
}

// RunCascade re-matches the pending documents over the batch, letting
// strictly better pairings displace weaker ones.
func (r *Reconciler) RunCascade(batch *cascade.Batch, pending []models.Document) (*cascade.Result, error) {
	return r.engine.Run(batch, pending)
}

// PendingPayments wraps the batch's unmatched payments as the default cascade
// work list.
func PendingPayments(batch *cascade.Batch) []models.Document {
	var pending []models.Document
	for _, p := range batch.Payments {
		if !p.IsMatched() {
			pending = append(pending, models.PaymentDocument(p))
		}
	}
	return pending
}

// FormatAnnotation renders the statement annotation for a match decision.
// Unmatched lines stay blank so a later run can revisit them.
func FormatAnnotation(match *matcher.MovementMatch) string {
	if match == nil || match.Type == matcher.MatchNone {
		return ""
	}
	if match.Description == "" {
		return string(match.Type)
	}
	return match.Description
}

// ApplyUpdates mutates the batch documents according to an update set. This
// is the in-memory persistence collaborator used by the CLI; a spreadsheet
// or database backend would consume the same batch of MatchUpdates.
func ApplyUpdates(batch *cascade.Batch, updates map[string]models.MatchUpdate) {
	invoices := make(map[string]*models.Invoice, len(batch.Invoices))
	for _, inv := range batch.Invoices {
		invoices[inv.ID] = inv
	}
	payments := make(map[string]*models.Payment, len(batch.Payments))
	for _, p := range batch.Payments {
		payments[p.ID] = p
	}
	receipts := make(map[string]*models.Receipt, len(batch.Receipts))
	for _, rc := range batch.Receipts {
		receipts[rc.ID] = rc
	}

	for id, upd := range updates {
		switch upd.Kind {
		case models.KindInvoice:
			if inv, ok := invoices[id]; ok {
				inv.MatchedPaymentID = upd.CounterpartID
				inv.MatchConfidence = upd.Confidence
				inv.Paid = upd.MarkPaid
			}
		case models.KindPayment:
			if p, ok := payments[id]; ok {
				p.MatchedInvoiceID = upd.CounterpartID
			}
		case models.KindReceipt:
			if rc, ok := receipts[id]; ok {
				rc.MatchedPaymentID = upd.CounterpartID
				rc.MatchConfidence = upd.Confidence
			}
		}
	}
}
