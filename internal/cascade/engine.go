package cascade

import (
	"time"

	"github.com/google/uuid"

	"conciliador/internal/lexical"
	"conciliador/internal/matcher"
	"conciliador/internal/models"
	"conciliador/pkg/logger"
)

// Batch is the document universe a cascade run operates over. Slices are not
// mutated; all outcomes are reported through Result.Updates.
type Batch struct {
	Invoices []*models.Invoice
	Payments []*models.Payment
	Receipts []*models.Receipt
}

// Result collects everything a run produced. Updates is keyed by document ID
// and includes explicit unmatch entries for documents that lost their
// counterpart without finding a replacement.
type Result struct {
	RunID   string                        `json:"run_id"`
	Updates map[string]models.MatchUpdate `json:"updates"`

	Processed     int `json:"processed"`
	Displacements int `json:"displacements"`
	// MaxDepthReached is the deepest eviction chain actually processed.
	MaxDepthReached int `json:"max_depth_reached"`
	CyclesDetected  int `json:"cycles_detected"`
	DepthExceeded   int `json:"depth_exceeded"`

	// Halted is true when the run stopped on its wall-clock budget. Updates
	// committed before the halt are preserved.
	Halted  bool          `json:"halted"`
	Elapsed time.Duration `json:"elapsed"`
}

// Engine drives displacement runs. It owns no document state: every Run gets
// a fresh claim table and queue.
type Engine struct {
	config  *Config
	matcher *matcher.PaymentMatcher
	logger  logger.Logger
}

// NewEngine creates a displacement engine. A nil config falls back to
// defaults.
func NewEngine(config *Config, pm *matcher.PaymentMatcher) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	return &Engine{
		config:  config,
		matcher: pm,
		logger:  logger.GetGlobalLogger().WithComponent("cascade"),
	}
}

// claim records who holds a target during a run and at what quality, so a
// later candidate can contest it without re-deriving the incumbent's score.
type claim struct {
	holderID string
	quality  matcher.MatchQuality
}

// workItem is one queued re-match request. lineage carries the IDs along the
// eviction chain that led here; a document reappearing in its own lineage is
// a cycle.
type workItem struct {
	doc             models.Document
	prevCounterpart string
	depth           int
	lineage         map[string]bool
}

// runState is the per-run mutable state.
type runState struct {
	batch *Batch

	invoices map[string]*models.Invoice
	payments map[string]*models.Payment
	receipts map[string]*models.Receipt

	claims map[models.DocumentKind]map[string]claim
	queue  []workItem
	queued map[string]bool

	result *Result
}

// Run executes the cascade over the pending documents. It never returns a
// partial error: protective stops (timeout, depth, cycles) are reported on
// the Result and the updates committed so far stand.
func (e *Engine) Run(batch *Batch, pending []models.Document) (*Result, error) {
	if err := e.config.Validate(); err != nil {
		return nil, err
	}
	if batch == nil {
		batch = &Batch{}
	}

	start := time.Now()
	state := newRunState(batch)
	state.result.RunID = uuid.NewString()

	log := e.logger.WithField("run_id", state.result.RunID)
	log.WithFields(logger.Fields{
		"pending":  len(pending),
		"invoices": len(batch.Invoices),
		"payments": len(batch.Payments),
		"receipts": len(batch.Receipts),
	}).Info("cascade run started")

	for _, doc := range pending {
		state.enqueue(workItem{doc: doc, lineage: map[string]bool{}})
	}

	for len(state.queue) > 0 {
		if time.Since(start) > e.config.Timeout {
			state.result.Halted = true
			log.WithFields(logger.Fields{
				"timeout":   e.config.Timeout,
				"remaining": len(state.queue),
			}).Warn("cascade halted on timeout, committed updates preserved")
			break
		}

		item := state.queue[0]
		state.queue = state.queue[1:]
		delete(state.queued, item.doc.ID())

		if item.lineage[item.doc.ID()] {
			state.result.CyclesDetected++
			log.WithFields(logger.Fields{
				"document": item.doc.ID(),
				"depth":    item.depth,
			}).Warn("eviction cycle detected, halting this chain")
			continue
		}
		if item.depth > e.config.MaxDepth {
			state.result.DepthExceeded++
			log.WithFields(logger.Fields{
				"document":  item.doc.ID(),
				"depth":     item.depth,
				"max_depth": e.config.MaxDepth,
			}).Warn("eviction chain exceeded max depth, halting this chain")
			continue
		}

		state.result.Processed++
		if item.depth > state.result.MaxDepthReached {
			state.result.MaxDepthReached = item.depth
		}
		e.process(state, item, log)
	}

	state.result.Elapsed = time.Since(start)
	log.WithFields(logger.Fields{
		"processed":     state.result.Processed,
		"updates":       len(state.result.Updates),
		"displacements": state.result.Displacements,
		"cycles":        state.result.CyclesDetected,
		"elapsed":       state.result.Elapsed,
	}).Info("cascade run finished")
	return state.result, nil
}

func newRunState(batch *Batch) *runState {
	state := &runState{
		batch:    batch,
		invoices: make(map[string]*models.Invoice, len(batch.Invoices)),
		payments: make(map[string]*models.Payment, len(batch.Payments)),
		receipts: make(map[string]*models.Receipt, len(batch.Receipts)),
		claims: map[models.DocumentKind]map[string]claim{
			models.KindInvoice: {},
			models.KindPayment: {},
			models.KindReceipt: {},
		},
		queued: map[string]bool{},
		result: &Result{Updates: make(map[string]models.MatchUpdate)},
	}
	for _, inv := range batch.Invoices {
		state.invoices[inv.ID] = inv
	}
	for _, p := range batch.Payments {
		state.payments[p.ID] = p
	}
	for _, r := range batch.Receipts {
		state.receipts[r.ID] = r
	}
	return state
}

func (s *runState) enqueue(item workItem) {
	id := item.doc.ID()
	if id == "" || s.queued[id] {
		return
	}
	s.queued[id] = true
	s.queue = append(s.queue, item)
}

// process re-matches one document. Candidates are tried best first; the first
// target whose incumbent (if any) we strictly beat wins. When nothing is
// available and the document arrived here because it lost its counterpart, an
// explicit unmatch update is recorded.
func (e *Engine) process(state *runState, item workItem, log logger.Logger) {
	// Another chain may have paired this document while it sat in the queue.
	if _, ok := state.claims[item.doc.Kind][item.doc.ID()]; ok {
		return
	}

	candidates := e.candidatesFor(state, item.doc)
	prev := e.committedCounterpart(state, item.doc)

	for _, cand := range candidates {
		paymentID := cand.Payment.ID
		targetID := cand.Target.ID()

		// Orient the contest from the queued document's point of view: the
		// "other side" it wants is the target for payments, the payment for
		// invoices and receipts.
		wantedKind, wantedID := cand.Target.Kind, targetID
		if item.doc.Kind != models.KindPayment {
			wantedKind, wantedID = models.KindPayment, paymentID
		}

		incumbent, holderID, held := e.incumbentFor(state, wantedKind, wantedID)
		if held && holderID == item.doc.ID() {
			// Already holds its best option; refresh the claim and stop.
			e.commit(state, cand, log)
			return
		}
		if held && !matcher.IsBetterMatch(cand.Quality, incumbent) {
			continue
		}

		if held {
			state.result.Displacements++
			e.requeueDisplaced(state, item, holderID, wantedID, log)
		}
		// The queued document may itself abandon a previous counterpart.
		if prev != "" && prev != wantedID {
			e.requeueDisplaced(state, item, prev, item.doc.ID(), log)
		}
		e.commit(state, cand, log)
		return
	}

	if item.prevCounterpart != "" {
		e.recordUnmatch(state, item.doc)
		log.WithFields(logger.Fields{
			"document": item.doc.ID(),
			"lost_to":  item.prevCounterpart,
			"depth":    item.depth,
		}).Info("no replacement found, document unmatched")
	}
}

// candidatesFor produces the ranked candidate list for a queued document.
// Payments rank invoices and receipts together; invoices and receipts rank
// the payments that can cover them.
func (e *Engine) candidatesFor(state *runState, doc models.Document) []*matcher.MatchCandidate {
	var candidates []*matcher.MatchCandidate
	switch doc.Kind {
	case models.KindPayment:
		candidates = append(candidates, e.matcher.FindInvoiceMatches(doc.Payment, state.batch.Invoices)...)
		candidates = append(candidates, e.matcher.FindReceiptMatches(doc.Payment, state.batch.Receipts)...)
	case models.KindInvoice:
		for _, p := range state.batch.Payments {
			if cand, ok := e.matcher.ScoreInvoice(p, doc.Invoice); ok {
				candidates = append(candidates, cand)
			}
		}
	case models.KindReceipt:
		for _, p := range state.batch.Payments {
			if cand, ok := e.matcher.ScoreReceipt(p, doc.Receipt); ok {
				candidates = append(candidates, cand)
			}
		}
	}
	matcher.SortCandidates(candidates)
	return candidates
}

// incumbentFor resolves who currently holds a document and at what quality.
// Claims made during this run take precedence; otherwise the assignment the
// document arrived with is scored from its stored confidence.
func (e *Engine) incumbentFor(state *runState, kind models.DocumentKind, id string) (matcher.MatchQuality, string, bool) {
	if cl, ok := state.claims[kind][id]; ok {
		return cl.quality, cl.holderID, true
	}
	// A committed unmatch clears the pre-run assignment.
	if upd, ok := state.result.Updates[id]; ok && upd.IsUnmatch() {
		return matcher.MatchQuality{}, "", false
	}

	doc, ok := state.lookup(kind, id)
	if !ok {
		return matcher.MatchQuality{}, "", false
	}
	counterpart := doc.CounterpartID()
	if counterpart == "" {
		return matcher.MatchQuality{}, "", false
	}
	return e.storedQuality(state, doc), counterpart, true
}

// storedQuality reconstructs a comparable quality for a pre-run assignment.
// The stored record keeps only the confidence tier; proximity is re-derived
// from the counterpart's date when it is in the batch, and the identity flag
// is conservatively false so stored ties lose to fresh identity-backed
// candidates of the same tier.
func (e *Engine) storedQuality(state *runState, doc models.Document) matcher.MatchQuality {
	quality := matcher.MatchQuality{DateProximityDays: unknownProximityDays}

	switch doc.Kind {
	case models.KindInvoice:
		quality.Confidence = doc.Invoice.MatchConfidence
		if p, ok := state.payments[doc.Invoice.MatchedPaymentID]; ok {
			quality.DateProximityDays = lexical.DayDistance(doc.Invoice.IssueDate, p.PaymentDate)
		}
	case models.KindReceipt:
		quality.Confidence = doc.Receipt.MatchConfidence
		if p, ok := state.payments[doc.Receipt.MatchedPaymentID]; ok {
			quality.DateProximityDays = lexical.DayDistance(doc.Receipt.PaymentDate, p.PaymentDate)
		}
	case models.KindPayment:
		// The payment side stores no confidence; read it off the invoice it
		// points at.
		if inv, ok := state.invoices[doc.Payment.MatchedInvoiceID]; ok {
			quality.Confidence = inv.MatchConfidence
			quality.DateProximityDays = lexical.DayDistance(inv.IssueDate, doc.Payment.PaymentDate)
		}
	}
	return quality
}

// unknownProximityDays makes assignments with an unresolvable counterpart
// date compare as distant, so any scoreable candidate of the same tier can
// displace them.
const unknownProximityDays = 1 << 20

// commit records the pairing symmetrically: claims on both sides plus an
// update per side.
func (e *Engine) commit(state *runState, cand *matcher.MatchCandidate, log logger.Logger) {
	paymentID := cand.Payment.ID
	target := cand.Target
	targetID := target.ID()

	state.claims[target.Kind][targetID] = claim{holderID: paymentID, quality: cand.Quality}
	state.claims[models.KindPayment][paymentID] = claim{holderID: targetID, quality: cand.Quality}

	state.result.Updates[targetID] = models.MatchUpdate{
		DocumentID:      targetID,
		Kind:            target.Kind,
		CounterpartID:   paymentID,
		Confidence:      cand.Quality.Confidence,
		IdentityMatched: cand.Quality.IdentityMatched,
		MarkPaid:        target.Kind == models.KindInvoice,
	}
	state.result.Updates[paymentID] = models.MatchUpdate{
		DocumentID:      paymentID,
		Kind:            models.KindPayment,
		CounterpartID:   targetID,
		Confidence:      cand.Quality.Confidence,
		IdentityMatched: cand.Quality.IdentityMatched,
	}

	log.WithFields(logger.Fields{
		"payment":    paymentID,
		"target":     targetID,
		"kind":       target.Kind,
		"confidence": cand.Quality.Confidence,
	}).Debug("pairing committed")
}

// requeueDisplaced unmatches a document that just lost its counterpart and
// puts it back on the queue one level deeper, carrying the eviction lineage
// forward. Unmatching immediately keeps the claim table and the update batch
// consistent even when the chain later halts before the document is reached.
func (e *Engine) requeueDisplaced(state *runState, from workItem, displacedID, lostTargetID string, log logger.Logger) {
	doc, ok := e.lookupAny(state, displacedID)
	if !ok {
		// Counterpart outside the batch universe; it cannot be re-matched
		// here, the caller's pairing still supersedes it on persistence.
		log.WithField("document", displacedID).Debug("displaced counterpart not in batch, skipping re-match")
		return
	}
	e.recordUnmatch(state, doc)

	lineage := make(map[string]bool, len(from.lineage)+1)
	for id := range from.lineage {
		lineage[id] = true
	}
	lineage[from.doc.ID()] = true

	state.enqueue(workItem{
		doc:             doc,
		prevCounterpart: lostTargetID,
		depth:           from.depth + 1,
		lineage:         lineage,
	})
}

// recordUnmatch clears the document's assignment and releases any claim it
// holds.
func (e *Engine) recordUnmatch(state *runState, doc models.Document) {
	id := doc.ID()
	delete(state.claims[doc.Kind], id)
	state.result.Updates[id] = models.MatchUpdate{
		DocumentID: id,
		Kind:       doc.Kind,
		Confidence: models.ConfidenceNone,
	}
}

// committedCounterpart returns the counterpart the document holds right now,
// preferring claims made during this run over the pre-run assignment.
func (e *Engine) committedCounterpart(state *runState, doc models.Document) string {
	if cl, ok := state.claims[doc.Kind][doc.ID()]; ok {
		return cl.holderID
	}
	if upd, ok := state.result.Updates[doc.ID()]; ok {
		return upd.CounterpartID
	}
	return doc.CounterpartID()
}

func (s *runState) lookup(kind models.DocumentKind, id string) (models.Document, bool) {
	switch kind {
	case models.KindInvoice:
		if inv, ok := s.invoices[id]; ok {
			return models.InvoiceDocument(inv), true
		}
	case models.KindPayment:
		if p, ok := s.payments[id]; ok {
			return models.PaymentDocument(p), true
		}
	case models.KindReceipt:
		if r, ok := s.receipts[id]; ok {
			return models.ReceiptDocument(r), true
		}
	}
	return models.Document{}, false
}

// lookupAny resolves an ID against all three document maps. IDs are assumed
// unique across kinds within a batch.
func (e *Engine) lookupAny(state *runState, id string) (models.Document, bool) {
	if inv, ok := state.invoices[id]; ok {
		return models.InvoiceDocument(inv), true
	}
	if p, ok := state.payments[id]; ok {
		return models.PaymentDocument(p), true
	}
	if r, ok := state.receipts[id]; ok {
		return models.ReceiptDocument(r), true
	}
	return models.Document{}, false
}
