package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erpsync/backend/internal/domain/accounting"
	"github.com/erpsync/backend/internal/domain/erp"
	"github.com/erpsync/backend/internal/domain/integration"
	"github.com/erpsync/backend/internal/domain/shared"
)

// OrchestratorConfig tunes the workflow passes
type OrchestratorConfig struct {
	// BatchSize is the page size for platform pulls
	BatchSize int
	// MaxPages bounds one pass; remaining work is picked up next pass
	MaxPages int
	// Lookback bounds the pull window; zero means unbounded
	Lookback time.Duration
	// MaxRetries is the in-pass retry budget for retryable failures
	MaxRetries int
	// RetryBaseDelay seeds the exponential backoff between retries
	RetryBaseDelay time.Duration
	// RetryMaxDelay caps the backoff
	RetryMaxDelay time.Duration
}

// DefaultOrchestratorConfig returns sensible pass defaults
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		BatchSize:      50,
		MaxPages:       20,
		MaxRetries:     3,
		RetryBaseDelay: 2 * time.Second,
		RetryMaxDelay:  time.Minute,
	}
}

// RunSummary reports one workflow pass
type RunSummary struct {
	StoreKey   string    `json:"store_key"`
	Workflow   string    `json:"workflow"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Processed  int       `json:"processed"`
	Succeeded  int       `json:"succeeded"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
}

// Orchestrator drives the reconciliation workflows: order capture, returns
// and the payment recovery pass. Each pass is independently resumable; all
// state is derived from marker tags and ERP existence checks, so a crash at
// any point only costs re-checks on the next pass.
type Orchestrator struct {
	platform integration.PlatformClient
	erp      erp.Client
	guard    *Guard
	resolver *CustomerResolver
	builder  *DocumentBuilder
	accounts *accounting.AccountTable
	journal  integration.AttemptJournal
	config   OrchestratorConfig
	logger   *zap.Logger
}

// NewOrchestrator wires the workflow orchestrator
func NewOrchestrator(
	platform integration.PlatformClient,
	client erp.Client,
	guard *Guard,
	resolver *CustomerResolver,
	builder *DocumentBuilder,
	accounts *accounting.AccountTable,
	journal integration.AttemptJournal,
	config OrchestratorConfig,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		platform: platform,
		erp:      client,
		guard:    guard,
		resolver: resolver,
		builder:  builder,
		accounts: accounts,
		journal:  journal,
		config:   config,
		logger:   logger,
	}
}

// ---------------------------------------------------------------------------
// Order Capture Pass
// ---------------------------------------------------------------------------

// SyncOrders runs one order capture pass for a store: pull candidate orders,
// then drive each through invoice and payment creation. One bad order never
// stops the pass.
func (o *Orchestrator) SyncOrders(ctx context.Context, storeKey string) (*RunSummary, error) {
	return o.orderPass(ctx, storeKey, "orders", nil)
}

// RecoverPayments runs the payment recovery pass: it revisits orders whose
// invoice succeeded but whose payment never did, typically after a crash
// between the two writes.
func (o *Orchestrator) RecoverPayments(ctx context.Context, storeKey string) (*RunSummary, error) {
	invoiceSynced := integration.MarkerTag(integration.StepInvoice, integration.OutcomeSucceeded)
	return o.orderPass(ctx, storeKey, "payment-recovery", func(order *integration.OrderSnapshot) bool {
		return order.HasTag(invoiceSynced)
	})
}

func (o *Orchestrator) orderPass(ctx context.Context, storeKey, workflow string, accept func(*integration.OrderSnapshot) bool) (*RunSummary, error) {
	summary := &RunSummary{StoreKey: storeKey, Workflow: workflow, StartedAt: time.Now()}
	defer func() { summary.FinishedAt = time.Now() }()

	req := integration.OrderPullRequest{
		StoreKey:   storeKey,
		ExcludeTag: integration.MarkerTag(integration.StepPayment, integration.OutcomeSucceeded),
		First:      o.config.BatchSize,
	}
	if o.config.Lookback > 0 {
		req.CreatedAfter = time.Now().Add(-o.config.Lookback)
	}

	for page := 0; o.config.MaxPages == 0 || page < o.config.MaxPages; page++ {
		resp, err := o.platform.PullOrders(ctx, req)
		if err != nil {
			return summary, fmt.Errorf("pull orders for store %s: %w", storeKey, err)
		}

		for i := range resp.Orders {
			order := &resp.Orders[i]
			if accept != nil && !accept(order) {
				continue
			}
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			summary.Processed++
			state, err := o.ProcessOrder(ctx, order)
			switch {
			case err != nil:
				summary.Failed++
				o.logger.Error("order sync failed",
					zap.String("store", storeKey),
					zap.String("order_name", order.Name),
					zap.String("state", string(state)),
					zap.String("error_kind", shared.KindOf(err).String()),
					zap.Error(err),
				)
			case state == integration.OrderStatePaymentCreated:
				summary.Succeeded++
			default:
				summary.Skipped++
			}
		}

		if !resp.HasMore {
			break
		}
		req.After = resp.NextCursor
	}

	o.logger.Info("order pass finished",
		zap.String("store", storeKey),
		zap.String("workflow", workflow),
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// ProcessOrder drives one order through the capture state machine. The
// returned state is where the order ended up; it is derived, never stored.
// Marker tags and the marker cache short-circuit finished orders before
// any ERP round trip; the existence checks inside the ensure steps stay
// authoritative for everything else.
func (o *Orchestrator) ProcessOrder(ctx context.Context, order *integration.OrderSnapshot) (integration.OrderSyncState, error) {
	if !order.FinancialStatus.IsCaptured() {
		return integration.OrderStateUnseen, nil
	}

	invoiceMarker := integration.ReadMarker(order.Tags, integration.StepInvoice)
	paymentMarker := integration.ReadMarker(order.Tags, integration.StepPayment)
	switch {
	case paymentMarker.Succeeded:
		return integration.OrderStatePaymentCreated, nil
	case invoiceMarker.Failed:
		return integration.OrderStateInvoiceFailed, nil
	case paymentMarker.Failed:
		return integration.OrderStatePaymentFailed, nil
	}

	if o.guard.SeenRecently(ctx, integration.StepPayment, order.ExternalID()) {
		return integration.OrderStatePaymentCreated, nil
	}

	location, err := o.accounts.Location(order.LocationKey)
	if err != nil {
		err = shared.Classify(shared.KindMapping, err)
		o.settleFailure(ctx, order, integration.StepInvoice, err)
		return integration.OrderStateUnseen, err
	}
	customer, err := o.resolver.Resolve(ctx, order, location)
	if err != nil {
		o.settleFailure(ctx, order, integration.StepInvoice, err)
		return integration.OrderStateUnseen, err
	}

	invoice, err := o.ensureInvoice(ctx, order, customer.Code)
	if err != nil {
		o.settleFailure(ctx, order, integration.StepInvoice, err)
		return integration.OrderStateInvoicePending, err
	}

	if err := o.ensurePayment(ctx, order, invoice); err != nil {
		o.settleFailure(ctx, order, integration.StepPayment, err)
		return integration.OrderStatePaymentPending, err
	}

	return integration.OrderStatePaymentCreated, nil
}

// ensureInvoice returns the order's invoice, creating it at most once. The
// document is always fetched or created through the authoritative path
// because the payment step needs its ERP entry numbers.
func (o *Orchestrator) ensureInvoice(ctx context.Context, order *integration.OrderSnapshot, customerCode string) (*erp.FinancialDocument, error) {
	ref := order.ExternalID()
	started := time.Now()

	var existing *erp.FinancialDocument
	err := o.withRetry(ctx, "invoice existence check", func(ctx context.Context) error {
		var err error
		existing, err = o.guard.ExistingDocument(ctx, erp.DocumentKindInvoice, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !existing.TotalsMatch(order.CapturedAmount()) {
			o.logger.Warn("existing invoice total differs from captured amount",
				zap.String("order_name", order.Name),
				zap.Int("doc_entry", existing.Entry),
				zap.String("invoice_total", existing.Total().String()),
				zap.String("captured", order.CapturedAmount().String()),
			)
		}
		o.settleSuccess(ctx, order, integration.StepInvoice, existing.Entry, started, true)
		return existing, nil
	}

	doc, err := o.builder.BuildInvoice(order, customerCode)
	if err != nil {
		return nil, err
	}

	var created *erp.FinancialDocument
	err = o.withRetry(ctx, "create invoice", func(ctx context.Context) error {
		var err error
		created, err = o.erp.CreateDocument(ctx, doc)
		return err
	})
	if err != nil {
		if shared.KindOf(err) == shared.KindConflict {
			// Lost a race with another pass; the existence check is the
			// tiebreaker.
			return o.guard.ExistingDocument(ctx, erp.DocumentKindInvoice, ref)
		}
		return nil, err
	}

	o.settleSuccess(ctx, order, integration.StepInvoice, created.Entry, started, false)
	return created, nil
}

func (o *Orchestrator) ensurePayment(ctx context.Context, order *integration.OrderSnapshot, invoice *erp.FinancialDocument) error {
	ref := order.ExternalID()
	started := time.Now()

	var existing *erp.PaymentRecord
	err := o.withRetry(ctx, "payment existence check", func(ctx context.Context) error {
		var err error
		existing, err = o.guard.ExistingPayment(ctx, erp.PaymentKindIncoming, ref)
		return err
	})
	if err != nil {
		return err
	}
	if existing != nil {
		o.settleSuccess(ctx, order, integration.StepPayment, existing.Entry, started, true)
		return nil
	}

	payment, err := o.builder.BuildIncomingPayment(order, invoice)
	if err != nil {
		return err
	}

	var created *erp.PaymentRecord
	err = o.withRetry(ctx, "create payment", func(ctx context.Context) error {
		var err error
		created, err = o.erp.CreatePayment(ctx, payment)
		return err
	})
	if err != nil {
		if shared.KindOf(err) == shared.KindConflict {
			existing, checkErr := o.guard.ExistingPayment(ctx, erp.PaymentKindIncoming, ref)
			if checkErr == nil && existing != nil {
				o.settleSuccess(ctx, order, integration.StepPayment, existing.Entry, started, true)
				return nil
			}
		}
		return err
	}

	o.settleSuccess(ctx, order, integration.StepPayment, created.Entry, started, false)
	return nil
}

// ---------------------------------------------------------------------------
// Returns Pass
// ---------------------------------------------------------------------------

// SyncReturns runs one returns pass for a store: each return gets a credit
// note, then its reconciling document per disposition.
func (o *Orchestrator) SyncReturns(ctx context.Context, storeKey string) (*RunSummary, error) {
	summary := &RunSummary{StoreKey: storeKey, Workflow: "returns", StartedAt: time.Now()}
	defer func() { summary.FinishedAt = time.Now() }()

	req := integration.ReturnPullRequest{
		StoreKey: storeKey,
		First:    o.config.BatchSize,
	}
	if o.config.Lookback > 0 {
		req.CreatedAfter = time.Now().Add(-o.config.Lookback)
	}

	for page := 0; o.config.MaxPages == 0 || page < o.config.MaxPages; page++ {
		resp, err := o.platform.PullReturns(ctx, req)
		if err != nil {
			return summary, fmt.Errorf("pull returns for store %s: %w", storeKey, err)
		}

		for i := range resp.Returns {
			ret := &resp.Returns[i]
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			summary.Processed++
			state, err := o.ProcessReturn(ctx, ret)
			switch {
			case err != nil:
				summary.Failed++
				o.logger.Error("return sync failed",
					zap.String("store", storeKey),
					zap.String("return_id", ret.ExternalID()),
					zap.String("order_name", ret.OrderName),
					zap.String("state", string(state)),
					zap.String("error_kind", shared.KindOf(err).String()),
					zap.Error(err),
				)
			case state == integration.ReturnStateReconciled:
				summary.Succeeded++
			default:
				summary.Skipped++
			}
		}

		if !resp.HasMore {
			break
		}
		req.After = resp.NextCursor
	}

	o.logger.Info("returns pass finished",
		zap.String("store", storeKey),
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// ProcessReturn drives one return through the return state machine. Return
// markers live on the originating order, scoped by return ID, since one
// order may have several returns.
func (o *Orchestrator) ProcessReturn(ctx context.Context, ret *integration.ReturnSnapshot) (integration.ReturnSyncState, error) {
	if !ret.Disposition.IsValid() {
		return integration.ReturnStateUnseen, shared.Classify(shared.KindValidation,
			fmt.Errorf("return %s has unknown disposition %q", ret.ExternalID(), ret.Disposition))
	}

	if o.guard.SeenRecently(ctx, integration.StepReconcile, ret.ExternalID()) {
		return integration.ReturnStateReconciled, nil
	}

	order, err := o.platform.GetOrder(ctx, ret.StoreKey, ret.OrderID)
	if err != nil {
		return integration.ReturnStateUnseen, fmt.Errorf("fetch order for return %s: %w", ret.ExternalID(), err)
	}

	retID := ret.ExternalID()
	creditMarker := integration.ReadReturnMarker(order.Tags, integration.StepCreditNote, retID)
	reconcileMarker := integration.ReadReturnMarker(order.Tags, integration.StepReconcile, retID)
	switch {
	case reconcileMarker.Succeeded:
		return integration.ReturnStateReconciled, nil
	case creditMarker.Failed:
		return integration.ReturnStateCreditNoteFailed, nil
	case reconcileMarker.Failed:
		return integration.ReturnStateReconcileFailed, nil
	}

	invoice, err := o.guard.ExistingDocument(ctx, erp.DocumentKindInvoice, order.ExternalID())
	if err != nil {
		return integration.ReturnStateUnseen, err
	}
	if invoice == nil {
		// The order has not been invoiced yet; the returns pass picks the
		// return up again after the capture pass catches up.
		o.logger.Info("return waits for order invoice",
			zap.String("return_id", retID),
			zap.String("order_name", ret.OrderName),
		)
		return integration.ReturnStateUnseen, nil
	}

	creditNote, err := o.ensureCreditNote(ctx, ret, order, invoice)
	if err != nil {
		o.settleReturnFailure(ctx, ret, order, integration.StepCreditNote, err)
		return integration.ReturnStateCreditNotePending, err
	}

	if err := o.ensureReconciled(ctx, ret, order, creditNote); err != nil {
		o.settleReturnFailure(ctx, ret, order, integration.StepReconcile, err)
		return integration.ReturnStateReconcilePending, err
	}

	return integration.ReturnStateReconciled, nil
}

func (o *Orchestrator) ensureCreditNote(ctx context.Context, ret *integration.ReturnSnapshot, order *integration.OrderSnapshot, invoice *erp.FinancialDocument) (*erp.FinancialDocument, error) {
	ref := ret.ExternalID()
	started := time.Now()

	var existing *erp.FinancialDocument
	err := o.withRetry(ctx, "credit note existence check", func(ctx context.Context) error {
		var err error
		existing, err = o.guard.ExistingDocument(ctx, erp.DocumentKindCreditNote, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		o.settleReturnSuccess(ctx, ret, order, integration.StepCreditNote, existing.Entry, started, true)
		return existing, nil
	}

	doc, err := o.builder.BuildCreditNote(ret, invoice)
	if err != nil {
		return nil, err
	}

	var created *erp.FinancialDocument
	err = o.withRetry(ctx, "create credit note", func(ctx context.Context) error {
		var err error
		created, err = o.erp.CreateDocument(ctx, doc)
		return err
	})
	if err != nil {
		if shared.KindOf(err) == shared.KindConflict {
			return o.guard.ExistingDocument(ctx, erp.DocumentKindCreditNote, ref)
		}
		return nil, err
	}

	o.settleReturnSuccess(ctx, ret, order, integration.StepCreditNote, created.Entry, started, false)
	return created, nil
}

// ensureReconciled creates the reconciling document for the return: an
// outgoing refund payment, or a gift-card invoice closed against the credit
// note by an internal reconciliation.
func (o *Orchestrator) ensureReconciled(ctx context.Context, ret *integration.ReturnSnapshot, order *integration.OrderSnapshot, creditNote *erp.FinancialDocument) error {
	if ret.Disposition == integration.DispositionRefund {
		return o.ensureRefundPayment(ctx, ret, order, creditNote)
	}
	return o.ensureStoreCredit(ctx, ret, order, creditNote)
}

func (o *Orchestrator) ensureRefundPayment(ctx context.Context, ret *integration.ReturnSnapshot, order *integration.OrderSnapshot, creditNote *erp.FinancialDocument) error {
	ref := ret.ExternalID()
	started := time.Now()

	var existing *erp.PaymentRecord
	err := o.withRetry(ctx, "refund existence check", func(ctx context.Context) error {
		var err error
		existing, err = o.guard.ExistingPayment(ctx, erp.PaymentKindOutgoing, ref)
		return err
	})
	if err != nil {
		return err
	}
	if existing != nil {
		o.settleReturnSuccess(ctx, ret, order, integration.StepReconcile, existing.Entry, started, true)
		return nil
	}

	payment, err := o.builder.BuildRefundPayment(ret, order, creditNote)
	if err != nil {
		return err
	}

	var created *erp.PaymentRecord
	err = o.withRetry(ctx, "create refund payment", func(ctx context.Context) error {
		var err error
		created, err = o.erp.CreatePayment(ctx, payment)
		return err
	})
	if err != nil {
		return err
	}

	o.settleReturnSuccess(ctx, ret, order, integration.StepReconcile, created.Entry, started, false)
	return nil
}

func (o *Orchestrator) ensureStoreCredit(ctx context.Context, ret *integration.ReturnSnapshot, order *integration.OrderSnapshot, creditNote *erp.FinancialDocument) error {
	ref := ret.ExternalID()
	started := time.Now()

	var invoice *erp.FinancialDocument
	err := o.withRetry(ctx, "gift-card invoice existence check", func(ctx context.Context) error {
		var err error
		invoice, err = o.guard.ExistingDocument(ctx, erp.DocumentKindInvoice, ref)
		return err
	})
	if err != nil {
		return err
	}

	reused := invoice != nil
	if invoice == nil {
		doc, err := o.builder.BuildGiftCardInvoice(ret, creditNote)
		if err != nil {
			return err
		}
		err = o.withRetry(ctx, "create gift-card invoice", func(ctx context.Context) error {
			var err error
			invoice, err = o.erp.CreateDocument(ctx, doc)
			return err
		})
		if err != nil {
			return err
		}
	}

	link, err := o.builder.ReconciliationLinkFor(creditNote, invoice)
	if err != nil {
		return err
	}
	err = o.withRetry(ctx, "create reconciliation", func(ctx context.Context) error {
		return o.erp.CreateReconciliation(ctx, link)
	})
	if err != nil {
		// A conflict means a previous pass already linked the documents
		if shared.KindOf(err) != shared.KindConflict {
			if !reused {
				// The invoice exists but the link does not; the next pass
				// resumes here.
				return shared.Classify(shared.KindPartialWrite,
					fmt.Errorf("gift-card invoice %d created but reconciliation failed: %w", invoice.Entry, err))
			}
			return err
		}
	}

	o.settleReturnSuccess(ctx, ret, order, integration.StepReconcile, invoice.Entry, started, reused)
	return nil
}

// ---------------------------------------------------------------------------
// Manual Reprocessing
// ---------------------------------------------------------------------------

// ReprocessOrder clears every marker for an order and runs it through the
// capture state machine again. The ERP existence checks still guarantee at
// most one document per step; reprocessing only removes the short circuits.
func (o *Orchestrator) ReprocessOrder(ctx context.Context, storeKey, orderID string) (integration.OrderSyncState, error) {
	order, err := o.platform.GetOrder(ctx, storeKey, orderID)
	if err != nil {
		return integration.OrderStateUnseen, fmt.Errorf("fetch order %s: %w", orderID, err)
	}

	if err := o.guard.Forget(ctx, order.ExternalID()); err != nil {
		o.logger.Warn("failed to clear marker cache for reprocess",
			zap.String("order_name", order.Name),
			zap.Error(err),
		)
	}

	stale := markerTagsFor(order.Tags)
	if len(stale) > 0 {
		if err := o.platform.RemoveOrderTags(ctx, storeKey, order.ID, stale); err != nil {
			return integration.OrderStateUnseen, fmt.Errorf("remove marker tags from order %s: %w", order.Name, err)
		}
		order.Tags = withoutTags(order.Tags, stale)
	}

	o.logger.Info("reprocessing order",
		zap.String("store", storeKey),
		zap.String("order_name", order.Name),
		zap.Strings("cleared_tags", stale),
	)
	return o.ProcessOrder(ctx, order)
}

// markerTagsFor picks the order-level step markers out of a tag set
func markerTagsFor(tags []string) []string {
	known := map[string]struct{}{
		integration.MarkerTag(integration.StepInvoice, integration.OutcomeSucceeded): {},
		integration.MarkerTag(integration.StepInvoice, integration.OutcomeFailed):    {},
		integration.MarkerTag(integration.StepPayment, integration.OutcomeSucceeded): {},
		integration.MarkerTag(integration.StepPayment, integration.OutcomeFailed):    {},
	}
	var found []string
	for _, t := range tags {
		if _, ok := known[t]; ok {
			found = append(found, t)
		}
	}
	return found
}

func withoutTags(tags, remove []string) []string {
	drop := make(map[string]struct{}, len(remove))
	for _, t := range remove {
		drop[t] = struct{}{}
	}
	kept := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := drop[t]; !ok {
			kept = append(kept, t)
		}
	}
	return kept
}

// ---------------------------------------------------------------------------
// Settlement
// ---------------------------------------------------------------------------

// settleSuccess records a completed order step everywhere it is remembered:
// marker tag on the order, marker cache, journal.
func (o *Orchestrator) settleSuccess(ctx context.Context, order *integration.OrderSnapshot, step integration.WorkflowStep, docEntry int, started time.Time, skipped bool) {
	tag := integration.MarkerTag(step, integration.OutcomeSucceeded)
	if !order.HasTag(tag) {
		if err := o.platform.AddOrderTags(ctx, order.StoreKey, order.ID, []string{tag}); err != nil {
			// An existing document with a missing tag re-enters the pass
			// and is caught by the existence check, so this is non-fatal.
			o.logger.Warn("failed to tag order",
				zap.String("order_name", order.Name),
				zap.String("tag", tag),
				zap.Error(err),
			)
		} else {
			order.Tags = append(order.Tags, tag)
		}
	}
	o.guard.RememberSuccess(ctx, step, order.ExternalID())

	outcome := integration.AttemptSucceeded
	if skipped {
		outcome = integration.AttemptSkipped
	}
	o.record(ctx, &integration.SyncAttempt{
		StoreKey:      order.StoreKey,
		ExternalRef:   order.ExternalID(),
		OrderName:     order.Name,
		Step:          step,
		Outcome:       outcome,
		DocumentEntry: docEntry,
		StartedAt:     started,
	})
}

// settleFailure tags the order as failed only for non-retryable errors;
// retryable ones stay unmarked so the next pass picks the order up again.
func (o *Orchestrator) settleFailure(ctx context.Context, order *integration.OrderSnapshot, step integration.WorkflowStep, cause error) {
	kind := shared.KindOf(cause)
	outcome := integration.AttemptRetrying
	if !kind.Retryable() {
		outcome = integration.AttemptFailed
		tag := integration.MarkerTag(step, integration.OutcomeFailed)
		if err := o.platform.AddOrderTags(ctx, order.StoreKey, order.ID, []string{tag}); err != nil {
			o.logger.Warn("failed to tag order as failed",
				zap.String("order_name", order.Name),
				zap.String("tag", tag),
				zap.Error(err),
			)
		}
	}
	o.record(ctx, &integration.SyncAttempt{
		StoreKey:     order.StoreKey,
		ExternalRef:  order.ExternalID(),
		OrderName:    order.Name,
		Step:         step,
		Outcome:      outcome,
		ErrorKind:    kind.String(),
		ErrorMessage: cause.Error(),
		StartedAt:    time.Now(),
	})
}

func (o *Orchestrator) settleReturnSuccess(ctx context.Context, ret *integration.ReturnSnapshot, order *integration.OrderSnapshot, step integration.WorkflowStep, docEntry int, started time.Time, skipped bool) {
	tag := integration.ReturnMarkerTag(step, integration.OutcomeSucceeded, ret.ExternalID())
	if !order.HasTag(tag) {
		if err := o.platform.AddOrderTags(ctx, ret.StoreKey, order.ID, []string{tag}); err != nil {
			o.logger.Warn("failed to tag order for return",
				zap.String("order_name", order.Name),
				zap.String("tag", tag),
				zap.Error(err),
			)
		} else {
			order.Tags = append(order.Tags, tag)
		}
	}
	o.guard.RememberSuccess(ctx, step, ret.ExternalID())

	outcome := integration.AttemptSucceeded
	if skipped {
		outcome = integration.AttemptSkipped
	}
	o.record(ctx, &integration.SyncAttempt{
		StoreKey:      ret.StoreKey,
		ExternalRef:   ret.ExternalID(),
		OrderName:     ret.OrderName,
		Step:          step,
		Outcome:       outcome,
		DocumentEntry: docEntry,
		StartedAt:     started,
	})
}

func (o *Orchestrator) settleReturnFailure(ctx context.Context, ret *integration.ReturnSnapshot, order *integration.OrderSnapshot, step integration.WorkflowStep, cause error) {
	kind := shared.KindOf(cause)
	outcome := integration.AttemptRetrying
	if !kind.Retryable() {
		outcome = integration.AttemptFailed
		tag := integration.ReturnMarkerTag(step, integration.OutcomeFailed, ret.ExternalID())
		if err := o.platform.AddOrderTags(ctx, ret.StoreKey, order.ID, []string{tag}); err != nil {
			o.logger.Warn("failed to tag order as failed for return",
				zap.String("order_name", order.Name),
				zap.String("tag", tag),
				zap.Error(err),
			)
		}
	}
	o.record(ctx, &integration.SyncAttempt{
		StoreKey:     ret.StoreKey,
		ExternalRef:  ret.ExternalID(),
		OrderName:    ret.OrderName,
		Step:         step,
		Outcome:      outcome,
		ErrorKind:    kind.String(),
		ErrorMessage: cause.Error(),
		StartedAt:    time.Now(),
	})
}

func (o *Orchestrator) record(ctx context.Context, attempt *integration.SyncAttempt) {
	attempt.ID = uuid.New()
	if attempt.FinishedAt.IsZero() {
		attempt.FinishedAt = time.Now()
	}
	if err := o.journal.Record(ctx, attempt); err != nil {
		o.logger.Warn("failed to record sync attempt",
			zap.String("external_ref", attempt.ExternalRef),
			zap.String("step", attempt.Step.String()),
			zap.Error(err),
		)
	}
}

// ---------------------------------------------------------------------------
// Retry
// ---------------------------------------------------------------------------

// withRetry retries retryable failures with capped exponential backoff.
// Non-retryable classifications return immediately.
func (o *Orchestrator) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= o.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := o.backoffDelay(attempt)
			o.logger.Warn("retrying operation",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		lastErr = fn(ctx)
		if lastErr == nil || !shared.IsRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// backoffDelay computes baseDelay * 2^(attempt-1), capped
func (o *Orchestrator) backoffDelay(attempt int) time.Duration {
	base := o.config.RetryBaseDelay
	if base <= 0 {
		base = time.Second
	}
	delay := base * time.Duration(1<<uint(attempt-1))
	if limit := o.config.RetryMaxDelay; limit > 0 && delay > limit {
		delay = limit
	}
	return delay
}
