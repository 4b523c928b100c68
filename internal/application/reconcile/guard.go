package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/erpsync/backend/internal/domain/erp"
	"github.com/erpsync/backend/internal/domain/integration"
	"github.com/erpsync/backend/internal/domain/shared"
)

// Guard enforces the at-most-once guarantee for ERP writes. It layers two
// checks: a marker cache for the cheap fast path, and the authoritative
// existence query against the ERP's external-reference field. The cache may
// lie (expired, flushed, different process); the existence query may not.
type Guard struct {
	erp     erp.Client
	markers shared.MarkerStore
	config  shared.MarkerConfig
	logger  *zap.Logger
}

// NewGuard creates a guard over the given marker store
func NewGuard(client erp.Client, markers shared.MarkerStore, config shared.MarkerConfig, logger *zap.Logger) *Guard {
	return &Guard{
		erp:     client,
		markers: markers,
		config:  config,
		logger:  logger,
	}
}

func markerKey(step integration.WorkflowStep, externalRef string) string {
	return "sync:" + string(step) + ":" + externalRef
}

// SeenRecently reports whether the marker cache remembers a successful run
// of the step. Cache errors degrade to false so a broken cache only costs
// existence queries, never correctness.
func (g *Guard) SeenRecently(ctx context.Context, step integration.WorkflowStep, externalRef string) bool {
	if !g.config.Enabled {
		return false
	}
	seen, err := g.markers.IsProcessed(ctx, markerKey(step, externalRef))
	if err != nil {
		g.logger.Warn("marker cache read failed",
			zap.String("step", step.String()),
			zap.String("external_ref", externalRef),
			zap.Error(err),
		)
		return false
	}
	return seen
}

// RememberSuccess records a completed step in the marker cache. Best effort.
func (g *Guard) RememberSuccess(ctx context.Context, step integration.WorkflowStep, externalRef string) {
	if !g.config.Enabled {
		return
	}
	if _, err := g.markers.MarkProcessed(ctx, markerKey(step, externalRef), g.config.TTL); err != nil {
		g.logger.Warn("marker cache write failed",
			zap.String("step", step.String()),
			zap.String("external_ref", externalRef),
			zap.Error(err),
		)
	}
}

// Forget clears all cached markers for an external record so the next pass
// re-checks the ERP. Used by manual reprocessing.
func (g *Guard) Forget(ctx context.Context, externalRef string) error {
	steps := []integration.WorkflowStep{
		integration.StepInvoice,
		integration.StepPayment,
		integration.StepCreditNote,
		integration.StepReconcile,
	}
	for _, step := range steps {
		if err := g.markers.Clear(ctx, markerKey(step, externalRef)); err != nil {
			return fmt.Errorf("clear marker %s: %w", markerKey(step, externalRef), err)
		}
	}
	return nil
}

// ExistingDocument runs the authoritative existence check for a document.
// Returns (nil, nil) when no document exists.
func (g *Guard) ExistingDocument(ctx context.Context, kind erp.DocumentKind, externalRef string) (*erp.FinancialDocument, error) {
	doc, err := g.erp.FindDocumentByExternalRef(ctx, kind, externalRef)
	if err != nil {
		return nil, fmt.Errorf("existence check for %s %s: %w", kind, externalRef, err)
	}
	return doc, nil
}

// ExistingPayment runs the authoritative existence check for a payment.
// Returns (nil, nil) when no payment exists.
func (g *Guard) ExistingPayment(ctx context.Context, kind erp.PaymentKind, externalRef string) (*erp.PaymentRecord, error) {
	payment, err := g.erp.FindPaymentByExternalRef(ctx, kind, externalRef)
	if err != nil {
		return nil, fmt.Errorf("existence check for %s payment %s: %w", kind, externalRef, err)
	}
	return payment, nil
}
