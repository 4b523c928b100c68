package integration

// ---------------------------------------------------------------------------
// Workflow Steps and Markers
// ---------------------------------------------------------------------------

// WorkflowStep identifies one step of a reconciliation workflow
type WorkflowStep string

const (
	// StepInvoice creates the invoice for a captured order
	StepInvoice WorkflowStep = "invoice"
	// StepPayment creates the incoming payment applied to the invoice
	StepPayment WorkflowStep = "payment"
	// StepCreditNote creates the credit note for a return
	StepCreditNote WorkflowStep = "credit-note"
	// StepReconcile creates the reconciling document for a return:
	// a gift-card invoice plus link for store credit, or an outgoing
	// payment for a refund
	StepReconcile WorkflowStep = "reconcile"
)

// String returns the string representation of the step
func (s WorkflowStep) String() string {
	return string(s)
}

// MarkerOutcome records how a workflow step ended
type MarkerOutcome string

const (
	// OutcomeSucceeded is set only after the document has been durably
	// created in the ERP
	OutcomeSucceeded MarkerOutcome = "synced"
	// OutcomeFailed is set only for errors classified as non-retryable;
	// the record stays failed until manual intervention
	OutcomeFailed MarkerOutcome = "failed"
)

// markerPrefix namespaces sync tags on external records so they never
// collide with merchant-authored tags.
const markerPrefix = "erp-"

// MarkerTag builds the tag attached to an external record for a step outcome,
// e.g. "erp-invoice-synced" or "erp-credit-note-failed".
func MarkerTag(step WorkflowStep, outcome MarkerOutcome) string {
	return markerPrefix + string(step) + "-" + string(outcome)
}

// ReturnMarkerTag scopes a marker to a specific return on the order record,
// since one order may have several returns.
func ReturnMarkerTag(step WorkflowStep, outcome MarkerOutcome, returnID string) string {
	return MarkerTag(step, outcome) + "-" + returnID
}

// MarkerState is the marker reading for one step of one external record
type MarkerState struct {
	Succeeded bool
	Failed    bool
}

// Terminal reports whether the step needs no further attempts
func (s MarkerState) Terminal() bool {
	return s.Succeeded || s.Failed
}

// ReadMarker derives the marker state for a step from an order's tag set
func ReadMarker(tags []string, step WorkflowStep) MarkerState {
	return readMarker(tags, MarkerTag(step, OutcomeSucceeded), MarkerTag(step, OutcomeFailed))
}

// ReadReturnMarker derives the marker state for a return-scoped step
func ReadReturnMarker(tags []string, step WorkflowStep, returnID string) MarkerState {
	return readMarker(tags,
		ReturnMarkerTag(step, OutcomeSucceeded, returnID),
		ReturnMarkerTag(step, OutcomeFailed, returnID))
}

func readMarker(tags []string, successTag, failureTag string) MarkerState {
	var state MarkerState
	for _, t := range tags {
		switch t {
		case successTag:
			state.Succeeded = true
		case failureTag:
			state.Failed = true
		}
	}
	return state
}

// ---------------------------------------------------------------------------
// Derived Workflow States
// ---------------------------------------------------------------------------

// OrderSyncState is the per-order position in the capture state machine.
// It is derived on each pass from the authoritative existence checks, never
// stored; markers only short-circuit the derivation.
type OrderSyncState string

const (
	OrderStateUnseen         OrderSyncState = "UNSEEN"
	OrderStateInvoicePending OrderSyncState = "INVOICE_PENDING"
	OrderStateInvoiceCreated OrderSyncState = "INVOICE_CREATED"
	OrderStatePaymentPending OrderSyncState = "PAYMENT_PENDING"
	OrderStatePaymentCreated OrderSyncState = "PAYMENT_CREATED"
	OrderStateInvoiceFailed  OrderSyncState = "INVOICE_FAILED"
	OrderStatePaymentFailed  OrderSyncState = "PAYMENT_FAILED"
)

// Terminal reports whether the order needs no further passes
func (s OrderSyncState) Terminal() bool {
	switch s {
	case OrderStatePaymentCreated, OrderStateInvoiceFailed, OrderStatePaymentFailed:
		return true
	default:
		return false
	}
}

// ReturnSyncState is the per-return position in the return state machine
type ReturnSyncState string

const (
	ReturnStateUnseen            ReturnSyncState = "UNSEEN"
	ReturnStateCreditNotePending ReturnSyncState = "CREDIT_NOTE_PENDING"
	ReturnStateCreditNoteCreated ReturnSyncState = "CREDIT_NOTE_CREATED"
	ReturnStateReconcilePending  ReturnSyncState = "RECONCILE_PENDING"
	ReturnStateReconciled        ReturnSyncState = "RECONCILED"
	ReturnStateCreditNoteFailed  ReturnSyncState = "CREDIT_NOTE_FAILED"
	ReturnStateReconcileFailed   ReturnSyncState = "RECONCILE_FAILED"
)

// Terminal reports whether the return needs no further passes
func (s ReturnSyncState) Terminal() bool {
	switch s {
	case ReturnStateReconciled, ReturnStateCreditNoteFailed, ReturnStateReconcileFailed:
		return true
	default:
		return false
	}
}
