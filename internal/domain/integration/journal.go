package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AttemptOutcome records how a single workflow step attempt ended
type AttemptOutcome string

const (
	AttemptSucceeded AttemptOutcome = "SUCCEEDED"
	AttemptSkipped   AttemptOutcome = "SKIPPED"
	AttemptRetrying  AttemptOutcome = "RETRYING"
	AttemptFailed    AttemptOutcome = "FAILED"
)

// SyncAttempt is one journal row: a single attempt of one workflow step for
// one external record. The journal is append-only and exists for operators;
// workflow state is never derived from it.
type SyncAttempt struct {
	ID          uuid.UUID
	StoreKey    string
	ExternalRef string
	// OrderName is the human-facing number operators search by
	OrderName string
	Step      WorkflowStep
	Outcome   AttemptOutcome
	// ErrorKind and ErrorMessage are set for retrying/failed attempts
	ErrorKind    string
	ErrorMessage string
	// DocumentEntry is the ERP entry created or found by this attempt
	DocumentEntry int
	StartedAt     time.Time
	FinishedAt    time.Time
}

// AttemptFilter selects journal rows for the operator API
type AttemptFilter struct {
	StoreKey    string
	ExternalRef string
	Step        WorkflowStep
	Outcome     AttemptOutcome
	Since       time.Time
	Limit       int
	Offset      int
}

// AttemptJournal is the append-only audit log of workflow step attempts
type AttemptJournal interface {
	// Record appends one attempt row
	Record(ctx context.Context, attempt *SyncAttempt) error

	// Find returns attempts matching the filter, newest first
	Find(ctx context.Context, filter AttemptFilter) ([]SyncAttempt, error)

	// LatestByRef returns the most recent attempt per step for one
	// external record, newest first
	LatestByRef(ctx context.Context, externalRef string) ([]SyncAttempt, error)

	// Count returns the number of attempts matching the filter
	Count(ctx context.Context, filter AttemptFilter) (int64, error)
}
