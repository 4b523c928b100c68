package scheduler

import (
	"time"

	"github.com/google/uuid"

	"github.com/erpsync/backend/internal/application/reconcile"
)

// Workflow identifies which reconciliation pass a job runs
type Workflow string

const (
	WorkflowOrders   Workflow = "orders"
	WorkflowReturns  Workflow = "returns"
	WorkflowRecovery Workflow = "payment-recovery"
)

// JobStatus represents the lifecycle state of a sync job
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusPartial   JobStatus = "PARTIAL"
	JobStatusFailed    JobStatus = "FAILED"
)

// SyncJob is one scheduled reconciliation pass for a store
type SyncJob struct {
	ID       uuid.UUID
	StoreKey string
	Workflow Workflow
	Status   JobStatus

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	// Summary is populated when the pass finishes, even a partial one
	Summary *reconcile.RunSummary
	Error   string

	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time
}

// NewSyncJob creates a pending job for one store and workflow
func NewSyncJob(storeKey string, workflow Workflow, maxRetries int) *SyncJob {
	return &SyncJob{
		ID:         uuid.New(),
		StoreKey:   storeKey,
		Workflow:   workflow,
		Status:     JobStatusPending,
		CreatedAt:  time.Now(),
		MaxRetries: maxRetries,
	}
}

// Start marks the job as running
func (j *SyncJob) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
}

// Complete records the pass summary. A pass with failed items finishes as
// PARTIAL; those items stay unmarked on the platform and are retried by the
// next pass, not by this job.
func (j *SyncJob) Complete(summary *reconcile.RunSummary) {
	now := time.Now()
	j.CompletedAt = &now
	j.Summary = summary
	if summary != nil && summary.Failed > 0 {
		j.Status = JobStatusPartial
		return
	}
	j.Status = JobStatusSucceeded
}

// Fail marks the job as failed with an error message
func (j *SyncJob) Fail(message string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = message
	j.RetryCount++
}

// ShouldRetry reports whether the job has retry budget left
func (j *SyncJob) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount <= j.MaxRetries
}

// ScheduleRetry sets the next retry time with capped exponential backoff
func (j *SyncJob) ScheduleRetry(baseDelay time.Duration) {
	delay := baseDelay
	for i := 1; i < j.RetryCount; i++ {
		delay *= 2
		if delay > 30*time.Minute {
			delay = 30 * time.Minute
			break
		}
	}
	next := time.Now().Add(delay)
	j.NextRetryAt = &next
	j.Status = JobStatusPending
	j.StartedAt = nil
	j.CompletedAt = nil
}
