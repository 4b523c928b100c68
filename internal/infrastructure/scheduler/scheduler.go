package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/erpsync/backend/internal/application/reconcile"
)

// PassRunner runs one reconciliation pass for a store. Satisfied by
// reconcile.Orchestrator.
type PassRunner interface {
	SyncOrders(ctx context.Context, storeKey string) (*reconcile.RunSummary, error)
	SyncReturns(ctx context.Context, storeKey string) (*reconcile.RunSummary, error)
	RecoverPayments(ctx context.Context, storeKey string) (*reconcile.RunSummary, error)
}

// Config holds settings for the sync scheduler
type Config struct {
	// MaxConcurrentJobs is the worker pool size
	MaxConcurrentJobs int

	// JobTimeout bounds one pass; a pass cut short resumes on the next tick
	JobTimeout time.Duration

	// RetryAttempts is the per-job retry budget for whole-pass failures
	RetryAttempts int

	// RetryDelay seeds the backoff between job retries
	RetryDelay time.Duration

	// QueueSize bounds the pending job queue
	QueueSize int
}

// DefaultConfig returns sensible scheduler defaults
func DefaultConfig() Config {
	return Config{
		MaxConcurrentJobs: 2,
		JobTimeout:        10 * time.Minute,
		RetryAttempts:     2,
		RetryDelay:        30 * time.Second,
		QueueSize:         100,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.MaxConcurrentJobs <= 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.RetryAttempts < 0 {
		return ErrInvalidConfig
	}
	if c.QueueSize <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// SyncScheduler runs reconciliation passes through a bounded worker pool.
// Jobs are queued per store and workflow; a full queue sheds the job rather
// than blocking, since a missed pass is picked up by the next tick anyway.
type SyncScheduler struct {
	config Config
	runner PassRunner
	logger *zap.Logger

	jobs      chan *SyncJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// Completed job history for the admin API (in-memory, bounded)
	historyMu  sync.RWMutex
	history    []*SyncJob
	maxHistory int
}

// NewSyncScheduler creates a sync scheduler
func NewSyncScheduler(config Config, runner PassRunner, logger *zap.Logger) (*SyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &SyncScheduler{
		config:     config,
		runner:     runner,
		logger:     logger,
		jobs:       make(chan *SyncJob, config.QueueSize),
		history:    make([]*SyncJob, 0, 100),
		maxHistory: 100,
	}, nil
}

// Start starts the worker pool
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Sync scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)

	return nil
}

// Stop gracefully stops the scheduler
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	if s.cancel != nil {
		s.cancel()
	}
	// Closed under the same lock Submit sends under, so a concurrent
	// Submit either sees isRunning or a still-open channel, never a
	// send on a closed one.
	close(s.jobs)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// Submit queues a job for execution
func (s *SyncScheduler) Submit(job *SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}

	select {
	case s.jobs <- job:
		s.logger.Debug("Sync job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("store_key", job.StoreKey),
			zap.String("workflow", string(job.Workflow)),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

// Schedule queues one pass for a store and workflow
func (s *SyncScheduler) Schedule(storeKey string, workflow Workflow) error {
	return s.Submit(NewSyncJob(storeKey, workflow, s.config.RetryAttempts))
}

func (s *SyncScheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-s.jobs:
			if !ok {
				return
			}
			s.processJob(ctx, job, workerID)
		}
	}
}

func (s *SyncScheduler) processJob(ctx context.Context, job *SyncJob, workerID int) {
	job.Start()
	s.logger.Info("Running sync pass",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("store_key", job.StoreKey),
		zap.String("workflow", string(job.Workflow)),
	)

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	summary, err := s.runPass(jobCtx, job)
	if err != nil {
		job.Fail(err.Error())
		s.logger.Error("Sync pass failed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", job.ID.String()),
			zap.String("store_key", job.StoreKey),
			zap.String("workflow", string(job.Workflow)),
			zap.Error(err),
		)

		if job.ShouldRetry() {
			job.ScheduleRetry(s.config.RetryDelay)
			s.logger.Info("Sync pass scheduled for retry",
				zap.String("job_id", job.ID.String()),
				zap.Int("retry_count", job.RetryCount),
				zap.Int("max_retries", job.MaxRetries),
				zap.Time("next_retry_at", *job.NextRetryAt),
			)
			s.requeueWhenDue(ctx, job)
		}

		s.addToHistory(job)
		return
	}

	job.Complete(summary)
	s.logger.Info("Sync pass finished",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("store_key", job.StoreKey),
		zap.String("workflow", string(job.Workflow)),
		zap.String("status", string(job.Status)),
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)

	s.addToHistory(job)
}

// requeueWhenDue holds a retried job off the queue until its backoff
// elapses, so workers are not spun feeding not-yet-due jobs back to
// themselves.
func (s *SyncScheduler) requeueWhenDue(ctx context.Context, job *SyncJob) {
	delay := time.Duration(0)
	if job.NextRetryAt != nil {
		delay = time.Until(*job.NextRetryAt)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
		if err := s.Submit(job); err != nil {
			s.logger.Warn("Failed to re-queue sync job for retry",
				zap.String("job_id", job.ID.String()),
				zap.Error(err),
			)
		}
	}()
}

func (s *SyncScheduler) runPass(ctx context.Context, job *SyncJob) (*reconcile.RunSummary, error) {
	switch job.Workflow {
	case WorkflowOrders:
		return s.runner.SyncOrders(ctx, job.StoreKey)
	case WorkflowReturns:
		return s.runner.SyncReturns(ctx, job.StoreKey)
	case WorkflowRecovery:
		return s.runner.RecoverPayments(ctx, job.StoreKey)
	default:
		return nil, ErrUnknownWorkflow
	}
}

func (s *SyncScheduler) addToHistory(job *SyncJob) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append([]*SyncJob{job}, s.history...)
	if len(s.history) > s.maxHistory {
		s.history = s.history[:s.maxHistory]
	}
}

// History returns the most recent completed jobs, newest first
func (s *SyncScheduler) History(limit int) []*SyncJob {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}

	result := make([]*SyncJob, limit)
	copy(result, s.history[:limit])
	return result
}
