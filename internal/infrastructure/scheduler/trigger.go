package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/erpsync/backend/internal/infrastructure/config"
)

// TriggerConfig holds the pass schedule
type TriggerConfig struct {
	// CheckInterval is how often due passes are evaluated
	CheckInterval time.Duration

	// StoreKeys lists the stores to schedule passes for
	StoreKeys []string

	OrdersEnabled   bool
	ReturnsEnabled  bool
	RecoveryEnabled bool

	OrdersInterval  time.Duration
	ReturnsInterval time.Duration

	// RecoveryInterval defaults to OrdersInterval when zero
	RecoveryInterval time.Duration
}

// TriggerConfigFromSync derives a trigger schedule from the sync settings
func TriggerConfigFromSync(sync config.SyncConfig, storeKeys []string) TriggerConfig {
	cfg := TriggerConfig{
		CheckInterval:    time.Minute,
		StoreKeys:        storeKeys,
		OrdersEnabled:    sync.OrdersEnabled,
		ReturnsEnabled:   sync.ReturnsEnabled,
		RecoveryEnabled:  sync.RecoveryEnabled,
		OrdersInterval:   sync.OrdersInterval,
		ReturnsInterval:  sync.ReturnsInterval,
		RecoveryInterval: sync.OrdersInterval,
	}
	if cfg.OrdersInterval <= 0 {
		cfg.OrdersInterval = 15 * time.Minute
	}
	if cfg.ReturnsInterval <= 0 {
		cfg.ReturnsInterval = 30 * time.Minute
	}
	if cfg.RecoveryInterval <= 0 {
		cfg.RecoveryInterval = cfg.OrdersInterval
	}
	if cfg.CheckInterval > cfg.OrdersInterval {
		cfg.CheckInterval = cfg.OrdersInterval
	}
	return cfg
}

// PassTrigger schedules reconciliation passes on fixed intervals. It tracks
// when each store/workflow pair last ran so overlapping ticks never queue
// duplicate passes.
type PassTrigger struct {
	config    TriggerConfig
	scheduler *SyncScheduler
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	lastScheduledMu sync.Mutex
	lastScheduled   map[string]time.Time
}

// NewPassTrigger creates a pass trigger
func NewPassTrigger(config TriggerConfig, scheduler *SyncScheduler, logger *zap.Logger) *PassTrigger {
	return &PassTrigger{
		config:        config,
		scheduler:     scheduler,
		logger:        logger,
		lastScheduled: make(map[string]time.Time),
	}
}

// Start starts the trigger loop
func (t *PassTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Pass trigger started",
		zap.Duration("check_interval", t.config.CheckInterval),
		zap.Strings("stores", t.config.StoreKeys),
		zap.Bool("orders", t.config.OrdersEnabled),
		zap.Bool("returns", t.config.ReturnsEnabled),
		zap.Bool("recovery", t.config.RecoveryEnabled),
	)

	return nil
}

// Stop stops the trigger loop
func (t *PassTrigger) Stop() {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()

	t.logger.Info("Pass trigger stopped")
}

func (t *PassTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()

	// First evaluation immediately so a fresh process does not sit idle
	// for a whole check interval
	t.scheduleDue(time.Now())

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t.scheduleDue(now)
		}
	}
}

// scheduleDue queues a pass for every store/workflow pair whose interval
// has elapsed
func (t *PassTrigger) scheduleDue(now time.Time) {
	for _, storeKey := range t.config.StoreKeys {
		if t.config.OrdersEnabled {
			t.scheduleIfDue(now, storeKey, WorkflowOrders, t.config.OrdersInterval)
		}
		if t.config.ReturnsEnabled {
			t.scheduleIfDue(now, storeKey, WorkflowReturns, t.config.ReturnsInterval)
		}
		if t.config.RecoveryEnabled {
			t.scheduleIfDue(now, storeKey, WorkflowRecovery, t.config.RecoveryInterval)
		}
	}
}

func (t *PassTrigger) scheduleIfDue(now time.Time, storeKey string, workflow Workflow, interval time.Duration) {
	key := storeKey + "/" + string(workflow)

	t.lastScheduledMu.Lock()
	last, seen := t.lastScheduled[key]
	if seen && now.Sub(last) < interval {
		t.lastScheduledMu.Unlock()
		return
	}
	t.lastScheduled[key] = now
	t.lastScheduledMu.Unlock()

	if err := t.scheduler.Schedule(storeKey, workflow); err != nil {
		t.logger.Warn("Failed to schedule sync pass",
			zap.String("store_key", storeKey),
			zap.String("workflow", string(workflow)),
			zap.Error(err),
		)
		// Allow the next tick to try again
		t.lastScheduledMu.Lock()
		if seen {
			t.lastScheduled[key] = last
		} else {
			delete(t.lastScheduled, key)
		}
		t.lastScheduledMu.Unlock()
	}
}
