package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/erpsync/backend/internal/domain/integration"
	"github.com/erpsync/backend/internal/infrastructure/scheduler"
	"github.com/erpsync/backend/internal/interfaces/http/dto"
)

// PassScheduler queues reconciliation passes. Satisfied by
// scheduler.SyncScheduler.
type PassScheduler interface {
	Schedule(storeKey string, workflow scheduler.Workflow) error
	History(limit int) []*scheduler.SyncJob
}

// OrderReprocessor re-runs the capture workflow for one order. Satisfied by
// reconcile.Orchestrator.
type OrderReprocessor interface {
	ReprocessOrder(ctx context.Context, storeKey, orderID string) (integration.OrderSyncState, error)
}

// SyncHandler exposes manual pass triggering and job history
type SyncHandler struct {
	BaseHandler
	scheduler   PassScheduler
	reprocessor OrderReprocessor
}

// NewSyncHandler creates a SyncHandler
func NewSyncHandler(passScheduler PassScheduler, reprocessor OrderReprocessor) *SyncHandler {
	return &SyncHandler{
		scheduler:   passScheduler,
		reprocessor: reprocessor,
	}
}

// RegisterRoutes registers the sync routes
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sync := rg.Group("/sync")
	sync.POST("/passes", h.TriggerPass)
	sync.GET("/jobs", h.ListJobs)
	sync.POST("/orders/reprocess", h.ReprocessOrder)
}

// TriggerPassRequest asks for one pass of a workflow for a store
type TriggerPassRequest struct {
	StoreKey string `json:"store_key" binding:"required"`
	Workflow string `json:"workflow" binding:"required,oneof=orders returns payment-recovery"`
}

// TriggerPass queues a reconciliation pass
func (h *SyncHandler) TriggerPass(c *gin.Context) {
	var req TriggerPassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	err := h.scheduler.Schedule(req.StoreKey, scheduler.Workflow(req.Workflow))
	switch {
	case errors.Is(err, scheduler.ErrJobQueueFull):
		h.Error(c, http.StatusTooManyRequests, dto.ErrCodeRateLimited, err.Error())
		return
	case errors.Is(err, scheduler.ErrSchedulerNotRunning):
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUpstreamUnavailable, err.Error())
		return
	case err != nil:
		h.InternalError(c, err.Error())
		return
	}

	h.Accepted(c, gin.H{
		"store_key": req.StoreKey,
		"workflow":  req.Workflow,
	})
}

// SyncJobResponse is one scheduler job
type SyncJobResponse struct {
	ID          string     `json:"id"`
	StoreKey    string     `json:"store_key"`
	Workflow    string     `json:"workflow"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count,omitempty"`
	Processed   int        `json:"processed"`
	Succeeded   int        `json:"succeeded"`
	Skipped     int        `json:"skipped"`
	Failed      int        `json:"failed"`
}

// ListJobs returns recent scheduler jobs, newest first
func (h *SyncHandler) ListJobs(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	jobs := h.scheduler.History(limit)
	rows := make([]SyncJobResponse, 0, len(jobs))
	for _, job := range jobs {
		row := SyncJobResponse{
			ID:          job.ID.String(),
			StoreKey:    job.StoreKey,
			Workflow:    string(job.Workflow),
			Status:      string(job.Status),
			CreatedAt:   job.CreatedAt,
			StartedAt:   job.StartedAt,
			CompletedAt: job.CompletedAt,
			Error:       job.Error,
			RetryCount:  job.RetryCount,
		}
		if job.Summary != nil {
			row.Processed = job.Summary.Processed
			row.Succeeded = job.Summary.Succeeded
			row.Skipped = job.Summary.Skipped
			row.Failed = job.Summary.Failed
		}
		rows = append(rows, row)
	}

	h.Success(c, rows)
}

// ReprocessOrderRequest asks for one order to be re-driven through capture
type ReprocessOrderRequest struct {
	StoreKey string `json:"store_key" binding:"required"`
	OrderID  string `json:"order_id" binding:"required"`
}

// ReprocessOrder re-runs the capture workflow for a single order, ignoring
// its marker tags. Existence checks still prevent duplicate documents.
func (h *SyncHandler) ReprocessOrder(c *gin.Context) {
	var req ReprocessOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	state, err := h.reprocessor.ReprocessOrder(c.Request.Context(), req.StoreKey, req.OrderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{
		"store_key": req.StoreKey,
		"order_id":  req.OrderID,
		"state":     string(state),
	})
}
