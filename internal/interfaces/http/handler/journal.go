package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/erpsync/backend/internal/domain/integration"
)

// JournalHandler exposes the sync attempt journal to operators
type JournalHandler struct {
	BaseHandler
	journal integration.AttemptJournal
}

// NewJournalHandler creates a JournalHandler
func NewJournalHandler(journal integration.AttemptJournal) *JournalHandler {
	return &JournalHandler{journal: journal}
}

// RegisterRoutes registers the journal routes
func (h *JournalHandler) RegisterRoutes(rg *gin.RouterGroup) {
	attempts := rg.Group("/attempts")
	attempts.GET("", h.List)
	attempts.GET("/:ref", h.LatestByRef)
}

// AttemptListRequest holds journal query parameters
type AttemptListRequest struct {
	StoreKey    string `form:"store_key"`
	ExternalRef string `form:"external_ref"`
	Step        string `form:"step"`
	Outcome     string `form:"outcome"`
	Since       string `form:"since"`
	Limit       int    `form:"limit,default=50" binding:"omitempty,min=1,max=200"`
	Offset      int    `form:"offset" binding:"omitempty,min=0"`
}

// AttemptResponse is one journal row
type AttemptResponse struct {
	ID            string    `json:"id"`
	StoreKey      string    `json:"store_key"`
	ExternalRef   string    `json:"external_ref"`
	OrderName     string    `json:"order_name"`
	Step          string    `json:"step"`
	Outcome       string    `json:"outcome"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	DocumentEntry int       `json:"document_entry,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

func attemptResponse(attempt integration.SyncAttempt) AttemptResponse {
	return AttemptResponse{
		ID:            attempt.ID.String(),
		StoreKey:      attempt.StoreKey,
		ExternalRef:   attempt.ExternalRef,
		OrderName:     attempt.OrderName,
		Step:          string(attempt.Step),
		Outcome:       string(attempt.Outcome),
		ErrorKind:     attempt.ErrorKind,
		ErrorMessage:  attempt.ErrorMessage,
		DocumentEntry: attempt.DocumentEntry,
		StartedAt:     attempt.StartedAt,
		FinishedAt:    attempt.FinishedAt,
	}
}

// List returns journal rows matching the query, newest first
func (h *JournalHandler) List(c *gin.Context) {
	var req AttemptListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := integration.AttemptFilter{
		StoreKey:    req.StoreKey,
		ExternalRef: req.ExternalRef,
		Step:        integration.WorkflowStep(req.Step),
		Outcome:     integration.AttemptOutcome(req.Outcome),
		Limit:       req.Limit,
		Offset:      req.Offset,
	}
	if req.Since != "" {
		since, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			h.BadRequest(c, "since must be RFC3339")
			return
		}
		filter.Since = since
	}

	attempts, err := h.journal.Find(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	total, err := h.journal.Count(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	rows := make([]AttemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		rows = append(rows, attemptResponse(attempt))
	}

	h.SuccessWithMeta(c, rows, total, req.Limit, req.Offset)
}

// LatestByRef returns the most recent attempt per workflow step for one
// external record
func (h *JournalHandler) LatestByRef(c *gin.Context) {
	ref := c.Param("ref")
	if ref == "" {
		h.BadRequest(c, "external ref is required")
		return
	}

	attempts, err := h.journal.LatestByRef(c.Request.Context(), ref)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if len(attempts) == 0 {
		h.NotFound(c, "no attempts recorded for this ref")
		return
	}

	rows := make([]AttemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		rows = append(rows, attemptResponse(attempt))
	}

	h.Success(c, rows)
}
