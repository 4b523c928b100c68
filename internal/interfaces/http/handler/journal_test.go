package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erpsync/backend/internal/domain/integration"
	"github.com/erpsync/backend/internal/domain/shared"
)

// fakeJournal records queries and serves canned rows
type fakeJournal struct {
	lastFilter integration.AttemptFilter
	rows       []integration.SyncAttempt
	byRef      map[string][]integration.SyncAttempt
	err        error
}

func (f *fakeJournal) Record(_ context.Context, _ *integration.SyncAttempt) error {
	return f.err
}

func (f *fakeJournal) Find(_ context.Context, filter integration.AttemptFilter) ([]integration.SyncAttempt, error) {
	f.lastFilter = filter
	return f.rows, f.err
}

func (f *fakeJournal) LatestByRef(_ context.Context, externalRef string) ([]integration.SyncAttempt, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byRef[externalRef], nil
}

func (f *fakeJournal) Count(_ context.Context, _ integration.AttemptFilter) (int64, error) {
	return int64(len(f.rows)), f.err
}

func journalRouter(journal integration.AttemptJournal) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewJournalHandler(journal).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func sampleAttempt(ref string, step integration.WorkflowStep) integration.SyncAttempt {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return integration.SyncAttempt{
		ID:            uuid.New(),
		StoreKey:      "cairo",
		ExternalRef:   ref,
		OrderName:     "#1042",
		Step:          step,
		Outcome:       integration.AttemptSucceeded,
		DocumentEntry: 5501,
		StartedAt:     now.Add(-time.Second),
		FinishedAt:    now,
	}
}

func TestJournalListParsesFilter(t *testing.T) {
	journal := &fakeJournal{rows: []integration.SyncAttempt{sampleAttempt("1042", integration.StepInvoice)}}
	router := journalRouter(journal)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/attempts?store_key=cairo&step=invoice&outcome=SUCCEEDED&since=2026-03-01T00:00:00Z&limit=10&offset=5", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cairo", journal.lastFilter.StoreKey)
	assert.Equal(t, integration.StepInvoice, journal.lastFilter.Step)
	assert.Equal(t, integration.AttemptSucceeded, journal.lastFilter.Outcome)
	assert.Equal(t, 2026, journal.lastFilter.Since.Year())
	assert.Equal(t, 10, journal.lastFilter.Limit)
	assert.Equal(t, 5, journal.lastFilter.Offset)

	var body struct {
		Success bool              `json:"success"`
		Data    []AttemptResponse `json:"data"`
		Meta    struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "#1042", body.Data[0].OrderName)
	assert.Equal(t, "invoice", body.Data[0].Step)
	assert.Equal(t, 5501, body.Data[0].DocumentEntry)
	assert.Equal(t, int64(1), body.Meta.Total)
}

func TestJournalListRejectsBadSince(t *testing.T) {
	router := journalRouter(&fakeJournal{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/attempts?since=yesterday", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJournalListRejectsOversizedLimit(t *testing.T) {
	router := journalRouter(&fakeJournal{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/attempts?limit=5000", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJournalListMapsClassifiedError(t *testing.T) {
	journal := &fakeJournal{err: shared.Classify(shared.KindTransientIO, assert.AnError)}
	router := journalRouter(journal)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/attempts", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestJournalLatestByRef(t *testing.T) {
	journal := &fakeJournal{byRef: map[string][]integration.SyncAttempt{
		"1042": {
			sampleAttempt("1042", integration.StepPayment),
			sampleAttempt("1042", integration.StepInvoice),
		},
	}}
	router := journalRouter(journal)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/attempts/1042", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []AttemptResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "payment", body.Data[0].Step)
}

func TestJournalLatestByRefNotFound(t *testing.T) {
	router := journalRouter(&fakeJournal{byRef: map[string][]integration.SyncAttempt{}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/attempts/9999", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
