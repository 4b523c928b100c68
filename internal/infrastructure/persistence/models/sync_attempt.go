package models

import (
	"time"

	"github.com/erpsync/backend/internal/domain/integration"
	"github.com/google/uuid"
)

// SyncAttemptModel is the persistence model for one journal row. The journal
// is append-only, so the model has no UpdatedAt column.
type SyncAttemptModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	StoreKey      string    `gorm:"type:varchar(50);not null;index:idx_sync_attempts_store,priority:1"`
	ExternalRef   string    `gorm:"type:varchar(100);not null;index:idx_sync_attempts_ref,priority:1"`
	OrderName     string    `gorm:"type:varchar(50);index:idx_sync_attempts_name,priority:1"`
	Step          string    `gorm:"type:varchar(20);not null"`
	Outcome       string    `gorm:"type:varchar(20);not null;index:idx_sync_attempts_outcome,priority:1"`
	ErrorKind     string    `gorm:"type:varchar(30)"`
	ErrorMessage  string    `gorm:"type:text"`
	DocumentEntry int       `gorm:"not null;default:0"`
	StartedAt     time.Time `gorm:"not null"`
	FinishedAt    time.Time `gorm:"not null;index:idx_sync_attempts_finished,priority:1"`
	CreatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncAttemptModel) TableName() string {
	return "sync_attempts"
}

// ToDomain converts the persistence model to a domain SyncAttempt.
func (m *SyncAttemptModel) ToDomain() integration.SyncAttempt {
	return integration.SyncAttempt{
		ID:            m.ID,
		StoreKey:      m.StoreKey,
		ExternalRef:   m.ExternalRef,
		OrderName:     m.OrderName,
		Step:          integration.WorkflowStep(m.Step),
		Outcome:       integration.AttemptOutcome(m.Outcome),
		ErrorKind:     m.ErrorKind,
		ErrorMessage:  m.ErrorMessage,
		DocumentEntry: m.DocumentEntry,
		StartedAt:     m.StartedAt,
		FinishedAt:    m.FinishedAt,
	}
}

// FromDomain populates the persistence model from a domain SyncAttempt.
func (m *SyncAttemptModel) FromDomain(a *integration.SyncAttempt) {
	m.ID = a.ID
	m.StoreKey = a.StoreKey
	m.ExternalRef = a.ExternalRef
	m.OrderName = a.OrderName
	m.Step = string(a.Step)
	m.Outcome = string(a.Outcome)
	m.ErrorKind = a.ErrorKind
	m.ErrorMessage = a.ErrorMessage
	m.DocumentEntry = a.DocumentEntry
	m.StartedAt = a.StartedAt
	m.FinishedAt = a.FinishedAt
}
