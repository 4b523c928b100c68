package persistence

import (
	"context"
	"time"

	"github.com/erpsync/backend/internal/domain/integration"
	"github.com/erpsync/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAttemptJournal implements integration.AttemptJournal using GORM
type GormAttemptJournal struct {
	db *gorm.DB
}

// NewGormAttemptJournal creates a new GormAttemptJournal
func NewGormAttemptJournal(db *gorm.DB) *GormAttemptJournal {
	return &GormAttemptJournal{db: db}
}

var _ integration.AttemptJournal = (*GormAttemptJournal)(nil)

// Record appends one attempt row to the journal
func (r *GormAttemptJournal) Record(ctx context.Context, attempt *integration.SyncAttempt) error {
	var model models.SyncAttemptModel
	model.FromDomain(attempt)
	if model.ID == uuid.Nil {
		model.ID = uuid.New()
	}
	model.CreatedAt = time.Now()
	return r.db.WithContext(ctx).Create(&model).Error
}

// Find returns attempts matching the filter, newest first
func (r *GormAttemptJournal) Find(ctx context.Context, filter integration.AttemptFilter) ([]integration.SyncAttempt, error) {
	query := r.applyFilter(r.db.WithContext(ctx), filter).
		Order("finished_at DESC")

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var rows []models.SyncAttemptModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	attempts := make([]integration.SyncAttempt, len(rows))
	for i := range rows {
		attempts[i] = rows[i].ToDomain()
	}
	return attempts, nil
}

// LatestByRef returns the most recent attempt per step for one external
// record, newest first
func (r *GormAttemptJournal) LatestByRef(ctx context.Context, externalRef string) ([]integration.SyncAttempt, error) {
	var rows []models.SyncAttemptModel
	if err := r.db.WithContext(ctx).
		Where("external_ref = ?", externalRef).
		Order("finished_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	seen := make(map[string]bool, 4)
	attempts := make([]integration.SyncAttempt, 0, 4)
	for i := range rows {
		if seen[rows[i].Step] {
			continue
		}
		seen[rows[i].Step] = true
		attempts = append(attempts, rows[i].ToDomain())
	}
	return attempts, nil
}

// Count returns the number of attempts matching the filter
func (r *GormAttemptJournal) Count(ctx context.Context, filter integration.AttemptFilter) (int64, error) {
	var count int64
	err := r.applyFilter(r.db.WithContext(ctx), filter).
		Model(&models.SyncAttemptModel{}).
		Count(&count).Error
	return count, err
}

func (r *GormAttemptJournal) applyFilter(db *gorm.DB, filter integration.AttemptFilter) *gorm.DB {
	if filter.StoreKey != "" {
		db = db.Where("store_key = ?", filter.StoreKey)
	}
	if filter.ExternalRef != "" {
		db = db.Where("external_ref = ?", filter.ExternalRef)
	}
	if filter.Step != "" {
		db = db.Where("step = ?", string(filter.Step))
	}
	if filter.Outcome != "" {
		db = db.Where("outcome = ?", string(filter.Outcome))
	}
	if !filter.Since.IsZero() {
		db = db.Where("finished_at >= ?", filter.Since)
	}
	return db
}
