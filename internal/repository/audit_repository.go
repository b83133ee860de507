package repository

import (
	"context"
	"fmt"

	"github.com/clinscribe/ehr-sync-connector/internal/database"
	"github.com/clinscribe/ehr-sync-connector/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditRepository handles the append-only EHR write ledger
type AuditRepository struct{}

// NewAuditRepository creates a new audit repository
func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

// Create appends an audit entry. Entries are never updated or deleted.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditEntry) error {
	if err := database.DB.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}
	return nil
}

// List retrieves audit entries, newest writes first
func (r *AuditRepository) List(ctx context.Context, filter SyncFilter, limit, offset int) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	query := applyAuditFilter(database.DB.WithContext(ctx).Order("written_at DESC"), filter)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}

// Count counts audit entries matching the filter
func (r *AuditRepository) Count(ctx context.Context, filter SyncFilter) (int64, error) {
	var count int64
	query := applyAuditFilter(database.DB.WithContext(ctx).Model(&models.AuditEntry{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return count, nil
}

func applyAuditFilter(query *gorm.DB, filter SyncFilter) *gorm.DB {
	if filter.ConnectionID != uuid.Nil {
		query = query.Where("connection_id = ?", filter.ConnectionID)
	}
	if filter.RecordID != uuid.Nil {
		query = query.Where("record_id = ?", filter.RecordID)
	}
	return query
}
