package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/clinscribe/ehr-sync-connector/internal/database"
	"github.com/clinscribe/ehr-sync-connector/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SyncFilter narrows sync and audit listings
type SyncFilter struct {
	ConnectionID uuid.UUID
	RecordID     uuid.UUID
	Status       models.SyncStatus
}

// SyncRepository handles sync attempt database operations
type SyncRepository struct{}

// NewSyncRepository creates a new sync repository
func NewSyncRepository() *SyncRepository {
	return &SyncRepository{}
}

// Create creates a new sync attempt row
func (r *SyncRepository) Create(ctx context.Context, sync *models.EHRSync) error {
	if err := database.DB.WithContext(ctx).Create(sync).Error; err != nil {
		return fmt.Errorf("failed to create sync record: %w", err)
	}
	return nil
}

// GetByID retrieves a sync attempt by ID
func (r *SyncRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.EHRSync, error) {
	var sync models.EHRSync
	if err := database.DB.WithContext(ctx).Where("id = ?", id).First(&sync).Error; err != nil {
		return nil, fmt.Errorf("failed to get sync record: %w", err)
	}
	return &sync, nil
}

// Complete transitions a pending sync to its terminal status. Terminal rows
// are immutable afterwards except for synced_at.
func (r *SyncRepository) Complete(ctx context.Context, id uuid.UUID, status models.SyncStatus, responseData map[string]interface{}, errorMessage string) error {
	updates := map[string]interface{}{
		"status":        status,
		"response_data": responseData,
		"error_message": errorMessage,
	}
	if status == models.SyncStatusSuccess {
		updates["synced_at"] = time.Now().UTC()
	}

	if err := database.DB.WithContext(ctx).
		Model(&models.EHRSync{}).
		Where("id = ? AND status = ?", id, models.SyncStatusPending).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to complete sync record: %w", err)
	}
	return nil
}

// List retrieves sync attempts, newest first
func (r *SyncRepository) List(ctx context.Context, filter SyncFilter, limit, offset int) ([]models.EHRSync, error) {
	var syncs []models.EHRSync
	query := applySyncFilter(database.DB.WithContext(ctx).Order("created_at DESC"), filter)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&syncs).Error; err != nil {
		return nil, fmt.Errorf("failed to list sync records: %w", err)
	}
	return syncs, nil
}

// Count counts sync attempts matching the filter
func (r *SyncRepository) Count(ctx context.Context, filter SyncFilter) (int64, error) {
	var count int64
	query := applySyncFilter(database.DB.WithContext(ctx).Model(&models.EHRSync{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count sync records: %w", err)
	}
	return count, nil
}

func applySyncFilter(query *gorm.DB, filter SyncFilter) *gorm.DB {
	if filter.ConnectionID != uuid.Nil {
		query = query.Where("connection_id = ?", filter.ConnectionID)
	}
	if filter.RecordID != uuid.Nil {
		query = query.Where("record_id = ?", filter.RecordID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	return query
}
