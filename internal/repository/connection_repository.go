package repository

import (
	"context"
	"fmt"

	"github.com/clinscribe/ehr-sync-connector/internal/database"
	"github.com/clinscribe/ehr-sync-connector/internal/models"
	"github.com/google/uuid"
)

// ConnectionRepository handles EHR connection database operations
type ConnectionRepository struct{}

// NewConnectionRepository creates a new connection repository
func NewConnectionRepository() *ConnectionRepository {
	return &ConnectionRepository{}
}

// Create creates a new EHR connection
func (r *ConnectionRepository) Create(ctx context.Context, conn *models.EHRConnection) error {
	if err := database.DB.WithContext(ctx).Create(conn).Error; err != nil {
		return fmt.Errorf("failed to create EHR connection: %w", err)
	}
	return nil
}

// GetByID retrieves a connection by ID
func (r *ConnectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.EHRConnection, error) {
	var conn models.EHRConnection
	if err := database.DB.WithContext(ctx).Where("id = ?", id).First(&conn).Error; err != nil {
		return nil, fmt.Errorf("failed to get EHR connection: %w", err)
	}
	return &conn, nil
}

// List retrieves connections ordered by creation time, newest first
func (r *ConnectionRepository) List(ctx context.Context, limit, offset int, activeOnly bool) ([]models.EHRConnection, error) {
	var conns []models.EHRConnection
	query := database.DB.WithContext(ctx).Order("created_at DESC")

	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&conns).Error; err != nil {
		return nil, fmt.Errorf("failed to list EHR connections: %w", err)
	}
	return conns, nil
}

// Count counts connections
func (r *ConnectionRepository) Count(ctx context.Context, activeOnly bool) (int64, error) {
	var count int64
	query := database.DB.WithContext(ctx).Model(&models.EHRConnection{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count EHR connections: %w", err)
	}
	return count, nil
}

// Update persists the full connection row
func (r *ConnectionRepository) Update(ctx context.Context, conn *models.EHRConnection) error {
	if err := database.DB.WithContext(ctx).Save(conn).Error; err != nil {
		return fmt.Errorf("failed to update EHR connection: %w", err)
	}
	return nil
}

// Deactivate marks a connection inactive. Idempotent.
func (r *ConnectionRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := database.DB.WithContext(ctx).
		Model(&models.EHRConnection{}).
		Where("id = ?", id).
		Update("is_active", false).Error; err != nil {
		return fmt.Errorf("failed to deactivate EHR connection: %w", err)
	}
	return nil
}
