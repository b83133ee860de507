package repository

import (
	"context"
	"fmt"

	"github.com/clinscribe/ehr-sync-connector/internal/database"
	"github.com/clinscribe/ehr-sync-connector/internal/models"
	"github.com/google/uuid"
)

// RecordRepository reads clinical records produced by the authoring pipeline.
// The sync engine never writes clinical content.
type RecordRepository struct{}

// NewRecordRepository creates a new clinical record repository
func NewRecordRepository() *RecordRepository {
	return &RecordRepository{}
}

// GetByID retrieves a clinical record by ID
func (r *RecordRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ClinicalRecord, error) {
	var record models.ClinicalRecord
	if err := database.DB.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to get clinical record: %w", err)
	}
	return &record, nil
}
