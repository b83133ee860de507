package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SyncStatus represents the state of a synchronization attempt
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailed  SyncStatus = "failed"
)

// SyncType identifies which clinical artifact a sub-operation pushes
type SyncType string

const (
	SyncTypeDocument  SyncType = "document"
	SyncTypeDiagnosis SyncType = "diagnosis"
	SyncTypeProcedure SyncType = "procedure"
	SyncTypeFull      SyncType = "full_sync"
)

// EHRSync represents one synchronization attempt against a remote EHR
type EHRSync struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ConnectionID uuid.UUID `gorm:"type:uuid;not null;index" json:"connection_id"`
	RecordID     uuid.UUID `gorm:"type:uuid;index" json:"record_id,omitempty"`

	SyncType         SyncType `gorm:"type:varchar(50);not null" json:"sync_type"`
	FHIRResourceType string   `gorm:"type:varchar(100)" json:"fhir_resource_type,omitempty"`
	FHIRResourceID   string   `gorm:"type:varchar(255)" json:"fhir_resource_id,omitempty"`

	Status       SyncStatus `gorm:"type:varchar(50);not null;default:'pending';index" json:"status"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`

	RequestData  map[string]interface{} `gorm:"type:jsonb;serializer:json" json:"request_data,omitempty"`
	ResponseData map[string]interface{} `gorm:"type:jsonb;serializer:json" json:"response_data,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	SyncedAt  time.Time `json:"synced_at,omitempty"`
}

// TableName overrides the table name
func (EHRSync) TableName() string {
	return "ehr_syncs"
}

// BeforeCreate hook
func (s *EHRSync) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// AuditEntry records a single successful write to a remote EHR. Rows are
// append-only: they carry clinician accountability and are never mutated.
type AuditEntry struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ConnectionID uuid.UUID `gorm:"type:uuid;not null;index" json:"connection_id"`
	RecordID     uuid.UUID `gorm:"type:uuid;index" json:"record_id,omitempty"`
	DoctorID     uuid.UUID `gorm:"type:uuid;index" json:"doctor_id,omitempty"`

	FHIRResourceType string                 `gorm:"type:varchar(100)" json:"fhir_resource_type,omitempty"`
	FHIRResourceID   string                 `gorm:"type:varchar(255)" json:"fhir_resource_id,omitempty"`
	DataWritten      map[string]interface{} `gorm:"type:jsonb;serializer:json" json:"data_written"`

	DoctorApproved bool `gorm:"default:false" json:"doctor_approved"`
	AIAssisted     bool `gorm:"default:false" json:"ai_assisted"`

	WrittenAt time.Time `gorm:"index" json:"written_at"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the table name
func (AuditEntry) TableName() string {
	return "ehr_audit_entries"
}

// BeforeCreate hook
func (a *AuditEntry) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.WrittenAt.IsZero() {
		a.WrittenAt = time.Now().UTC()
	}
	return nil
}

// SyncRequest asks the orchestrator to push a clinical record to a connection
type SyncRequest struct {
	RecordID        uuid.UUID  `json:"record_id"`
	RemotePatientID string     `json:"patient_id"`
	SyncTypes       []SyncType `json:"sync_types,omitempty"`
}

// ResourceOutcome is the result of a single remote resource creation
type ResourceOutcome struct {
	SyncType     SyncType               `json:"sync_type"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   string                 `json:"resource_id,omitempty"`
	Success      bool                   `json:"success"`
	Error        string                 `json:"error,omitempty"`
	Resource     map[string]interface{} `json:"resource,omitempty"`
}

// SyncResponse aggregates the outcome of one orchestrated sync
type SyncResponse struct {
	Success          bool              `json:"success"`
	Message          string            `json:"message"`
	SyncID           uuid.UUID         `json:"sync_id"`
	ResourcesCreated []ResourceOutcome `json:"resources_created"`
}

// SyncListResponse is a paginated sync listing
type SyncListResponse struct {
	Total    int64     `json:"total"`
	Items    []EHRSync `json:"items"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}

// AuditListResponse is a paginated audit ledger listing
type AuditListResponse struct {
	Total    int64        `json:"total"`
	Items    []AuditEntry `json:"items"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}
