package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DiagnosisCode is one suggested ICD-10-CM code on a clinical record
type DiagnosisCode struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence,omitempty"`
}

// ProcedureCode is one suggested CPT code on a clinical record
type ProcedureCode struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Modifier    string  `json:"modifier,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}

// ClinicalRecord holds the locally produced clinical content the orchestrator
// maps into FHIR resources. The transcription and authoring pipelines own the
// write path; this engine only reads.
type ClinicalRecord struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	DoctorID uuid.UUID `gorm:"type:uuid;index" json:"doctor_id,omitempty"`

	Transcript string `gorm:"type:text" json:"transcript,omitempty"`
	Note       string `gorm:"type:text" json:"note,omitempty"`

	DiagnosisCodes []DiagnosisCode `gorm:"type:jsonb;serializer:json" json:"diagnosis_codes,omitempty"`
	ProcedureCodes []ProcedureCode `gorm:"type:jsonb;serializer:json" json:"procedure_codes,omitempty"`

	DoctorApproved   bool      `gorm:"default:false" json:"doctor_approved"`
	DoctorApprovedAt time.Time `json:"doctor_approved_at,omitempty"`

	// transcribed, note_generated, codes_suggested
	WorkflowStatus string `gorm:"type:varchar(50);default:'transcribed'" json:"workflow_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (ClinicalRecord) TableName() string {
	return "clinical_records"
}

// BeforeCreate hook
func (r *ClinicalRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// RemotePatient is a summary of a patient found in the remote EHR
type RemotePatient struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name,omitempty"`
	BirthDate   string                 `json:"birthdate,omitempty"`
	Gender      string                 `json:"gender,omitempty"`
	Identifiers []PatientIdentifier    `json:"identifiers,omitempty"`
	Resource    map[string]interface{} `json:"fhir_resource,omitempty"`
}

// PatientIdentifier is one identifier (MRN, SSN, ...) on a remote patient
type PatientIdentifier struct {
	System string `json:"system"`
	Value  string `json:"value"`
}

// PatientSearchRequest holds remote patient search criteria
type PatientSearchRequest struct {
	Name       string `json:"name,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	BirthDate  string `json:"birthdate,omitempty"`
}
