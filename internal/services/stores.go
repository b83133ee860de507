package services

import (
	"context"
	"net/url"

	"github.com/clinscribe/ehr-sync-connector/internal/fhir"
	"github.com/clinscribe/ehr-sync-connector/internal/models"
	"github.com/clinscribe/ehr-sync-connector/internal/repository"
	"github.com/google/uuid"
)

// ConnectionStore is the persistence surface the lifecycle manager needs
type ConnectionStore interface {
	Create(ctx context.Context, conn *models.EHRConnection) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.EHRConnection, error)
	List(ctx context.Context, limit, offset int, activeOnly bool) ([]models.EHRConnection, error)
	Count(ctx context.Context, activeOnly bool) (int64, error)
	Update(ctx context.Context, conn *models.EHRConnection) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// SyncStore is the persistence surface for sync attempts
type SyncStore interface {
	Create(ctx context.Context, sync *models.EHRSync) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.EHRSync, error)
	Complete(ctx context.Context, id uuid.UUID, status models.SyncStatus, responseData map[string]interface{}, errorMessage string) error
	List(ctx context.Context, filter repository.SyncFilter, limit, offset int) ([]models.EHRSync, error)
	Count(ctx context.Context, filter repository.SyncFilter) (int64, error)
}

// AuditStore is the append-only write ledger
type AuditStore interface {
	Create(ctx context.Context, entry *models.AuditEntry) error
	List(ctx context.Context, filter repository.SyncFilter, limit, offset int) ([]models.AuditEntry, error)
	Count(ctx context.Context, filter repository.SyncFilter) (int64, error)
}

// RecordStore reads clinical records
type RecordStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.ClinicalRecord, error)
}

// FHIRClient is the wire surface the services drive
type FHIRClient interface {
	BuildAuthorizationURL(redirectURI string, scopes []string, state string) string
	ExchangeCode(ctx context.Context, code, redirectURI string) (*fhir.TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*fhir.TokenResponse, error)
	CreateResource(ctx context.Context, resourceType string, body map[string]interface{}) (map[string]interface{}, error)
	SearchResource(ctx context.Context, resourceType string, query url.Values) (map[string]interface{}, error)
	CapabilityStatement(ctx context.Context) (map[string]interface{}, error)
	SetAccessToken(token string)
}

// ClientFactory builds a wire client for one connection
type ClientFactory func(conn *models.EHRConnection) FHIRClient

// DefaultClientFactory builds the production HTTP client
func DefaultClientFactory(conn *models.EHRConnection) FHIRClient {
	return fhir.NewClient(fhir.Config{
		BaseURL:      conn.BaseURL,
		ClientID:     conn.ClientID,
		ClientSecret: conn.ClientSecret,
		FHIRVersion:  conn.FHIRVersion,
	})
}
