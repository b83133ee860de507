package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConnectionStatus represents the authorization state of an EHR connection
type ConnectionStatus string

const (
	StatusUnconfigured         ConnectionStatus = "unconfigured"
	StatusAuthorizationPending ConnectionStatus = "authorization_pending"
	StatusAuthorized           ConnectionStatus = "authorized"
	StatusError                ConnectionStatus = "error"
)

// Vendor keys with dedicated mapping strategies. Anything else maps generically.
const (
	VendorEClinicalWorks = "eclinicalworks"
	VendorGeneric        = "generic"
)

// Vendor metadata key holding the pending OAuth2 state token. Only one
// authorization may be pending per connection at a time.
const MetadataAuthStateKey = "last_auth_state"

// EHRConnection represents one remote EHR credential set
type EHRConnection struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Vendor string    `gorm:"type:varchar(100);not null;index" json:"vendor"`
	Name   string    `gorm:"type:varchar(255);not null" json:"name"`

	// SMART on FHIR endpoint configuration
	BaseURL     string `gorm:"type:varchar(500);not null" json:"base_url"`
	FHIRVersion string `gorm:"type:varchar(20);default:'R4'" json:"fhir_version"`

	// OAuth2 credentials and tokens
	ClientID       string    `gorm:"type:varchar(255)" json:"client_id,omitempty"`
	ClientSecret   string    `gorm:"type:varchar(500)" json:"-"`
	AccessToken    string    `gorm:"type:text" json:"-"`
	RefreshToken   string    `gorm:"type:text" json:"-"`
	TokenExpiresAt time.Time `json:"token_expires_at,omitempty"`
	Scopes         []string  `gorm:"type:jsonb;serializer:json" json:"scopes,omitempty"`

	// Practice/clinic the connection belongs to on the remote side
	PracticeID   string `gorm:"type:varchar(255)" json:"practice_id,omitempty"`
	PracticeName string `gorm:"type:varchar(255)" json:"practice_name,omitempty"`

	Status   ConnectionStatus `gorm:"type:varchar(50);not null;default:'unconfigured';index" json:"status"`
	IsActive bool             `gorm:"default:true;index" json:"is_active"`

	LastSyncAt time.Time `json:"last_sync_at,omitempty"`
	LastError  string    `gorm:"type:text" json:"last_error,omitempty"`

	// Vendor-specific metadata, including the pending CSRF state token
	Metadata map[string]string `gorm:"type:jsonb;serializer:json" json:"metadata,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name
func (EHRConnection) TableName() string {
	return "ehr_connections"
}

// BeforeCreate hook
func (c *EHRConnection) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// PendingAuthState returns the stored CSRF state token, if any
func (c *EHRConnection) PendingAuthState() string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata[MetadataAuthStateKey]
}

// ConnectionRequest represents a request to create or update a connection
type ConnectionRequest struct {
	Vendor       string            `json:"vendor"`
	Name         string            `json:"name"`
	BaseURL      string            `json:"base_url"`
	FHIRVersion  string            `json:"fhir_version,omitempty"`
	ClientID     string            `json:"client_id,omitempty"`
	ClientSecret string            `json:"client_secret,omitempty"`
	PracticeID   string            `json:"practice_id,omitempty"`
	PracticeName string            `json:"practice_name,omitempty"`
	Scopes       []string          `json:"scopes,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// AuthorizationRequest asks for an OAuth2 authorization URL
type AuthorizationRequest struct {
	RedirectURI string   `json:"redirect_uri"`
	Scopes      []string `json:"scopes,omitempty"`
}

// AuthorizationResponse carries the URL the user must visit plus the CSRF state
type AuthorizationResponse struct {
	AuthorizationURL string    `json:"authorization_url"`
	State            string    `json:"state"`
	ConnectionID     uuid.UUID `json:"connection_id"`
}

// CallbackRequest completes the OAuth2 authorization-code flow
type CallbackRequest struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri"`
	State       string `json:"state,omitempty"`
}

// ConnectionListResponse is a paginated connection listing
type ConnectionListResponse struct {
	Total    int64           `json:"total"`
	Items    []EHRConnection `json:"items"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}
