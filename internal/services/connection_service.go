package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/clinscribe/ehr-sync-connector/internal/fhir"
	"github.com/clinscribe/ehr-sync-connector/internal/metrics"
	"github.com/clinscribe/ehr-sync-connector/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Tokens within this window of expiry are refreshed proactively
const tokenRefreshWindow = 5 * time.Minute

// Fallback token lifetime when the server omits expires_in
const defaultTokenLifetime = time.Hour

var defaultScopes = []string{"patient/*.read", "user/*.write"}

// ConnectionService owns the EHR connection lifecycle: CRUD plus the
// SMART on FHIR authorization state machine
type ConnectionService struct {
	conns      ConnectionStore
	newClient  ClientFactory
	refreshMu  sync.Mutex
	refreshers map[uuid.UUID]*sync.Mutex
}

// NewConnectionService creates a new connection lifecycle manager
func NewConnectionService(conns ConnectionStore, factory ClientFactory) *ConnectionService {
	if factory == nil {
		factory = DefaultClientFactory
	}
	return &ConnectionService{
		conns:      conns,
		newClient:  factory,
		refreshers: make(map[uuid.UUID]*sync.Mutex),
	}
}

// CreateConnection registers a new remote EHR credential set
func (s *ConnectionService) CreateConnection(ctx context.Context, req *models.ConnectionRequest) (*models.EHRConnection, error) {
	conn := &models.EHRConnection{
		Vendor:       req.Vendor,
		Name:         req.Name,
		BaseURL:      req.BaseURL,
		FHIRVersion:  req.FHIRVersion,
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		PracticeID:   req.PracticeID,
		PracticeName: req.PracticeName,
		Scopes:       req.Scopes,
		Metadata:     req.Metadata,
		Status:       models.StatusUnconfigured,
		IsActive:     true,
	}
	if conn.FHIRVersion == "" {
		conn.FHIRVersion = "R4"
	}

	if err := s.conns.Create(ctx, conn); err != nil {
		return nil, err
	}

	log.Info().
		Str("connection_id", conn.ID.String()).
		Str("vendor", conn.Vendor).
		Msg("Created EHR connection")
	return conn, nil
}

// GetConnection retrieves a connection by ID
func (s *ConnectionService) GetConnection(ctx context.Context, id uuid.UUID) (*models.EHRConnection, error) {
	return s.conns.GetByID(ctx, id)
}

// ListConnections retrieves a page of connections plus the total count
func (s *ConnectionService) ListConnections(ctx context.Context, limit, offset int, activeOnly bool) ([]models.EHRConnection, int64, error) {
	conns, err := s.conns.List(ctx, limit, offset, activeOnly)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.conns.Count(ctx, activeOnly)
	if err != nil {
		return nil, 0, err
	}
	return conns, total, nil
}

// UpdateConnection updates the operator-editable fields of a connection
func (s *ConnectionService) UpdateConnection(ctx context.Context, id uuid.UUID, req *models.ConnectionRequest) (*models.EHRConnection, error) {
	conn, err := s.conns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		conn.Name = req.Name
	}
	if req.BaseURL != "" {
		conn.BaseURL = req.BaseURL
	}
	if req.Vendor != "" {
		conn.Vendor = req.Vendor
	}
	if req.FHIRVersion != "" {
		conn.FHIRVersion = req.FHIRVersion
	}
	if req.ClientID != "" {
		conn.ClientID = req.ClientID
	}
	if req.ClientSecret != "" {
		conn.ClientSecret = req.ClientSecret
	}
	if req.PracticeID != "" {
		conn.PracticeID = req.PracticeID
	}
	if req.PracticeName != "" {
		conn.PracticeName = req.PracticeName
	}
	if req.Scopes != nil {
		conn.Scopes = req.Scopes
	}
	if req.Metadata != nil {
		conn.Metadata = req.Metadata
	}

	if err := s.conns.Update(ctx, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// DeactivateConnection marks a connection inactive. Terminal for writes;
// idempotent.
func (s *ConnectionService) DeactivateConnection(ctx context.Context, id uuid.UUID) error {
	if err := s.conns.Deactivate(ctx, id); err != nil {
		return err
	}

	// Deactivated connections take no more syncs, so their refresh lock can go
	s.refreshMu.Lock()
	delete(s.refreshers, id)
	s.refreshMu.Unlock()

	log.Info().Str("connection_id", id.String()).Msg("Deactivated EHR connection")
	return nil
}

// IssueAuthorization generates the OAuth2 authorization URL plus a fresh CSRF
// state token. Any previously pending state is overwritten: only one
// authorization may be pending per connection.
func (s *ConnectionService) IssueAuthorization(ctx context.Context, id uuid.UUID, redirectURI string, scopes []string) (*models.AuthorizationResponse, error) {
	conn, err := s.conns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if conn.ClientID == "" {
		return nil, &MissingCredentialsError{ConnectionID: id}
	}

	if len(scopes) == 0 {
		scopes = conn.Scopes
	}
	if len(scopes) == 0 {
		scopes = defaultScopes
	}

	state, err := newStateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	if conn.Metadata == nil {
		conn.Metadata = make(map[string]string)
	}
	conn.Metadata[models.MetadataAuthStateKey] = state
	conn.Status = models.StatusAuthorizationPending

	if err := s.conns.Update(ctx, conn); err != nil {
		return nil, err
	}

	authURL := s.newClient(conn).BuildAuthorizationURL(redirectURI, scopes, state)

	log.Info().
		Str("connection_id", id.String()).
		Str("vendor", conn.Vendor).
		Msg("Issued EHR authorization URL")

	return &models.AuthorizationResponse{
		AuthorizationURL: authURL,
		State:            state,
		ConnectionID:     id,
	}, nil
}

// CompleteAuthorization exchanges the authorization code for tokens and
// transitions the connection to authorized. A state mismatch is a hard
// failure: no exchange happens.
func (s *ConnectionService) CompleteAuthorization(ctx context.Context, id uuid.UUID, code, redirectURI, state string) error {
	conn, err := s.conns.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if pending := conn.PendingAuthState(); pending != "" && state != "" && pending != state {
		log.Error().
			Str("connection_id", id.String()).
			Msg("Authorization state mismatch, rejecting callback")
		return &StateMismatchError{ConnectionID: id}
	}

	token, err := s.newClient(conn).ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		conn.LastError = err.Error()
		conn.Status = models.StatusError
		if updateErr := s.conns.Update(ctx, conn); updateErr != nil {
			log.Error().Err(updateErr).Str("connection_id", id.String()).Msg("Failed to record authorization error")
		}
		return err
	}

	applyTokens(conn, token)
	conn.Status = models.StatusAuthorized
	conn.LastError = ""
	delete(conn.Metadata, models.MetadataAuthStateKey)

	if err := s.conns.Update(ctx, conn); err != nil {
		return err
	}

	log.Info().Str("connection_id", id.String()).Msg("EHR connection authorized")
	return nil
}

// EnsureValidAccessToken returns a usable access token, refreshing it when it
// is within the proactive window of expiry. Refresh is serialized per
// connection so concurrent syncs cannot race to refresh the same token twice.
func (s *ConnectionService) EnsureValidAccessToken(ctx context.Context, id uuid.UUID) (string, error) {
	mu := s.refresherFor(id)
	mu.Lock()
	defer mu.Unlock()

	// Re-read under the lock: a concurrent caller may have refreshed already
	conn, err := s.conns.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	if conn.AccessToken == "" {
		return "", &ConnectionNotReadyError{ConnectionID: id, Reason: "no access token, complete authorization first"}
	}

	// An unknown expiry is treated as valid; the remote will reject if not
	if conn.TokenExpiresAt.IsZero() || time.Until(conn.TokenExpiresAt) > tokenRefreshWindow {
		return conn.AccessToken, nil
	}

	if conn.RefreshToken == "" {
		err := fmt.Errorf("access token expiring and no refresh token available for connection %s", id)
		conn.LastError = err.Error()
		conn.Status = models.StatusError
		if updateErr := s.conns.Update(ctx, conn); updateErr != nil {
			log.Error().Err(updateErr).Str("connection_id", id.String()).Msg("Failed to record token error")
		}
		return "", err
	}

	token, err := s.newClient(conn).RefreshToken(ctx, conn.RefreshToken)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		conn.LastError = err.Error()
		conn.Status = models.StatusError
		if updateErr := s.conns.Update(ctx, conn); updateErr != nil {
			log.Error().Err(updateErr).Str("connection_id", id.String()).Msg("Failed to record refresh error")
		}
		return "", err
	}

	applyTokens(conn, token)
	conn.Status = models.StatusAuthorized
	conn.LastError = ""

	if err := s.conns.Update(ctx, conn); err != nil {
		return "", err
	}

	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	log.Info().Str("connection_id", id.String()).Msg("Refreshed EHR access token")
	return conn.AccessToken, nil
}

func (s *ConnectionService) refresherFor(id uuid.UUID) *sync.Mutex {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	mu, ok := s.refreshers[id]
	if !ok {
		mu = &sync.Mutex{}
		s.refreshers[id] = mu
	}
	return mu
}

func applyTokens(conn *models.EHRConnection, token *fhir.TokenResponse) {
	conn.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		conn.RefreshToken = token.RefreshToken
	}
	if token.ExpiresIn > 0 {
		conn.TokenExpiresAt = time.Now().UTC().Add(time.Duration(token.ExpiresIn) * time.Second)
	} else {
		conn.TokenExpiresAt = time.Now().UTC().Add(defaultTokenLifetime)
	}
}

// newStateToken returns a 256-bit random token, base64url encoded
func newStateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
