package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clinscribe/ehr-sync-connector/internal/models"
	"github.com/clinscribe/ehr-sync-connector/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// memConnStore is a minimal in-memory ConnectionStore for handler tests
type memConnStore struct {
	conns map[uuid.UUID]*models.EHRConnection
}

func newMemConnStore() *memConnStore {
	return &memConnStore{conns: make(map[uuid.UUID]*models.EHRConnection)}
}

func (m *memConnStore) Create(ctx context.Context, conn *models.EHRConnection) error {
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}
	m.conns[conn.ID] = conn
	return nil
}

func (m *memConnStore) GetByID(ctx context.Context, id uuid.UUID) (*models.EHRConnection, error) {
	conn, ok := m.conns[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *conn
	return &copied, nil
}

func (m *memConnStore) List(ctx context.Context, limit, offset int, activeOnly bool) ([]models.EHRConnection, error) {
	var out []models.EHRConnection
	for _, c := range m.conns {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *memConnStore) Count(ctx context.Context, activeOnly bool) (int64, error) {
	conns, _ := m.List(ctx, 0, 0, activeOnly)
	return int64(len(conns)), nil
}

func (m *memConnStore) Update(ctx context.Context, conn *models.EHRConnection) error {
	copied := *conn
	m.conns[conn.ID] = &copied
	return nil
}

func (m *memConnStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	if conn, ok := m.conns[id]; ok {
		conn.IsActive = false
	}
	return nil
}

func newConnectionRouter(store *memConnStore) http.Handler {
	svc := services.NewConnectionService(store, nil)
	handler := NewConnectionHandler(svc)

	r := chi.NewRouter()
	r.Post("/connections", handler.Create)
	r.Get("/connections", handler.List)
	r.Get("/connections/{id}", handler.Get)
	r.Put("/connections/{id}", handler.Update)
	r.Delete("/connections/{id}", handler.Deactivate)
	r.Post("/connections/{id}/authorize", handler.Authorize)
	r.Post("/connections/{id}/callback", handler.Callback)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateConnectionHandler(t *testing.T) {
	store := newMemConnStore()
	router := newConnectionRouter(store)

	rec := doJSON(t, router, http.MethodPost, "/connections", models.ConnectionRequest{
		Vendor:   "eclinicalworks",
		Name:     "County Hospital",
		BaseURL:  "https://fhir.example.com/r4",
		ClientID: "client-1",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var conn models.EHRConnection
	if err := json.Unmarshal(rec.Body.Bytes(), &conn); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if conn.ID == uuid.Nil {
		t.Error("Expected an assigned connection id")
	}
	if conn.Status != models.StatusUnconfigured {
		t.Errorf("Expected unconfigured status, got %s", conn.Status)
	}
}

func TestCreateConnectionHandlerValidation(t *testing.T) {
	router := newConnectionRouter(newMemConnStore())

	rec := doJSON(t, router, http.MethodPost, "/connections", models.ConnectionRequest{Name: "No vendor"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing fields, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/connections", bytes.NewBufferString("{not json"))
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed body, got %d", rec2.Code)
	}
}

func TestGetConnectionHandlerNotFound(t *testing.T) {
	router := newConnectionRouter(newMemConnStore())

	rec := doJSON(t, router, http.MethodGet, "/connections/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown connection, got %d", rec.Code)
	}
}

func TestGetConnectionHandlerBadID(t *testing.T) {
	router := newConnectionRouter(newMemConnStore())

	rec := doJSON(t, router, http.MethodGet, "/connections/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed id, got %d", rec.Code)
	}
}

func TestAuthorizeHandler(t *testing.T) {
	store := newMemConnStore()
	conn := &models.EHRConnection{
		Vendor:   "generic",
		ClientID: "client-1",
		BaseURL:  "https://fhir.example.com/r4",
		IsActive: true,
	}
	store.Create(context.Background(), conn)
	router := newConnectionRouter(store)

	rec := doJSON(t, router, http.MethodPost, "/connections/"+conn.ID.String()+"/authorize", models.AuthorizationRequest{
		RedirectURI: "https://app.example.com/callback",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp models.AuthorizationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.State == "" {
		t.Error("Expected a state token")
	}
	if resp.AuthorizationURL == "" {
		t.Error("Expected an authorization URL")
	}
}

func TestAuthorizeHandlerMissingRedirectURI(t *testing.T) {
	store := newMemConnStore()
	conn := &models.EHRConnection{Vendor: "generic", ClientID: "client-1", IsActive: true}
	store.Create(context.Background(), conn)
	router := newConnectionRouter(store)

	rec := doJSON(t, router, http.MethodPost, "/connections/"+conn.ID.String()+"/authorize", models.AuthorizationRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing redirect_uri, got %d", rec.Code)
	}
}

func TestAuthorizeHandlerWithoutCredentials(t *testing.T) {
	store := newMemConnStore()
	conn := &models.EHRConnection{Vendor: "generic", IsActive: true}
	store.Create(context.Background(), conn)
	router := newConnectionRouter(store)

	rec := doJSON(t, router, http.MethodPost, "/connections/"+conn.ID.String()+"/authorize", models.AuthorizationRequest{
		RedirectURI: "https://app.example.com/callback",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing client credentials, got %d", rec.Code)
	}
}

func TestCallbackHandlerValidation(t *testing.T) {
	store := newMemConnStore()
	conn := &models.EHRConnection{Vendor: "generic", ClientID: "client-1", IsActive: true}
	store.Create(context.Background(), conn)
	router := newConnectionRouter(store)

	rec := doJSON(t, router, http.MethodPost, "/connections/"+conn.ID.String()+"/callback", models.CallbackRequest{State: "only-state"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing code, got %d", rec.Code)
	}
}

func TestDeactivateConnectionHandler(t *testing.T) {
	store := newMemConnStore()
	conn := &models.EHRConnection{Vendor: "generic", Name: "x", BaseURL: "https://b", IsActive: true}
	store.Create(context.Background(), conn)
	router := newConnectionRouter(store)

	rec := doJSON(t, router, http.MethodDelete, "/connections/"+conn.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if store.conns[conn.ID].IsActive {
		t.Error("Expected connection to be deactivated")
	}
}

func TestListConnectionsHandler(t *testing.T) {
	store := newMemConnStore()
	store.Create(context.Background(), &models.EHRConnection{Vendor: "generic", Name: "a", BaseURL: "https://a", IsActive: true})
	store.Create(context.Background(), &models.EHRConnection{Vendor: "generic", Name: "b", BaseURL: "https://b", IsActive: false})
	router := newConnectionRouter(store)

	rec := doJSON(t, router, http.MethodGet, "/connections?active_only=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp models.ConnectionListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("Expected 1 active connection, got %d", resp.Total)
	}
}
