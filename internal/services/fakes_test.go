package services

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/clinscribe/ehr-sync-connector/internal/fhir"
	"github.com/clinscribe/ehr-sync-connector/internal/models"
	"github.com/clinscribe/ehr-sync-connector/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// fakeConnectionStore keeps connections in memory
type fakeConnectionStore struct {
	mu    sync.Mutex
	conns map[uuid.UUID]*models.EHRConnection
}

func newFakeConnectionStore(conns ...*models.EHRConnection) *fakeConnectionStore {
	store := &fakeConnectionStore{conns: make(map[uuid.UUID]*models.EHRConnection)}
	for _, c := range conns {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		store.conns[c.ID] = c
	}
	return store
}

func (f *fakeConnectionStore) Create(ctx context.Context, conn *models.EHRConnection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}
	f.conns[conn.ID] = conn
	return nil
}

func (f *fakeConnectionStore) GetByID(ctx context.Context, id uuid.UUID) (*models.EHRConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conn, ok := f.conns[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *conn
	return &copied, nil
}

func (f *fakeConnectionStore) List(ctx context.Context, limit, offset int, activeOnly bool) ([]models.EHRConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EHRConnection
	for _, c := range f.conns {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeConnectionStore) Count(ctx context.Context, activeOnly bool) (int64, error) {
	conns, _ := f.List(ctx, 0, 0, activeOnly)
	return int64(len(conns)), nil
}

func (f *fakeConnectionStore) Update(ctx context.Context, conn *models.EHRConnection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *conn
	f.conns[conn.ID] = &copied
	return nil
}

func (f *fakeConnectionStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conn, ok := f.conns[id]; ok {
		conn.IsActive = false
	}
	return nil
}

func (f *fakeConnectionStore) stored(id uuid.UUID) *models.EHRConnection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[id]
}

// fakeSyncStore records sync rows and Complete calls
type fakeSyncStore struct {
	mu       sync.Mutex
	syncs    map[uuid.UUID]*models.EHRSync
	statuses map[uuid.UUID]models.SyncStatus
	errors   map[uuid.UUID]string
}

func newFakeSyncStore() *fakeSyncStore {
	return &fakeSyncStore{
		syncs:    make(map[uuid.UUID]*models.EHRSync),
		statuses: make(map[uuid.UUID]models.SyncStatus),
		errors:   make(map[uuid.UUID]string),
	}
}

func (f *fakeSyncStore) Create(ctx context.Context, sync *models.EHRSync) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sync.ID == uuid.Nil {
		sync.ID = uuid.New()
	}
	f.syncs[sync.ID] = sync
	f.statuses[sync.ID] = models.SyncStatusPending
	return nil
}

func (f *fakeSyncStore) GetByID(ctx context.Context, id uuid.UUID) (*models.EHRSync, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sync, ok := f.syncs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return sync, nil
}

func (f *fakeSyncStore) Complete(ctx context.Context, id uuid.UUID, status models.SyncStatus, responseData map[string]interface{}, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statuses[id] != models.SyncStatusPending {
		return nil
	}
	f.statuses[id] = status
	f.errors[id] = errorMessage
	return nil
}

func (f *fakeSyncStore) List(ctx context.Context, filter repository.SyncFilter, limit, offset int) ([]models.EHRSync, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EHRSync
	for _, s := range f.syncs {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeSyncStore) Count(ctx context.Context, filter repository.SyncFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.syncs)), nil
}

func (f *fakeSyncStore) statusOf(id uuid.UUID) models.SyncStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[id]
}

func (f *fakeSyncStore) errorOf(id uuid.UUID) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errors[id]
}

// fakeAuditStore appends entries; can be told to fail
type fakeAuditStore struct {
	mu      sync.Mutex
	entries []models.AuditEntry
	fail    bool
}

func (f *fakeAuditStore) Create(ctx context.Context, entry *models.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("audit store unavailable")
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditStore) List(ctx context.Context, filter repository.SyncFilter, limit, offset int) ([]models.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.AuditEntry(nil), f.entries...), nil
}

func (f *fakeAuditStore) Count(ctx context.Context, filter repository.SyncFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.entries)), nil
}

// fakeRecordStore serves a single record
type fakeRecordStore struct {
	record *models.ClinicalRecord
}

func (f *fakeRecordStore) GetByID(ctx context.Context, id uuid.UUID) (*models.ClinicalRecord, error) {
	if f.record == nil || f.record.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return f.record, nil
}

// createCall captures one CreateResource invocation
type createCall struct {
	ResourceType string
	Body         map[string]interface{}
}

// fakeFHIRClient scripts wire behavior per resource type
type fakeFHIRClient struct {
	mu sync.Mutex

	createCalls   []createCall
	createErrs    map[string]error // keyed by resource type
	nextID        int
	exchangeToken *fhir.TokenResponse
	exchangeErr   error
	exchangeCalls int
	refreshToken  *fhir.TokenResponse
	refreshErr    error
	refreshCalls  int
	searchBundle  map[string]interface{}
	capability    map[string]interface{}
	accessTokens  []string
}

func (f *fakeFHIRClient) BuildAuthorizationURL(redirectURI string, scopes []string, state string) string {
	return "https://ehr.example.com/authorize?state=" + state
}

func (f *fakeFHIRClient) ExchangeCode(ctx context.Context, code, redirectURI string) (*fhir.TokenResponse, error) {
	f.mu.Lock()
	f.exchangeCalls++
	f.mu.Unlock()
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.exchangeToken, nil
}

func (f *fakeFHIRClient) RefreshToken(ctx context.Context, refreshToken string) (*fhir.TokenResponse, error) {
	f.mu.Lock()
	f.refreshCalls++
	f.mu.Unlock()
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshToken, nil
}

func (f *fakeFHIRClient) CreateResource(ctx context.Context, resourceType string, body map[string]interface{}) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls = append(f.createCalls, createCall{ResourceType: resourceType, Body: body})
	if err, ok := f.createErrs[resourceType]; ok {
		return nil, err
	}
	f.nextID++
	return map[string]interface{}{
		"resourceType": resourceType,
		"id":           fmt.Sprintf("%s-%d", resourceType, f.nextID),
	}, nil
}

func (f *fakeFHIRClient) SearchResource(ctx context.Context, resourceType string, query url.Values) (map[string]interface{}, error) {
	return f.searchBundle, nil
}

func (f *fakeFHIRClient) CapabilityStatement(ctx context.Context) (map[string]interface{}, error) {
	return f.capability, nil
}

func (f *fakeFHIRClient) SetAccessToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accessTokens = append(f.accessTokens, token)
}

func (f *fakeFHIRClient) calls() []createCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]createCall(nil), f.createCalls...)
}

func factoryFor(client FHIRClient) ClientFactory {
	return func(conn *models.EHRConnection) FHIRClient { return client }
}

// staticTokens satisfies TokenProvider without touching the wire
type staticTokens struct {
	token string
	err   error
	calls int
}

func (s *staticTokens) EnsureValidAccessToken(ctx context.Context, id uuid.UUID) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.token, nil
}
