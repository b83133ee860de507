package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/clinscribe/ehr-sync-connector/internal/cache"
	"github.com/clinscribe/ehr-sync-connector/internal/metrics"
	"github.com/clinscribe/ehr-sync-connector/internal/models"
	"github.com/clinscribe/ehr-sync-connector/internal/repository"
	"github.com/clinscribe/ehr-sync-connector/internal/vendors"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	patientSearchTTL = 5 * time.Minute
	capabilitiesTTL  = time.Hour
)

// TokenProvider yields a usable access token for a connection, refreshing
// behind a per-connection lock when needed
type TokenProvider interface {
	EnsureValidAccessToken(ctx context.Context, id uuid.UUID) (string, error)
}

// SyncService orchestrates pushes of clinical records into remote EHRs and
// serves the audit ledger's read side
type SyncService struct {
	conns     ConnectionStore
	syncs     SyncStore
	audits    AuditStore
	records   RecordStore
	tokens    TokenProvider
	cache     cache.Cache
	newClient ClientFactory
}

// NewSyncService creates a new sync orchestrator
func NewSyncService(
	conns ConnectionStore,
	syncs SyncStore,
	audits AuditStore,
	records RecordStore,
	tokens TokenProvider,
	cacheImpl cache.Cache,
	factory ClientFactory,
) *SyncService {
	if factory == nil {
		factory = DefaultClientFactory
	}
	return &SyncService{
		conns:     conns,
		syncs:     syncs,
		audits:    audits,
		records:   records,
		tokens:    tokens,
		cache:     cacheImpl,
		newClient: factory,
	}
}

// Sync pushes the requested subset of a clinical record to the remote EHR.
// Sub-operations run in a fixed order (document, diagnoses, procedures) and
// are best-effort: one failure does not abort the siblings.
func (s *SyncService) Sync(ctx context.Context, connectionID uuid.UUID, req *models.SyncRequest) (*models.SyncResponse, error) {
	conn, err := s.conns.GetByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	if !conn.IsActive {
		return nil, &ConnectionNotReadyError{ConnectionID: connectionID, Reason: "connection is deactivated"}
	}
	if conn.AccessToken == "" {
		return nil, &ConnectionNotReadyError{ConnectionID: connectionID, Reason: "connection not authorized, complete OAuth2 authorization first"}
	}

	record, err := s.records.GetByID(ctx, req.RecordID)
	if err != nil {
		return nil, err
	}

	syncTypes := req.SyncTypes
	if len(syncTypes) == 0 {
		syncTypes = []models.SyncType{models.SyncTypeDocument, models.SyncTypeDiagnosis, models.SyncTypeProcedure}
	}

	// Fail fast before any remote call
	if err := validateRecord(record, syncTypes); err != nil {
		return nil, err
	}

	syncType := models.SyncTypeFull
	if len(syncTypes) == 1 {
		syncType = syncTypes[0]
	}

	sync := &models.EHRSync{
		ConnectionID: connectionID,
		RecordID:     record.ID,
		SyncType:     syncType,
		Status:       models.SyncStatusPending,
		RequestData: map[string]interface{}{
			"patient_id": req.RemotePatientID,
			"sync_types": syncTypes,
		},
	}
	if err := s.syncs.Create(ctx, sync); err != nil {
		return nil, err
	}

	token, err := s.tokens.EnsureValidAccessToken(ctx, connectionID)
	if err != nil {
		s.finishSync(ctx, conn, sync, nil, err.Error())
		return nil, err
	}

	client := s.newClient(conn)
	client.SetAccessToken(token)
	strategy := vendors.ForVendor(conn.Vendor)

	outcomes := s.pushResources(ctx, client, strategy, record, req.RemotePatientID, syncTypes)

	firstErr := ""
	succeeded := 0
	for _, o := range outcomes {
		if o.Success {
			succeeded++
			s.appendAudit(ctx, conn, record, o)
		} else if firstErr == "" {
			firstErr = o.Error
		}
	}

	s.finishSync(ctx, conn, sync, outcomes, firstErr)

	overall := firstErr == ""
	status := "failed"
	if overall {
		status = "success"
	}
	metrics.SyncAttempts.WithLabelValues(status).Inc()

	log.Info().
		Str("connection_id", connectionID.String()).
		Str("sync_id", sync.ID.String()).
		Int("resources_created", succeeded).
		Bool("success", overall).
		Msg("EHR sync completed")

	message := "Clinical record synced successfully to EHR"
	if !overall {
		message = "EHR sync completed with errors: " + firstErr
	}

	return &models.SyncResponse{
		Success:          overall,
		Message:          message,
		SyncID:           sync.ID,
		ResourcesCreated: outcomes,
	}, nil
}

// pushResources executes the fan-out in deterministic order
func (s *SyncService) pushResources(
	ctx context.Context,
	client FHIRClient,
	strategy vendors.Strategy,
	record *models.ClinicalRecord,
	patientID string,
	syncTypes []models.SyncType,
) []models.ResourceOutcome {
	var outcomes []models.ResourceOutcome

	if hasType(syncTypes, models.SyncTypeDocument) {
		body := strategy.MapDocument(record.Note, patientID)
		outcomes = append(outcomes, s.createOne(ctx, client, models.SyncTypeDocument, "DocumentReference", body))
	}

	if hasType(syncTypes, models.SyncTypeDiagnosis) {
		for _, dx := range record.DiagnosisCodes {
			body := strategy.MapCondition(dx, patientID)
			outcomes = append(outcomes, s.createOne(ctx, client, models.SyncTypeDiagnosis, "Condition", body))
		}
	}

	if hasType(syncTypes, models.SyncTypeProcedure) {
		for _, px := range record.ProcedureCodes {
			body := strategy.MapProcedure(px, patientID)
			outcomes = append(outcomes, s.createOne(ctx, client, models.SyncTypeProcedure, "Procedure", body))
		}
	}

	return outcomes
}

func (s *SyncService) createOne(ctx context.Context, client FHIRClient, syncType models.SyncType, resourceType string, body map[string]interface{}) models.ResourceOutcome {
	outcome := models.ResourceOutcome{
		SyncType:     syncType,
		ResourceType: resourceType,
		Resource:     body,
	}

	result, err := client.CreateResource(ctx, resourceType, body)
	if err != nil {
		outcome.Error = err.Error()
		log.Warn().
			Err(err).
			Str("resource_type", resourceType).
			Msg("Remote resource creation failed")
		return outcome
	}

	outcome.Success = true
	if id, ok := result["id"].(string); ok {
		outcome.ResourceID = id
	}
	metrics.ResourcesCreated.WithLabelValues(resourceType).Inc()
	return outcome
}

func (s *SyncService) appendAudit(ctx context.Context, conn *models.EHRConnection, record *models.ClinicalRecord, outcome models.ResourceOutcome) {
	entry := &models.AuditEntry{
		ConnectionID:     conn.ID,
		RecordID:         record.ID,
		DoctorID:         record.DoctorID,
		FHIRResourceType: outcome.ResourceType,
		FHIRResourceID:   outcome.ResourceID,
		DataWritten:      outcome.Resource,
		DoctorApproved:   record.DoctorApproved,
		AIAssisted:       true,
	}
	if err := s.audits.Create(ctx, entry); err != nil {
		// The remote write already happened; losing the audit row is worth
		// an error-level log, not a sync failure.
		log.Error().
			Err(err).
			Str("connection_id", conn.ID.String()).
			Str("resource_id", outcome.ResourceID).
			Msg("Failed to append audit entry")
	}
}

// finishSync moves the pending row to its terminal status and records the
// outcome on the connection
func (s *SyncService) finishSync(ctx context.Context, conn *models.EHRConnection, sync *models.EHRSync, outcomes []models.ResourceOutcome, firstErr string) {
	status := models.SyncStatusSuccess
	if firstErr != "" {
		status = models.SyncStatusFailed
	}

	var responseData map[string]interface{}
	if outcomes != nil {
		responseData = map[string]interface{}{"results": outcomes}
	}

	if err := s.syncs.Complete(ctx, sync.ID, status, responseData, firstErr); err != nil {
		log.Error().Err(err).Str("sync_id", sync.ID.String()).Msg("Failed to finalize sync record")
	}

	// Re-read before writing back: the token refresh may have updated the
	// row since it was loaded, and a stale save would clobber the new tokens
	if fresh, err := s.conns.GetByID(ctx, conn.ID); err == nil {
		conn = fresh
	}

	anySuccess := false
	for _, o := range outcomes {
		if o.Success {
			anySuccess = true
			break
		}
	}

	if anySuccess {
		conn.LastSyncAt = time.Now().UTC()
	}
	if firstErr != "" {
		conn.LastError = firstErr
	} else {
		conn.LastError = ""
	}
	if err := s.conns.Update(ctx, conn); err != nil {
		log.Error().Err(err).Str("connection_id", conn.ID.String()).Msg("Failed to update connection after sync")
	}
}

// SearchRemotePatients queries the remote EHR's Patient endpoint and shapes
// the Bundle into summaries. Results are cached briefly.
func (s *SyncService) SearchRemotePatients(ctx context.Context, connectionID uuid.UUID, req *models.PatientSearchRequest) ([]models.RemotePatient, error) {
	conn, err := s.conns.GetByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if conn.AccessToken == "" {
		return nil, &ConnectionNotReadyError{ConnectionID: connectionID, Reason: "connection not authorized, complete OAuth2 authorization first"}
	}

	query := url.Values{}
	if req.Name != "" {
		query.Set("name", req.Name)
	}
	if req.Identifier != "" {
		query.Set("identifier", req.Identifier)
	}
	if req.BirthDate != "" {
		query.Set("birthdate", req.BirthDate)
	}

	cacheKey := cache.PatientSearchKey(connectionID.String(), query.Encode())
	if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
		var patients []models.RemotePatient
		if err := json.Unmarshal(cached, &patients); err == nil {
			return patients, nil
		}
	}

	token, err := s.tokens.EnsureValidAccessToken(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	client := s.newClient(conn)
	client.SetAccessToken(token)

	bundle, err := client.SearchResource(ctx, "Patient", query)
	if err != nil {
		return nil, fmt.Errorf("patient search failed: %w", err)
	}

	patients := parsePatientBundle(bundle)

	if encoded, err := json.Marshal(patients); err == nil {
		if err := s.cache.Set(ctx, cacheKey, encoded, patientSearchTTL); err != nil {
			log.Warn().Err(err).Msg("Failed to cache patient search results")
		}
	}

	return patients, nil
}

// Capabilities fetches the remote server's capability statement. Diagnostics
// only; cached for an hour.
func (s *SyncService) Capabilities(ctx context.Context, connectionID uuid.UUID) (map[string]interface{}, error) {
	conn, err := s.conns.GetByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	cacheKey := cache.CapabilitiesKey(connectionID.String())
	if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
		var capability map[string]interface{}
		if err := json.Unmarshal(cached, &capability); err == nil {
			return capability, nil
		}
	}

	capability, err := s.newClient(conn).CapabilityStatement(ctx)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(capability); err == nil {
		if err := s.cache.Set(ctx, cacheKey, encoded, capabilitiesTTL); err != nil {
			log.Warn().Err(err).Msg("Failed to cache capability statement")
		}
	}

	return capability, nil
}

// ListSyncs returns a page of sync attempts. Read-only.
func (s *SyncService) ListSyncs(ctx context.Context, filter repository.SyncFilter, limit, offset int) ([]models.EHRSync, int64, error) {
	syncs, err := s.syncs.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.syncs.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return syncs, total, nil
}

// ListAuditEntries returns a page of the write ledger. Read-only.
func (s *SyncService) ListAuditEntries(ctx context.Context, filter repository.SyncFilter, limit, offset int) ([]models.AuditEntry, int64, error) {
	entries, err := s.audits.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.audits.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// validateRecord checks each requested sync type has its prerequisite content
func validateRecord(record *models.ClinicalRecord, syncTypes []models.SyncType) error {
	for _, t := range syncTypes {
		switch t {
		case models.SyncTypeDocument:
			if record.Note == "" {
				return &IncompleteRecordError{RecordID: record.ID, Missing: "a medical note (generate the note before syncing)"}
			}
		case models.SyncTypeDiagnosis:
			if len(record.DiagnosisCodes) == 0 {
				return &IncompleteRecordError{RecordID: record.ID, Missing: "diagnosis codes"}
			}
		case models.SyncTypeProcedure:
			if len(record.ProcedureCodes) == 0 {
				return &IncompleteRecordError{RecordID: record.ID, Missing: "procedure codes"}
			}
		}
	}
	return nil
}

func hasType(types []models.SyncType, t models.SyncType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

// parsePatientBundle extracts patient summaries from a FHIR search Bundle
func parsePatientBundle(bundle map[string]interface{}) []models.RemotePatient {
	patients := []models.RemotePatient{}

	entries, ok := bundle["entry"].([]interface{})
	if !ok {
		return patients
	}

	for _, e := range entries {
		entry, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		resource, ok := entry["resource"].(map[string]interface{})
		if !ok {
			continue
		}

		patient := models.RemotePatient{Resource: resource}
		if id, ok := resource["id"].(string); ok {
			patient.ID = id
		}
		if birthDate, ok := resource["birthDate"].(string); ok {
			patient.BirthDate = birthDate
		}
		if gender, ok := resource["gender"].(string); ok {
			patient.Gender = gender
		}
		patient.Name = humanName(resource)
		patient.Identifiers = patientIdentifiers(resource)

		patients = append(patients, patient)
	}

	return patients
}

func humanName(resource map[string]interface{}) string {
	names, ok := resource["name"].([]interface{})
	if !ok || len(names) == 0 {
		return ""
	}
	name, ok := names[0].(map[string]interface{})
	if !ok {
		return ""
	}

	var parts []string
	if given, ok := name["given"].([]interface{}); ok {
		for _, g := range given {
			if s, ok := g.(string); ok {
				parts = append(parts, s)
			}
		}
	}
	if family, ok := name["family"].(string); ok {
		parts = append(parts, family)
	}

	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	return out
}

func patientIdentifiers(resource map[string]interface{}) []models.PatientIdentifier {
	raw, ok := resource["identifier"].([]interface{})
	if !ok {
		return nil
	}

	var identifiers []models.PatientIdentifier
	for _, r := range raw {
		ident, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		pi := models.PatientIdentifier{}
		if system, ok := ident["system"].(string); ok {
			pi.System = system
		}
		if value, ok := ident["value"].(string); ok {
			pi.Value = value
		}
		identifiers = append(identifiers, pi)
	}
	return identifiers
}
