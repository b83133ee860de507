package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/clinscribe/ehr-sync-connector/internal/models"
	"github.com/clinscribe/ehr-sync-connector/internal/repository"
	"github.com/clinscribe/ehr-sync-connector/internal/services"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SyncHandler serves sync orchestration, remote patient search and the
// audit ledger's read side
type SyncHandler struct {
	syncs *services.SyncService
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(syncs *services.SyncService) *SyncHandler {
	return &SyncHandler{syncs: syncs}
}

// Sync pushes a clinical record to the remote EHR
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	id, ok := connectionID(w, r)
	if !ok {
		return
	}

	var req models.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.RecordID == uuid.Nil || req.RemotePatientID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "record_id and patient_id are required"})
		return
	}

	resp, err := h.syncs.Sync(r.Context(), id, &req)
	if err != nil {
		log.Warn().Err(err).Str("connection_id", id.String()).Msg("Sync request rejected")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// SearchPatients queries the remote EHR for patients
func (h *SyncHandler) SearchPatients(w http.ResponseWriter, r *http.Request) {
	id, ok := connectionID(w, r)
	if !ok {
		return
	}

	var req models.PatientSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	patients, err := h.syncs.SearchRemotePatients(r.Context(), id, &req)
	if err != nil {
		log.Warn().Err(err).Str("connection_id", id.String()).Msg("Patient search failed")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, patients)
}

// Capabilities returns the remote server's capability statement
func (h *SyncHandler) Capabilities(w http.ResponseWriter, r *http.Request) {
	id, ok := connectionID(w, r)
	if !ok {
		return
	}

	capability, err := h.syncs.Capabilities(r.Context(), id)
	if err != nil {
		log.Warn().Err(err).Str("connection_id", id.String()).Msg("Capability fetch failed")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, capability)
}

// ListSyncs returns a page of sync attempts
func (h *SyncHandler) ListSyncs(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	filter, ok := syncFilter(w, r)
	if !ok {
		return
	}

	syncs, total, err := h.syncs.ListSyncs(r.Context(), filter, limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list syncs")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.SyncListResponse{
		Total:    total,
		Items:    syncs,
		Page:     (offset / limit) + 1,
		PageSize: limit,
	})
}

// ListAuditEntries returns a page of the write ledger
func (h *SyncHandler) ListAuditEntries(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	filter, ok := syncFilter(w, r)
	if !ok {
		return
	}

	entries, total, err := h.syncs.ListAuditEntries(r.Context(), filter, limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list audit entries")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.AuditListResponse{
		Total:    total,
		Items:    entries,
		Page:     (offset / limit) + 1,
		PageSize: limit,
	})
}

func syncFilter(w http.ResponseWriter, r *http.Request) (repository.SyncFilter, bool) {
	filter := repository.SyncFilter{
		Status: models.SyncStatus(r.URL.Query().Get("status")),
	}

	if v := r.URL.Query().Get("connection_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid connection_id"})
			return filter, false
		}
		filter.ConnectionID = id
	}
	if v := r.URL.Query().Get("record_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid record_id"})
			return filter, false
		}
		filter.RecordID = id
	}

	return filter, true
}
