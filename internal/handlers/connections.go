package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/clinscribe/ehr-sync-connector/internal/models"
	"github.com/clinscribe/ehr-sync-connector/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ConnectionHandler serves the EHR connection management API
type ConnectionHandler struct {
	connections *services.ConnectionService
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(connections *services.ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{connections: connections}
}

// Create registers a new EHR connection
func (h *ConnectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.ConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Vendor == "" || req.Name == "" || req.BaseURL == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "vendor, name and base_url are required"})
		return
	}

	conn, err := h.connections.CreateConnection(r.Context(), &req)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create EHR connection")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, conn)
}

// List returns a page of connections
func (h *ConnectionHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	activeOnly := r.URL.Query().Get("active_only") == "true"

	conns, total, err := h.connections.ListConnections(r.Context(), limit, offset, activeOnly)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list EHR connections")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ConnectionListResponse{
		Total:    total,
		Items:    conns,
		Page:     (offset / limit) + 1,
		PageSize: limit,
	})
}

// Get returns one connection
func (h *ConnectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := connectionID(w, r)
	if !ok {
		return
	}

	conn, err := h.connections.GetConnection(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, conn)
}

// Update modifies a connection's operator-editable fields
func (h *ConnectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := connectionID(w, r)
	if !ok {
		return
	}

	var req models.ConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	conn, err := h.connections.UpdateConnection(r.Context(), id, &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, conn)
}

// Deactivate marks a connection inactive
func (h *ConnectionHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := connectionID(w, r)
	if !ok {
		return
	}

	if err := h.connections.DeactivateConnection(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "EHR connection deactivated"})
}

// Authorize issues an OAuth2 authorization URL plus CSRF state
func (h *ConnectionHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	id, ok := connectionID(w, r)
	if !ok {
		return
	}

	var req models.AuthorizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.RedirectURI == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "redirect_uri is required"})
		return
	}

	resp, err := h.connections.IssueAuthorization(r.Context(), id, req.RedirectURI, req.Scopes)
	if err != nil {
		log.Warn().Err(err).Str("connection_id", id.String()).Msg("Authorization request rejected")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Callback completes the OAuth2 authorization-code flow
func (h *ConnectionHandler) Callback(w http.ResponseWriter, r *http.Request) {
	id, ok := connectionID(w, r)
	if !ok {
		return
	}

	var req models.CallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Code == "" || req.RedirectURI == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "code and redirect_uri are required"})
		return
	}

	if err := h.connections.CompleteAuthorization(r.Context(), id, req.Code, req.RedirectURI, req.State); err != nil {
		log.Warn().Err(err).Str("connection_id", id.String()).Msg("Authorization callback failed")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"message":       "Authorization successful. Connection is now active.",
		"connection_id": id,
	})
}

func connectionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid connection id"})
		return uuid.Nil, false
	}
	return id, true
}
