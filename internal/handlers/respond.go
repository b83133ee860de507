package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/clinscribe/ehr-sync-connector/internal/fhir"
	"github.com/clinscribe/ehr-sync-connector/internal/services"
	"gorm.io/gorm"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto HTTP statuses
func writeError(w http.ResponseWriter, err error) {
	var (
		missingCreds *services.MissingCredentialsError
		stateErr     *services.StateMismatchError
		notReady     *services.ConnectionNotReadyError
		incomplete   *services.IncompleteRecordError
		exchangeErr  *fhir.AuthExchangeError
		refreshErr   *fhir.TokenRefreshError
		remoteErr    *fhir.RemoteRequestError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		status = http.StatusNotFound
	case errors.As(err, &missingCreds),
		errors.As(err, &stateErr),
		errors.As(err, &notReady),
		errors.As(err, &incomplete),
		errors.As(err, &exchangeErr):
		status = http.StatusBadRequest
	case errors.As(err, &refreshErr),
		errors.As(err, &remoteErr):
		status = http.StatusBadGateway
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// pagination reads limit/offset query params with sane bounds
func pagination(r *http.Request) (limit, offset int) {
	limit = intQuery(r, "limit", 10)
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}
	offset = intQuery(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func intQuery(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
