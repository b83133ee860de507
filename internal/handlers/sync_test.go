package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clinscribe/ehr-sync-connector/internal/models"
	"github.com/google/uuid"
)

func TestSyncFilterParsing(t *testing.T) {
	connID := uuid.New()
	recID := uuid.New()

	r := httptest.NewRequest(http.MethodGet, "/syncs?connection_id="+connID.String()+"&record_id="+recID.String()+"&status=failed", nil)
	rec := httptest.NewRecorder()

	filter, ok := syncFilter(rec, r)
	if !ok {
		t.Fatalf("Expected filter to parse, got %d: %s", rec.Code, rec.Body.String())
	}
	if filter.ConnectionID != connID {
		t.Errorf("Unexpected connection filter: %s", filter.ConnectionID)
	}
	if filter.RecordID != recID {
		t.Errorf("Unexpected record filter: %s", filter.RecordID)
	}
	if filter.Status != models.SyncStatusFailed {
		t.Errorf("Unexpected status filter: %s", filter.Status)
	}
}

func TestSyncFilterEmpty(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/syncs", nil)
	rec := httptest.NewRecorder()

	filter, ok := syncFilter(rec, r)
	if !ok {
		t.Fatal("Expected empty filter to parse")
	}
	if filter.ConnectionID != uuid.Nil || filter.RecordID != uuid.Nil || filter.Status != "" {
		t.Errorf("Expected zero filter, got %+v", filter)
	}
}

func TestSyncFilterBadIDs(t *testing.T) {
	for _, query := range []string{"?connection_id=not-a-uuid", "?record_id=not-a-uuid"} {
		r := httptest.NewRequest(http.MethodGet, "/syncs"+query, nil)
		rec := httptest.NewRecorder()

		if _, ok := syncFilter(rec, r); ok {
			t.Errorf("Expected %q to be rejected", query)
		}
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for %q, got %d", query, rec.Code)
		}
	}
}
