package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncAttempts counts orchestrated sync attempts by terminal status
	SyncAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ehr_sync_attempts_total",
		Help: "Total EHR sync attempts by terminal status",
	}, []string{"status"})

	// ResourcesCreated counts successful remote resource writes
	ResourcesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ehr_resources_created_total",
		Help: "Total FHIR resources created on remote EHRs",
	}, []string{"resource_type"})

	// TokenRefreshes counts OAuth2 refresh-token grants by outcome
	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ehr_token_refreshes_total",
		Help: "Total OAuth2 token refresh attempts by outcome",
	}, []string{"outcome"})
)
