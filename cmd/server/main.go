package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinscribe/ehr-sync-connector/internal/cache"
	"github.com/clinscribe/ehr-sync-connector/internal/config"
	"github.com/clinscribe/ehr-sync-connector/internal/database"
	"github.com/clinscribe/ehr-sync-connector/internal/handlers"
	"github.com/clinscribe/ehr-sync-connector/internal/middleware"
	"github.com/clinscribe/ehr-sync-connector/internal/repository"
	"github.com/clinscribe/ehr-sync-connector/internal/services"
	"github.com/clinscribe/ehr-sync-connector/pkg/logger"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize logger
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log.Info().Msg("Starting EHR Sync Connector")

	// Connect to database
	dbConfig := database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		LogLevel: cfg.Database.LogLevel,
	}

	if err := database.Connect(dbConfig); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	// Initialize cache
	var cacheImpl cache.Cache
	if cfg.Cache.Enabled && cfg.Cache.Type == "redis" {
		addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
		cacheImpl, err = cache.NewRedisCache(addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		log.Info().Msg("Redis cache initialized")
	} else {
		cacheImpl = cache.NewMemoryCache()
		log.Info().Msg("Memory cache initialized")
	}

	// Initialize repositories
	connRepo := repository.NewConnectionRepository()
	syncRepo := repository.NewSyncRepository()
	auditRepo := repository.NewAuditRepository()
	recordRepo := repository.NewRecordRepository()

	// Initialize services
	connService := services.NewConnectionService(connRepo, nil)
	syncService := services.NewSyncService(connRepo, syncRepo, auditRepo, recordRepo, connService, cacheImpl, nil)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	connHandler := handlers.NewConnectionHandler(connService)
	syncHandler := handlers.NewSyncHandler(syncService)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints (no authentication required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// EHR integration API (requires clinician identity)
	r.Route("/api/v1/ehr", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Auth.JWTSecret))

		// Connection management
		r.Post("/connections", connHandler.Create)
		r.Get("/connections", connHandler.List)
		r.Get("/connections/{id}", connHandler.Get)
		r.Put("/connections/{id}", connHandler.Update)
		r.Delete("/connections/{id}", connHandler.Deactivate)

		// OAuth2 authorization flow
		r.Post("/connections/{id}/authorize", connHandler.Authorize)
		r.Post("/connections/{id}/callback", connHandler.Callback)

		// Synchronization and remote queries
		r.Post("/connections/{id}/sync", syncHandler.Sync)
		r.Post("/connections/{id}/patients/search", syncHandler.SearchPatients)
		r.Get("/connections/{id}/capabilities", syncHandler.Capabilities)

		// Audit ledger
		r.Get("/syncs", syncHandler.ListSyncs)
		r.Get("/audit-entries", syncHandler.ListAuditEntries)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
