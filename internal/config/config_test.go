package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Database.DBName != "ehr_sync" {
		t.Errorf("Unexpected default db name: %s", cfg.Database.DBName)
	}
	if cfg.Cache.Type != "memory" {
		t.Errorf("Expected default cache type memory, got %s", cfg.Cache.Type)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_READ_TIMEOUT", "10s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("CACHE_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("Expected 10s read timeout, got %s", cfg.Server.ReadTimeout)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example.com" {
		t.Errorf("Expected trimmed origin list, got %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Cache.Enabled {
		t.Error("Expected cache to be disabled")
	}
}

func TestValidate(t *testing.T) {
	valid := &Config{
		Database: DatabaseConfig{DBName: "ehr_sync"},
		Auth:     AuthConfig{JWTSecret: "secret"},
		Cache:    CacheConfig{Enabled: true, Type: "memory"},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Expected valid config, got: %v", err)
	}

	noSecret := *valid
	noSecret.Auth.JWTSecret = ""
	if err := noSecret.Validate(); err == nil {
		t.Error("Expected error for missing JWT_SECRET")
	}

	badCache := *valid
	badCache.Cache.Type = "memcached"
	if err := badCache.Validate(); err == nil {
		t.Error("Expected error for unsupported cache type")
	}
}
