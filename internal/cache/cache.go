package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key is not found in cache
var ErrCacheMiss = errors.New("cache miss")

// Cache defines the cache interface
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context, pattern string) error
}

// PatientSearchKey builds the cache key for a remote patient search
func PatientSearchKey(connectionID, encodedQuery string) string {
	return "ehr:" + connectionID + ":patients:" + encodedQuery
}

// CapabilitiesKey builds the cache key for a capability statement
func CapabilitiesKey(connectionID string) string {
	return "ehr:" + connectionID + ":capabilities"
}
