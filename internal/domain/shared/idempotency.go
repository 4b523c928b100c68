package shared

import (
	"context"
	"time"
)

// MarkerStore caches workflow-step markers so the common case avoids a
// round trip to the ERP. It is an optimization only: the authoritative
// duplicate check is always the existence query against the ERP.
type MarkerStore interface {
	// MarkProcessed marks a marker key as set with a TTL.
	// Returns true if the key was newly marked, false if it was already set.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a marker key has already been set
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Clear removes a marker key, forcing the next pass to re-check the ERP.
	// Used by manual reprocessing.
	Clear(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}

// MarkerConfig holds configuration for the marker cache
type MarkerConfig struct {
	// TTL is the time-to-live for cached markers. After expiry the next
	// pass falls through to the authoritative existence check.
	// Default: 24 hours
	TTL time.Duration

	// Enabled determines whether the marker cache is consulted at all
	// Default: true
	Enabled bool
}

// DefaultMarkerConfig returns the default marker cache configuration
func DefaultMarkerConfig() MarkerConfig {
	return MarkerConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
