// Package cache holds recently fetched values in memory with per-entry
// expiry and least-recently-used eviction.
package cache

import (
	"time"
)

// Cache is a keyed store of V values.
type Cache[V any] interface {
	// Get retrieves an unexpired item
	Get(key string) (V, bool)

	// GetStale retrieves an item even when it has expired, reporting its age.
	GetStale(key string) (V, time.Duration, bool)

	// Set stores an item with the default TTL
	Set(key string, value V)

	// SetWithTTL stores an item with a custom TTL; zero never expires
	SetWithTTL(key string, value V, ttl time.Duration)

	// Delete removes an item
	Delete(key string)

	// Clear removes all items with a specific prefix
	Clear(prefix string)

	// Cleanup removes expired entries
	Cleanup(maxAge time.Duration)

	// Keys lists the keys from most to least recently used
	Keys() []string

	// Size returns the current cache size
	Size() int

	// Stats returns cache statistics
	Stats() Stats

	// Close stops background cleanup and drops all entries
	Close() error
}

// Stats represents cache performance metrics
type Stats struct {
	Hits        int64     `json:"hits"`
	Misses      int64     `json:"misses"`
	StaleHits   int64     `json:"stale_hits"`
	Evictions   int64     `json:"evictions"`
	Size        int       `json:"size"`
	MaxSize     int       `json:"max_size"`
	HitRate     float64   `json:"hit_rate"`
	LastCleanup time.Time `json:"last_cleanup"`
}

// Config defines configuration options for cache implementations
type Config struct {
	MaxSize    int           `json:"max_size"`
	DefaultTTL time.Duration `json:"default_ttl"`
	// CleanupPeriod is how often expired entries are swept; zero disables
	// the background sweep.
	CleanupPeriod time.Duration `json:"cleanup_period"`
	// KeepExpired retains expired entries for GetStale until evicted by size.
	KeepExpired bool `json:"keep_expired"`
	EnableStats bool `json:"enable_stats"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		MaxSize:       100,
		DefaultTTL:    10 * time.Minute,
		CleanupPeriod: 5 * time.Minute,
		EnableStats:   true,
	}
}
