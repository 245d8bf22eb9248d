package rules

import "time"

// RulesCache caches the ordered list of active rules so evaluation does not
// hit the store on every assessment.
type RulesCache interface {
	// Get returns the cached rules, or nil on a miss or expiry
	Get() []*Rule

	// Set stores rules in cache, preserving their order
	Set(rules []*Rule)

	// Invalidate clears the cache, forcing a refresh on next Get
	Invalidate()

	// IsValid returns true if cache has valid data
	IsValid() bool
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live for cached entries.
	// Zero means no expiration (invalidated on rule mutations only).
	TTL time.Duration
}

// DefaultCacheConfig returns the cache configuration used by NewEngine
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}
