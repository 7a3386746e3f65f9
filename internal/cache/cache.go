// Package cache provides the TTL-keyed response cache consulted by the
// rate-limited HTTP fetcher. Entries expire lazily: staleness is checked at
// read time, so no background eviction goroutine is needed.
package cache

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Store is a keyed byte cache with per-entry TTL. Implementations must be
// safe for concurrent use; writes are best-effort (a failed Set is logged,
// never fatal).
type Store interface {
	// Get returns the cached body for key, or ok=false when absent or expired.
	Get(key string) (body []byte, ok bool)

	// Set stores body under key for ttlSeconds seconds. ttlSeconds <= 0 stores nothing.
	Set(key string, body []byte, ttlSeconds int)
}

// Key returns the SHA-256 hex digest of a normalized request descriptor.
func Key(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("%x", h)
}
