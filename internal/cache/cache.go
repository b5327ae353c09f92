// Package cache stores final match results for a limited time.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const (
	DefaultTTL            = time.Hour
	DefaultSweepThreshold = 100
)

// Cache holds encoded match results. Implementations return a payload only
// while it is younger than their TTL. There is no per-key locking, so
// concurrent misses for one key may both recompute.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, payload []byte)
}

// Key derives the cache key of a match request.
func Key(fingerprint, filtersKey, modelVersion string) string {
	h := sha256.New()
	for _, part := range []string{fingerprint, filtersKey, modelVersion} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func fresh(storedAt, now time.Time, ttl time.Duration) bool {
	return now.Sub(storedAt) < ttl
}
