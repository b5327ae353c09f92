package cache

import (
	"bytes"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type entry struct {
	payload  []byte
	storedAt time.Time
}

// Memory is a process-local cache. Expired entries are never returned and
// are removed by Sweep, which Set triggers once the cache grows past the
// sweep threshold.
type Memory struct {
	mu             sync.RWMutex
	entries        map[string]entry
	ttl            time.Duration
	sweepThreshold int
	now            func() time.Time
	logger         *zap.Logger
}

func NewMemory(ttl time.Duration, sweepThreshold int, logger *zap.Logger) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if sweepThreshold <= 0 {
		sweepThreshold = DefaultSweepThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memory{
		entries:        make(map[string]entry),
		ttl:            ttl,
		sweepThreshold: sweepThreshold,
		now:            time.Now,
		logger:         logger,
	}
}

// Get returns a copy of the stored payload.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || !fresh(e.storedAt, m.now(), m.ttl) {
		return nil, false
	}
	return bytes.Clone(e.payload), true
}

func (m *Memory) Set(_ context.Context, key string, payload []byte) {
	stored := make([]byte, len(payload))
	copy(stored, payload)

	m.mu.Lock()
	m.entries[key] = entry{payload: stored, storedAt: m.now()}
	size := len(m.entries)
	m.mu.Unlock()

	if size > m.sweepThreshold {
		m.Sweep()
	}
}

// Sweep removes expired entries and returns how many were dropped.
func (m *Memory) Sweep() int {
	now := m.now()

	m.mu.Lock()
	removed := 0
	for key, e := range m.entries {
		if !fresh(e.storedAt, now, m.ttl) {
			delete(m.entries, key)
			removed++
		}
	}
	left := len(m.entries)
	m.mu.Unlock()

	if removed > 0 {
		m.logger.Debug("cache sweep", zap.Int("removed", removed), zap.Int("left", left))
	}
	return removed
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
