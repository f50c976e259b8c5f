// Package cache defines the result cache consumed by the catalog scraper:
// a TTL'd key/value store with last-writer-wins semantics. Payloads are
// idempotent snapshots of deterministic queries, so concurrent writers to
// the same key overwriting each other is acceptable.
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache is the store boundary. Get returns (payload, true) on a live hit;
// an expired or absent key is a plain miss, never an error distinct from
// one. Implementations must return copies, not references to stored state.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// Memory is an in-process Cache for tests and degraded operation when no
// Redis is configured.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns a copy of the live payload for key, or a miss.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	out := make([]byte, len(e.payload))
	copy(out, e.payload)
	return out, true, nil
}

// Set stores payload under key, overwriting any previous entry.
func (m *Memory) Set(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	m.mu.Lock()
	m.entries[key] = memoryEntry{payload: cp, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}
