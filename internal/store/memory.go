package store

import (
	"context"
	"sync"
	"time"

	"github.com/jonathan/cvperfect-sessions/internal/session"
)

// Memory is an in-process Store used by tests and the demo mode. It applies
// the same format, validation, and TTL rules as the durable implementations.
type Memory struct {
	mu      sync.RWMutex
	records map[string]*session.Record
	ttl     time.Duration
	now     func() time.Time
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock overrides the store's clock. Tests use it to simulate expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) { m.ttl = ttl }
}

// NewMemory returns an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		records: make(map[string]*session.Record),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Save stores the record under its session id, minting one if needed.
func (m *Memory) Save(_ context.Context, rec *session.Record) (string, error) {
	id, err := prepare(rec, m.now())
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = rec.Clone()
	return id, nil
}

// Get returns the record for id, enforcing id format and TTL.
func (m *Memory) Get(_ context.Context, id string) (*session.Record, error) {
	if _, err := session.ParseID(id); err != nil {
		return nil, err
	}

	m.mu.RLock()
	rec, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return nil, session.ErrNotFound
	}
	if expired(rec, m.now(), m.ttl) {
		return nil, session.ErrExpired
	}
	return rec.Clone(), nil
}

// FindByEmail returns the most recent non-expired record for email.
func (m *Memory) FindByEmail(_ context.Context, email string) (*session.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *session.Record
	now := m.now()
	for _, rec := range m.records {
		if rec.Email != email || expired(rec, now, m.ttl) {
			continue
		}
		if best == nil || rec.CreatedAt.After(best.CreatedAt) {
			best = rec
		}
	}
	if best == nil {
		return nil, session.ErrNotFound
	}
	return best.Clone(), nil
}

// Delete removes the record for id. Deleting an absent id is a no-op.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

// ListExpired returns ids of records created before olderThan.
func (m *Memory) ListExpired(_ context.Context, olderThan time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, rec := range m.records {
		if rec.CreatedAt.Before(olderThan) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() {}

// Len returns the number of stored records, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

var _ Store = (*Memory)(nil)
