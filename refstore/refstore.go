// Package refstore persists the cart reference a browsing session holds, so a
// session can find its cart again after a restart.
package refstore

import (
	"context"
	"sync"
	"time"
)

// Store maps a session id to the raw cart identifier it last saw.
type Store interface {
	// Load returns "" when the session has no live reference.
	Load(ctx context.Context, sessionID string) (string, error)
	Save(ctx context.Context, sessionID, cartID string) error
	Clear(ctx context.Context, sessionID string) error
	Close() error
}

type entry struct {
	cartID    string
	expiresAt time.Time
}

// MemoryStore keeps references in process memory. A zero TTL never expires.
type MemoryStore struct {
	mu   sync.Mutex
	refs map[string]entry
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{refs: make(map[string]entry), ttl: ttl, now: time.Now}
}

func (m *MemoryStore) Load(ctx context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.refs[sessionID]
	if !ok {
		return "", nil
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.refs, sessionID)
		return "", nil
	}
	return e.cartID, nil
}

func (m *MemoryStore) Save(ctx context.Context, sessionID, cartID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := entry{cartID: cartID}
	if m.ttl > 0 {
		e.expiresAt = m.now().Add(m.ttl)
	}
	m.refs[sessionID] = e
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.refs, sessionID)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
