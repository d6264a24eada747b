package session

import (
	"context"
	"sync"
	"time"

	"github.com/DanielPopoola/razorpay-reconciler/internal/application"
)

type memoryEntry struct {
	orderID   string
	expiresAt time.Time
}

// MemoryStore keeps checkout sessions in process memory. Entries expire after ttl.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryStore) Scoped(sessionID string) application.SessionStore {
	return &memorySession{store: m, sessionID: sessionID}
}

func (m *MemoryStore) get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return "", false
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return "", false
	}
	return e.orderID, true
}

func (m *MemoryStore) set(key, orderID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{orderID: orderID, expiresAt: m.now().Add(m.ttl)}
}

func (m *MemoryStore) clear(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

type memorySession struct {
	store     *MemoryStore
	sessionID string
}

func (s *memorySession) Scope() string { return s.sessionID }

func (s *memorySession) Get(_ context.Context, key string) (string, bool, error) {
	orderID, ok := s.store.get(sessionKey(s.sessionID, key))
	return orderID, ok, nil
}

func (s *memorySession) Set(_ context.Context, key, orderID string) error {
	s.store.set(sessionKey(s.sessionID, key), orderID)
	return nil
}

func (s *memorySession) Clear(_ context.Context, key string) error {
	s.store.clear(sessionKey(s.sessionID, key))
	return nil
}
