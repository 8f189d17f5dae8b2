package ussd

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory session store for demo/development mode.
type MemoryStore struct {
	sessions map[string]*Session // by session ID
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *sess
	cp.TempData = make(map[string]string, len(sess.TempData))
	for k, v := range sess.TempData {
		cp.TempData[k] = v
	}
	return &cp, nil
}

func (m *MemoryStore) Upsert(ctx context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *session
	cp.TempData = make(map[string]string, len(session.TempData))
	for k, v := range session.TempData {
		cp.TempData[k] = v
	}
	m.sessions[session.SessionID] = &cp
	return nil
}
