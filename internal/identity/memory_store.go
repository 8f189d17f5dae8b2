package identity

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory identity store for demo/development mode.
type MemoryStore struct {
	users   map[string]*User  // by DID
	byPhone map[string]string // phone → DID
	aliases map[string]string // alias → DID
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory identity store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]*User),
		byPhone: make(map[string]string),
		aliases: make(map[string]string),
	}
}

func (m *MemoryStore) Create(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[u.DID]; ok {
		return ErrUserExists
	}
	cp := *u
	m.users[u.DID] = &cp
	if u.PhoneNumber != "" {
		m.byPhone[u.PhoneNumber] = u.DID
	}
	return nil
}

func (m *MemoryStore) GetByDID(ctx context.Context, did string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[did]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) GetByPhone(ctx context.Context, phone string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	did, ok := m.byPhone[phone]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *m.users[did]
	return &cp, nil
}

func (m *MemoryStore) UpdateBalance(ctx context.Context, did string, balance float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[did]
	if !ok {
		return ErrUserNotFound
	}
	u.Balance = balance
	u.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) SaveAlias(ctx context.Context, alias, did string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.aliases[alias] = did
	return nil
}

func (m *MemoryStore) LookupAlias(ctx context.Context, alias string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	did, ok := m.aliases[alias]
	if !ok {
		return "", ErrAliasNotFound
	}
	return did, nil
}
