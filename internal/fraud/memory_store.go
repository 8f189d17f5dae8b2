package fraud

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory fraud score store for demo/development mode.
type MemoryStore struct {
	scores map[string]*Score // by DID
	mu     sync.RWMutex
}

// NewMemoryStore creates a new in-memory fraud score store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scores: make(map[string]*Score)}
}

func (m *MemoryStore) Latest(ctx context.Context, did string) (*Score, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	score, ok := m.scores[did]
	if !ok {
		return nil, ErrScoreNotFound
	}
	cp := *score
	return &cp, nil
}

func (m *MemoryStore) Save(ctx context.Context, score *Score) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *score
	m.scores[score.DID] = &cp
	return nil
}
