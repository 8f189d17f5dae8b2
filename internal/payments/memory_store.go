package payments

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory transaction store for demo/development mode.
type MemoryStore struct {
	txs map[string]*Transaction // by ID
	mu  sync.RWMutex
}

// NewMemoryStore creates a new in-memory transaction store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{txs: make(map[string]*Transaction)}
}

func (m *MemoryStore) Create(ctx context.Context, tx *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *tx
	m.txs[tx.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.txs[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, id, status string, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.txs[id]
	if !ok {
		return ErrTransactionNotFound
	}
	tx.Status = status
	tx.CompletedAt = completedAt
	return nil
}

func (m *MemoryStore) ListByDID(ctx context.Context, did string, limit int) ([]*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Transaction
	for _, tx := range m.txs {
		if tx.FromDID == did || tx.ToDID == did {
			cp := *tx
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].InitiatedAt.After(result[j].InitiatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
