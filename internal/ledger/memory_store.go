package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store with in-memory storage.
type MemoryStore struct {
	events []*Event
	byRef  map[string]bool
	nextID int64
	mu     sync.RWMutex
}

// NewMemoryStore creates a new in-memory ledger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byRef: make(map[string]bool)}
}

func (s *MemoryStore) Append(_ context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(event)
	return nil
}

func (s *MemoryStore) AppendPair(_ context.Context, out, in *Event) error {
	if out == nil || in == nil {
		return ErrEmptyPair
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if out.Reference != "" && s.byRef[out.Reference] {
		return nil // already recorded, retry is a no-op
	}
	s.appendLocked(out)
	s.appendLocked(in)
	return nil
}

func (s *MemoryStore) appendLocked(event *Event) {
	s.nextID++
	cp := *event
	cp.EventID = s.nextID
	if cp.Timestamp.IsZero() {
		cp.Timestamp = time.Now()
	}
	if cp.Reference != "" {
		s.byRef[cp.Reference] = true
	}
	s.events = append(s.events, &cp)
	event.EventID = cp.EventID
}

func (s *MemoryStore) Query(_ context.Context, did string, q Query) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Event
	for _, e := range s.events {
		if e.DID != did {
			continue
		}
		if q.EventType != "" && e.EventType != q.EventType {
			continue
		}
		if !q.From.IsZero() && e.Timestamp.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && e.Timestamp.After(q.To) {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}

	// Newest first; event ID breaks timestamp ties.
	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].EventID > result[j].EventID
		}
		return result[i].Timestamp.After(result[j].Timestamp)
	})

	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

func (s *MemoryStore) HasReference(_ context.Context, reference string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byRef[reference], nil
}
