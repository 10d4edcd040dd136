package state

import (
	"context"
	"fmt"
	"sort"
	"sync"

	archetype "github.com/goliatone/go-archetype"
)

// MemoryStore is a minimal in-memory Store intended for tests and examples.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[archetype.AssetID]memoryRecord
}

type memoryRecord struct {
	data []byte
	meta Meta
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[archetype.AssetID]memoryRecord{}}
}

func (s *MemoryStore) Load(_ context.Context, id archetype.AssetID) ([]byte, Meta, bool, error) {
	s.mu.RLock()
	record, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, Meta{}, false, nil
	}
	return append([]byte(nil), record.data...), cloneMeta(record.meta), true, nil
}

func (s *MemoryStore) Save(_ context.Context, id archetype.AssetID, data []byte, meta Meta) (Meta, error) {
	if id.IsZero() {
		return Meta{}, fmt.Errorf("state: asset id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[id]; ok && meta.ETag != "" && meta.ETag != existing.meta.ETag {
		return cloneMeta(existing.meta), fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, existing.meta.ETag)
	}
	saved := stamp(data, meta)
	s.records[id] = memoryRecord{data: append([]byte(nil), data...), meta: saved}
	return cloneMeta(saved), nil
}

func (s *MemoryStore) Delete(_ context.Context, id archetype.AssetID) error {
	s.mu.Lock()
	delete(s.records, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]archetype.AssetID, error) {
	s.mu.RLock()
	ids := make([]archetype.AssetID, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}
