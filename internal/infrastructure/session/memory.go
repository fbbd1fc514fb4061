package session

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps encoded payloads in process memory with per-entry TTL.
// Sessions do not survive a restart.
type MemoryStore struct {
	cache *cache.Cache
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(ttl, cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{cache: cache.New(ttl, cleanupInterval)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Data, error) {
	v, ok := m.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	raw, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected session entry type %T", v)
	}

	data, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return data, nil
}

func (m *MemoryStore) Put(_ context.Context, id string, data *Data, ttl time.Duration) error {
	raw, err := encode(data)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	m.cache.Set(id, raw, ttl)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.cache.Delete(id)
	return nil
}

// Len reports the number of live entries, including expired ones not yet purged.
func (m *MemoryStore) Len() int {
	return m.cache.ItemCount()
}
