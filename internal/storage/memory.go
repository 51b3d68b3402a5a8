package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/igwedaniel/dripper/internal/types"
)

// InMemoryStorage is a simple in-memory implementation for testing
type InMemoryStorage struct {
	mu      sync.Mutex
	entries []types.WalletCredential
	cache   map[string]cacheEntry
	now     func() time.Time

	// FailAppend, when set, is returned by Append
	FailAppend error
}

type cacheEntry struct {
	data    []byte
	expires time.Time
}

func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		cache: make(map[string]cacheEntry),
		now:   time.Now,
	}
}

func (m *InMemoryStorage) Append(ctx context.Context, cred types.WalletCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAppend != nil {
		return &PersistenceError{Target: "memory", Err: m.FailAppend}
	}
	m.entries = append(m.entries, cred)
	return nil
}

// Entries returns a copy of everything appended so far
func (m *InMemoryStorage) Entries() []types.WalletCredential {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.WalletCredential, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *InMemoryStorage) SetCache(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = cacheEntry{data: data, expires: m.now().Add(ttl)}
	return nil
}

func (m *InMemoryStorage) GetCache(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	entry, ok := m.cache[key]
	m.mu.Unlock()
	if !ok || m.now().After(entry.expires) {
		return ErrCacheMiss
	}
	return json.Unmarshal(entry.data, dest)
}

func (m *InMemoryStorage) Ping(ctx context.Context) error {
	return nil
}

func (m *InMemoryStorage) Close() error {
	return nil
}
