package cache

import (
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheService implements CacheService on memcache. With a shared memcache
// instance, origin politeness blocks outlive the process and are honored by
// every worker pointed at the same server.
type MemcacheService struct {
	client *memcache.Client
}

// NewMemcacheService creates a memcache-backed cache.
func NewMemcacheService(serverAddr string) *MemcacheService {
	return &MemcacheService{
		client: memcache.New(serverAddr),
	}
}

// Get retrieves a value. An absent or expired key returns memcache's miss
// error, which the worker reads as "origin not blocked".
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

// Set stores a value with an expiration. Block durations are rounded down to
// whole seconds by the memcache protocol.
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	return m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: int32(expiration.Seconds()),
	})
}

// Delete removes a value, lifting a block early.
func (m *MemcacheService) Delete(key string) error {
	return m.client.Delete(key)
}
