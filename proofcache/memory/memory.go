package memory

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shruggr/relaynode/kvstore"
)

// Cache is an in-memory LRU implementation of proofcache.Cache.
type Cache[V any] struct {
	lru *lru.Cache[kvstore.Hash, V]
	mu  sync.RWMutex
}

// New creates a new in-memory LRU cache with the specified size.
func New[V any](size int) (*Cache[V], error) {
	l, err := lru.New[kvstore.Hash, V](size)
	if err != nil {
		return nil, err
	}

	return &Cache[V]{
		lru: l,
	}, nil
}

// Get retrieves a cached value for a transaction.
func (c *Cache[V]) Get(txid kvstore.Hash) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.lru.Get(txid)
}

// Put stores a value for a transaction.
func (c *Cache[V]) Put(txid kvstore.Hash, value V) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Add(txid, value)
	return nil
}

// Delete removes a cached value for a transaction.
func (c *Cache[V]) Delete(txid kvstore.Hash) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Remove(txid)
	return nil
}

// Clear removes all cached entries.
func (c *Cache[V]) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Purge()
	return nil
}
