// Package proofcache caches recently built Merkle inclusion proofs so a
// relay peer serving SPV clients doesn't re-derive a block's proof tree for
// every repeated request against the same transaction.
package proofcache

import "github.com/shruggr/relaynode/kvstore"

// Cache holds values of type V keyed by txid. It is generic so the same LRU
// wrapper backs both the Merkle proof cache and any future per-txid cache
// with the same access pattern.
type Cache[V any] interface {
	// Get retrieves a cached value for a transaction.
	// Returns false if not cached.
	Get(txid kvstore.Hash) (V, bool)

	// Put stores a value for a transaction.
	Put(txid kvstore.Hash, value V) error

	// Delete removes a cached value for a transaction.
	Delete(txid kvstore.Hash) error

	// Clear removes all cached entries.
	Clear() error
}
