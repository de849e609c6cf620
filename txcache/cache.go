// Package txcache implements the ordered, content-addressed transaction
// store shared by a relay peer's send and receive paths. A single Cache
// type backs both directions: the send side removes by content, the recv
// side removes by index, but both share the same admission/eviction/
// index-compaction machinery underneath.
package txcache

import (
	"fmt"
	"sync"

	"github.com/shruggr/relaynode/hashutil"
)

// Config selects the size-policy regime a Cache enforces on admission.
// UseOldFlags switches between the modern single-threshold policy and the
// legacy oversize-budget policy; the two threshold groups are independent
// so a caller can carry both without conditionals at every call site.
type Config struct {
	UseOldFlags bool

	// Modern regime.
	MaxRelayTransactionBytes uint32

	// Legacy regime.
	OldMaxRelayTransactionBytes         uint32
	OldMaxExtraOversizeTransactions     int
	OldMaxRelayOversizeTransactionBytes uint32

	// Eviction bounds; zero means unbounded on that dimension.
	MaxEntries int
	MaxBytes   uint64
}

type entry struct {
	hash     [32]byte
	data     []byte
	oversize bool
}

// Cache is a FIFO-evicted, content-addressed, index-compacting ordered
// store of transaction blobs. Its own mutex is independent of any facade
// mutex a caller layers on top; BeginBatch lets a caller that already holds
// a coarser lock skip the per-call locking overhead for a bounded scope,
// mirroring the original's FASLockHint.
type Cache struct {
	cfg Config

	mu      sync.Mutex
	batch   bool
	entries []*entry
	byHash  map[[32]byte]int

	totalBytes uint64
	flagCount  int
}

// New creates an empty Cache under cfg.
func New(cfg Config) *Cache {
	return &Cache{
		cfg:    cfg,
		byHash: make(map[[32]byte]int),
	}
}

// BeginBatch acquires the cache's lock for the duration of a block-scale
// traversal and returns a release function. Every call the caller makes to
// a Cache method between BeginBatch and the release call runs without
// re-acquiring the lock. The release function must run on every exit path;
// callers should defer it immediately.
func (c *Cache) BeginBatch() func() {
	c.mu.Lock()
	c.batch = true
	return func() {
		c.batch = false
		c.mu.Unlock()
	}
}

func (c *Cache) lock() func() {
	if c.batch {
		return func() {}
	}
	c.mu.Lock()
	return c.mu.Unlock
}

// Len reports the number of currently held transactions.
func (c *Cache) Len() int {
	unlock := c.lock()
	defer unlock()
	return len(c.entries)
}

// FlagCount reports the number of currently held oversize entries.
func (c *Cache) FlagCount() int {
	unlock := c.lock()
	defer unlock()
	return c.flagCount
}

// Contains reports whether hash names a currently held transaction.
func (c *Cache) Contains(hash [32]byte) bool {
	unlock := c.lock()
	defer unlock()
	_, ok := c.byHash[hash]
	return ok
}

// ContainsBlob reports whether blob (by content) is currently held.
func (c *Cache) ContainsBlob(blob []byte) bool {
	return c.Contains(hashOf(blob))
}

func hashOf(blob []byte) [32]byte {
	var h [32]byte
	hashutil.DoubleSHA256(blob, h[:])
	return h
}

// Admit applies the send-side size policy to blob and, if accepted, appends
// it to the tail of the cache. It returns false without modifying the
// cache if blob is already held or rejected by policy.
func (c *Cache) Admit(blob []byte) bool {
	unlock := c.lock()
	defer unlock()

	hash := hashOf(blob)
	if _, ok := c.byHash[hash]; ok {
		return false
	}

	oversize := false
	if !c.cfg.UseOldFlags {
		if uint32(len(blob)) > c.cfg.MaxRelayTransactionBytes {
			return false
		}
	} else {
		oversize = uint32(len(blob)) > c.cfg.OldMaxRelayTransactionBytes
		if oversize && (c.flagCount >= c.cfg.OldMaxExtraOversizeTransactions || uint32(len(blob)) > c.cfg.OldMaxRelayOversizeTransactionBytes) {
			return false
		}
	}

	c.append(hash, blob, oversize)
	return true
}

// CheckSize is the recv-side pure admission predicate: would a blob of
// this size be accepted by Add right now.
func (c *Cache) CheckSize(size uint32) bool {
	unlock := c.lock()
	defer unlock()
	return c.checkSizeLocked(size)
}

func (c *Cache) checkSizeLocked(size uint32) bool {
	if !c.cfg.UseOldFlags {
		return size <= c.cfg.MaxRelayTransactionBytes
	}
	return size <= c.cfg.OldMaxRelayTransactionBytes ||
		(c.flagCount < c.cfg.OldMaxExtraOversizeTransactions && size <= c.cfg.OldMaxRelayOversizeTransactionBytes)
}

// Add admits blob on the recv side. It is a precondition violation to call
// Add with a blob whose size CheckSize would reject; callers that read
// tx_size off the wire must gate with CheckSize (or MaybeRecvTxOfSize)
// before reading the body, exactly as the original's recv_tx does.
func (c *Cache) Add(blob []byte) error {
	unlock := c.lock()
	defer unlock()

	size := uint32(len(blob))
	if !c.checkSizeLocked(size) {
		return fmt.Errorf("txcache: Add called with a blob CheckSize would reject (size %d)", size)
	}

	oversize := false
	if c.cfg.UseOldFlags {
		oversize = size > c.cfg.OldMaxRelayTransactionBytes
	}

	c.append(hashOf(blob), blob, oversize)
	return nil
}

// append adds a new tail entry and evicts from the head while over
// capacity, exactly as FIFO eviction requires. Caller must hold the lock.
func (c *Cache) append(hash [32]byte, blob []byte, oversize bool) {
	stored := make([]byte, len(blob))
	copy(stored, blob)

	c.entries = append(c.entries, &entry{hash: hash, data: stored, oversize: oversize})
	c.byHash[hash] = len(c.entries) - 1
	c.totalBytes += uint64(len(stored))
	if oversize {
		c.flagCount++
	}

	for c.overCapacityLocked() && len(c.entries) > 0 {
		c.removeAtLocked(0)
	}
}

func (c *Cache) overCapacityLocked() bool {
	if c.cfg.MaxEntries > 0 && len(c.entries) > c.cfg.MaxEntries {
		return true
	}
	if c.cfg.MaxBytes > 0 && c.totalBytes > c.cfg.MaxBytes {
		return true
	}
	return false
}

// Remove finds blob by content and evicts it, compacting every later
// index down by one. It returns the index the entry held immediately
// before removal, or -1 if blob was not present.
func (c *Cache) Remove(blob []byte) int {
	unlock := c.lock()
	defer unlock()

	hash := hashOf(blob)
	idx, ok := c.byHash[hash]
	if !ok {
		return -1
	}
	c.removeAtLocked(idx)
	return idx
}

// RemoveAt evicts the entry at index, compacting every later index down by
// one, and returns its blob and content hash. ok is false if index is out
// of range.
func (c *Cache) RemoveAt(index int) (blob []byte, hash [32]byte, ok bool) {
	unlock := c.lock()
	defer unlock()

	if index < 0 || index >= len(c.entries) {
		return nil, [32]byte{}, false
	}
	e := c.entries[index]
	blob = e.data
	hash = e.hash
	c.removeAtLocked(index)
	return blob, hash, true
}

// removeAtLocked evicts the entry at index and shifts every later index's
// bookkeeping down by one. Caller must hold the lock.
func (c *Cache) removeAtLocked(index int) {
	e := c.entries[index]
	c.totalBytes -= uint64(len(e.data))
	if e.oversize {
		c.flagCount--
	}
	delete(c.byHash, e.hash)

	c.entries = append(c.entries[:index], c.entries[index+1:]...)
	for i := index; i < len(c.entries); i++ {
		c.byHash[c.entries[i].hash] = i
	}
}

// ForEach visits every currently held transaction in insertion order.
func (c *Cache) ForEach(visit func(blob []byte)) {
	unlock := c.lock()
	defer unlock()

	for _, e := range c.entries {
		visit(e.data)
	}
}

// Clear empties the cache. It does not touch any externally held set of
// seen block/transaction hashes.
func (c *Cache) Clear() {
	unlock := c.lock()
	defer unlock()

	c.entries = nil
	c.byHash = make(map[[32]byte]int)
	c.totalBytes = 0
	c.flagCount = 0
}
