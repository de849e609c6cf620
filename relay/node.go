package relay

import (
	"encoding/binary"
	"sync"

	"github.com/shruggr/relaynode/txcache"
)

// Config configures a Node's cache size policy. UseOldFlags, once set at
// construction, is fixed for the Node's lifetime; both caches share the
// same threshold group.
type Config struct {
	UseOldFlags                         bool
	MaxRelayTransactionBytes            uint32
	OldMaxRelayTransactionBytes         uint32
	OldMaxExtraOversizeTransactions     int
	OldMaxRelayOversizeTransactionBytes uint32
	MaxCacheEntries                     int
	MaxCacheBytes                       uint64
}

func (cfg Config) txCacheConfig() txcache.Config {
	// Cache indices travel as 16-bit values with IndexSentinel reserved, so
	// neither cache may hold more than IndexSentinel entries.
	maxEntries := cfg.MaxCacheEntries
	if maxEntries <= 0 || maxEntries > IndexSentinel {
		maxEntries = IndexSentinel
	}
	return txcache.Config{
		UseOldFlags:                         cfg.UseOldFlags,
		MaxRelayTransactionBytes:            cfg.MaxRelayTransactionBytes,
		OldMaxRelayTransactionBytes:         cfg.OldMaxRelayTransactionBytes,
		OldMaxExtraOversizeTransactions:     cfg.OldMaxExtraOversizeTransactions,
		OldMaxRelayOversizeTransactionBytes: cfg.OldMaxRelayOversizeTransactionBytes,
		MaxEntries:                          maxEntries,
		MaxBytes:                            cfg.MaxCacheBytes,
	}
}

// DefaultConfig returns the modern-regime defaults.
func DefaultConfig() Config {
	return Config{
		MaxRelayTransactionBytes:            DefaultMaxRelayTransactionBytes,
		OldMaxRelayTransactionBytes:         DefaultOldMaxRelayTransactionBytes,
		OldMaxExtraOversizeTransactions:     DefaultOldMaxExtraOversizeTransactions,
		OldMaxRelayOversizeTransactionBytes: DefaultOldMaxRelayOversizeTransactionBytes,
	}
}

// Node is the RelayNode facade: one send cache, one recv cache, one
// blocksAlreadySeen set, one mutex. Every exported method acquires the
// mutex for its full duration, including the external read callback
// DecompressBlock drives — there is no finer-grained locking.
type Node struct {
	mu sync.Mutex

	sendCache *txcache.Cache
	recvCache *txcache.Cache
	seen      *SeenSet

	compressor   *Compressor
	decompressor *Decompressor
}

// NewNode builds a Node under cfg.
func NewNode(cfg Config) *Node {
	sendCache := txcache.New(cfg.txCacheConfig())
	recvCache := txcache.New(cfg.txCacheConfig())
	seen := NewSeenSet()

	return &Node{
		sendCache:    sendCache,
		recvCache:    recvCache,
		seen:         seen,
		compressor:   NewCompressor(sendCache, seen),
		decompressor: NewDecompressor(recvCache, seen),
	}
}

// GetRelayTransaction is the send-side admission entry point: it applies
// the send cache's size policy and, on acceptance, returns the wire-format
// single-transaction relay message. ok is false if the transaction should
// not be relayed.
func (n *Node) GetRelayTransaction(blob []byte) (msg []byte, ok bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.sendCache.Admit(blob) {
		return nil, false
	}
	return txToMsg(blob), true
}

func txToMsg(tx []byte) []byte {
	buf := make([]byte, RelayHeaderSize+len(tx))
	binary.BigEndian.PutUint32(buf[0:4], RelayMagicBytes)
	binary.BigEndian.PutUint32(buf[4:8], TxType)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(tx)))
	copy(buf[RelayHeaderSize:], tx)
	return buf
}

// Reset clears both caches but leaves blocksAlreadySeen untouched.
func (n *Node) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sendCache.Clear()
	n.recvCache.Clear()
}

// CheckRecvTx is the pure recv-side admission predicate.
func (n *Node) CheckRecvTx(size uint32) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.recvCache.CheckSize(size)
}

// MaybeRecvTxOfSize is CheckRecvTx under the node lock, used as a pre-gate
// before a caller reads a transaction body off the wire.
func (n *Node) MaybeRecvTxOfSize(size uint32) bool {
	return n.CheckRecvTx(size)
}

// RecvTx admits blob into the recv cache. It is a precondition violation
// to call it with a blob CheckRecvTx would reject.
func (n *Node) RecvTx(blob []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.recvCache.Add(blob)
}

// ForEachSentTx visits every transaction currently held in the send cache,
// in insertion order.
func (n *Node) ForEachSentTx(visit func(blob []byte)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sendCache.ForEach(visit)
}

// WasTxSent reports whether hash names a transaction currently held in the
// send cache.
func (n *Node) WasTxSent(hash [32]byte) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sendCache.Contains(hash)
}

// BlockSent records hash as sent, returning true the first time and false
// on every subsequent call with the same hash.
func (n *Node) BlockSent(hash [32]byte) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.seen.Insert(hash)
}

// BlocksSent reports the total number of distinct blocks seen so far.
func (n *Node) BlocksSent() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.seen.Len()
}

// CompressBlock implements maybe_compress_block under the node's monitor
// discipline: the mutex is held for the full call, and a batch-lock hint
// is announced to the send cache for the duration of the traversal.
func (n *Node) CompressBlock(hash [32]byte, block []byte, checkMerkle bool) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	release := n.sendCache.BeginBatch()
	defer release()

	return n.compressor.CompressBlock(hash, block, checkMerkle)
}

// DecompressBlock implements decompress_relay_block. r is invoked with the
// node mutex held, so callers must not depend on progress of other
// operations on this Node while a receive is in flight.
func (n *Node) DecompressBlock(r Reader, txCount uint32, checkMerkle bool) (*Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	release := n.recvCache.BeginBatch()
	defer release()

	return n.decompressor.DecompressBlock(r, txCount, checkMerkle)
}
