// Package peer binds a relay.Node to the ambient collaborators a running
// relay peer needs: a header chain for height tracking, a metadata store
// for persisted block rows, an optional downstream transaction indexer, and
// an optional reconciliation fetcher for warming the recv cache ahead of
// time. relay.Node itself stays free of all of this — peer is the layer
// that turns it into something a long-running process can operate.
package peer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shruggr/relaynode/chainstate"
	"github.com/shruggr/relaynode/hashutil"
	"github.com/shruggr/relaynode/kvstore"
	"github.com/shruggr/relaynode/merkle"
	"github.com/shruggr/relaynode/messages"
	"github.com/shruggr/relaynode/metadata"
	"github.com/shruggr/relaynode/multihash"
	"github.com/shruggr/relaynode/relay"
	"github.com/shruggr/relaynode/txindexer"
)

// Config wires a Node's collaborators together. Store, Indexer and
// ReconcileBaseURL are all optional; a nil Store skips metadata
// persistence, a nil Indexer skips downstream indexing, and an empty
// ReconcileBaseURL disables cache warming.
type Config struct {
	Relay            relay.Config
	Store            metadata.Store
	Indexer          txindexer.Indexer
	Proofs           *merkle.ProofStore
	ReconcileBaseURL string
	Logger           *slog.Logger
}

// Node is the facade a relay peer process runs: one relay.Node for the
// compression protocol itself, one header chain, and the plumbing that
// turns a successfully decompressed block into persisted metadata and
// indexed transactions.
type Node struct {
	relay   *relay.Node
	headers *chainstate.HeaderChain
	store   metadata.Store
	indexer txindexer.Indexer
	proofs  *merkle.ProofStore
	logger  *slog.Logger

	reconcileBaseURL string
}

// NewNode builds a Node under cfg.
func NewNode(cfg Config) *Node {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Node{
		relay:            relay.NewNode(cfg.Relay),
		headers:          chainstate.NewHeaderChain(),
		store:            cfg.Store,
		indexer:          cfg.Indexer,
		proofs:           cfg.Proofs,
		logger:           logger,
		reconcileBaseURL: cfg.ReconcileBaseURL,
	}
}

// HeaderChain returns the node's header chain tracker.
func (n *Node) HeaderChain() *chainstate.HeaderChain { return n.headers }

// Relay returns the underlying relay.Node, for callers that need direct
// access to the send/recv admission entry points (inv handling, tx relay).
func (n *Node) Relay() *relay.Node { return n.relay }

// byteReader adapts a fully-buffered relay message to relay.Reader, so a
// failed decompression can be retried against the same bytes after a
// cache-warming round trip.
type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) ReadAll(dst []byte) (int, error) {
	if len(dst) > len(r.buf)-r.pos {
		return 0, fmt.Errorf("peer: short read: wanted %d bytes, %d remain", len(dst), len(r.buf)-r.pos)
	}
	n := copy(dst, r.buf[r.pos:r.pos+len(dst)])
	r.pos += n
	return n, nil
}

// OnCompressedBlock decompresses a fully-buffered relay-encoded block,
// records the resulting header and metadata on success, and feeds every
// reassembled transaction through the configured indexer. relayBytes is
// the size of the original wire message, recorded for bandwidth
// accounting. If decompression fails because the recv cache is missing a
// referenced transaction, the failure is returned as-is: the recv cache
// carries no record of what a missing index would have hashed to, so
// there is nothing this layer alone can look up to retry with. Callers
// that want resilience against that failure mode should proactively warm
// the cache with WarmCache using txids they already expect to need, before
// decompression runs into them.
func (n *Node) OnCompressedBlock(ctx context.Context, raw []byte, txCount uint32, checkMerkle bool, relayBytes uint64) (*relay.Result, error) {
	result, err := n.relay.DecompressBlock(&byteReader{buf: raw}, txCount, checkMerkle)
	if err != nil {
		if err == relay.ErrTxNotFound && n.reconcileBaseURL != "" {
			n.logger.Warn("decompression failed on an unresolved cache reference; consider WarmCache ahead of the next attempt")
		}
		return nil, err
	}

	header, err := messages.ParseBlockHeader(result.Block[:relay.BlockHeaderSize])
	if err != nil {
		n.logger.Warn("failed to parse decompressed block header", "error", err)
		return result, nil
	}

	leaves := make([][32]byte, len(result.Transactions))
	for i, raw := range result.Transactions {
		hashutil.DoubleSHA256(raw, leaves[i][:])
	}

	height := n.recordBlock(ctx, result, header, relayBytes)
	n.storeProofLeaves(ctx, header, leaves)
	n.indexTransactions(ctx, result, leaves, height)

	return result, nil
}

// recordBlock extends the header chain and, if a metadata store is
// configured, persists the block's summary row. It returns the height the
// block was recorded at, or 0 if the header chain rejected it.
func (n *Node) recordBlock(ctx context.Context, result *relay.Result, header *messages.BlockHeader, relayBytes uint64) uint64 {
	height := n.headers.Height() + 1
	if hdrErr := n.headers.AddHeader(&chainstate.Header{
		Height:     height,
		Hash:       kvstore.Hash(result.BlockHash),
		PrevHash:   header.PrevBlockHash,
		MerkleRoot: header.MerkleRoot,
		Timestamp:  header.Timestamp,
		Bits:       header.Bits,
		Nonce:      header.Nonce,
	}); hdrErr != nil {
		n.logger.Warn("failed to extend header chain", "error", hdrErr, "height", height)
		return 0
	}

	if n.store == nil {
		return height
	}
	meta := &metadata.BlockMeta{
		Height:     height,
		BlockHash:  kvstore.Hash(result.BlockHash),
		MerkleRoot: header.MerkleRoot,
		TxCount:    uint64(len(result.Transactions)),
		RelayBytes: relayBytes,
	}
	if putErr := n.store.PutBlock(ctx, meta); putErr != nil {
		n.logger.Warn("failed to persist block metadata", "error", putErr, "height", height)
	}
	return height
}

// storeProofLeaves records the block's leaf hashes under its Merkle root so
// BuildProof can later answer SPV inclusion-proof requests against it,
// without needing to keep the whole block around.
func (n *Node) storeProofLeaves(ctx context.Context, header *messages.BlockHeader, leaves [][32]byte) {
	if n.proofs == nil {
		return
	}
	root, err := multihash.WrapChainHash(header.MerkleRoot)
	if err != nil {
		n.logger.Warn("failed to wrap merkle root as multihash", "error", err)
		return
	}
	if err := n.proofs.StoreLeaves(ctx, root, leaves); err != nil {
		n.logger.Warn("failed to store proof leaves", "error", err)
	}
}

func (n *Node) indexTransactions(ctx context.Context, result *relay.Result, leaves [][32]byte, height uint64) {
	if n.indexer == nil {
		return
	}
	blockHash := result.BlockHash
	for i, raw := range result.Transactions {
		if _, err := n.indexer.Index(ctx, &txindexer.TransactionContext{
			TxID:        leaves[i][:],
			RawTx:       raw,
			BlockHeight: height,
			BlockHash:   blockHash[:],
		}); err != nil {
			n.logger.Warn("indexer rejected transaction", "error", err)
		}
	}
}

// WarmCache fetches transactions by txid from the reconciliation endpoint
// and admits every one the recv cache is still willing to accept, so a
// later decompression is less likely to reference an index the cache
// cannot resolve. It is a no-op if no reconciliation endpoint is
// configured.
func (n *Node) WarmCache(ctx context.Context, txIDs []kvstore.Hash) (int, error) {
	if n.reconcileBaseURL == "" || len(txIDs) == 0 {
		return 0, nil
	}

	blobs, err := messages.FetchTransactionsByTxID(ctx, n.reconcileBaseURL, txIDs)
	if err != nil {
		return 0, fmt.Errorf("peer: reconciliation fetch failed: %w", err)
	}

	admitted := 0
	for _, blob := range blobs {
		if !n.relay.CheckRecvTx(uint32(len(blob))) {
			continue
		}
		if err := n.relay.RecvTx(blob); err != nil {
			n.logger.Warn("failed to admit reconciled transaction", "error", err)
			continue
		}
		admitted++
	}
	return admitted, nil
}

// Reset clears the underlying relay caches, leaving the header chain and
// blocksAlreadySeen set untouched.
func (n *Node) Reset() {
	n.relay.Reset()
}
