package peer

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/shruggr/relaynode/hashutil"
	"github.com/shruggr/relaynode/kvstore"
	"github.com/shruggr/relaynode/kvstore/memory"
	"github.com/shruggr/relaynode/merkle"
	"github.com/shruggr/relaynode/metadata"
	"github.com/shruggr/relaynode/multihash"
	"github.com/shruggr/relaynode/relay"
	"github.com/shruggr/relaynode/txindexer"
)

// simpleTx mirrors relay's own test helper: the smallest structurally
// valid transaction the cursor walker accepts.
func simpleTx(tag int32) []byte {
	buf := make([]byte, 10)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(tag))
	buf[4] = 0
	buf[5] = 0
	binary.LittleEndian.PutUint32(buf[6:10], 0)
	return buf
}

func txHash(tx []byte) [32]byte {
	var h [32]byte
	hashutil.DoubleSHA256(tx, h[:])
	return h
}

func buildFullBlock(version int32, root [32]byte, txs [][]byte) []byte {
	block := make([]byte, relay.MessageHeaderSize)
	block = append(block, make([]byte, 4)...)
	binary.LittleEndian.PutUint32(block[relay.MessageHeaderSize:], uint32(version))
	block = append(block, make([]byte, 32)...)
	block = append(block, root[:]...)
	block = append(block, make([]byte, 12)...)
	block = append(block, byte(len(txs)))
	for _, tx := range txs {
		block = append(block, tx...)
	}
	return block
}

// memStore is a minimal in-memory metadata.Store used only to observe
// what OnCompressedBlock persists.
type memStore struct {
	byHeight map[uint64]*metadata.BlockMeta
}

func newMemStore() *memStore { return &memStore{byHeight: make(map[uint64]*metadata.BlockMeta)} }

func (s *memStore) PutBlock(_ context.Context, meta *metadata.BlockMeta) error {
	s.byHeight[meta.Height] = meta
	return nil
}
func (s *memStore) GetBlock(_ context.Context, height uint64) (*metadata.BlockMeta, error) {
	return s.byHeight[height], nil
}
func (s *memStore) GetBlockByHash(_ context.Context, hash kvstore.Hash) (*metadata.BlockMeta, error) {
	for _, m := range s.byHeight {
		if m.BlockHash == hash {
			return m, nil
		}
	}
	return nil, nil
}
func (s *memStore) DeleteBlock(_ context.Context, height uint64) error {
	delete(s.byHeight, height)
	return nil
}
func (s *memStore) GetLatestBlock(_ context.Context) (*metadata.BlockMeta, error) {
	var best *metadata.BlockMeta
	for _, m := range s.byHeight {
		if best == nil || m.Height > best.Height {
			best = m
		}
	}
	return best, nil
}
func (s *memStore) Close() error { return nil }

// recordingIndexer captures every TransactionContext it is handed.
type recordingIndexer struct {
	seen []*txindexer.TransactionContext
}

func (r *recordingIndexer) Index(_ context.Context, tx *txindexer.TransactionContext) ([]*txindexer.IndexResult, error) {
	r.seen = append(r.seen, tx)
	return nil, nil
}
func (r *recordingIndexer) Name() string { return "recording" }

func TestOnCompressedBlockPersistsMetadataAndIndexesTransactions(t *testing.T) {
	store := newMemStore()
	indexer := &recordingIndexer{}
	node := NewNode(Config{Store: store, Indexer: indexer})

	tx := simpleTx(1)
	root := txHash(tx)
	block := buildFullBlock(4, root, [][]byte{tx})

	compressed, err := node.Relay().CompressBlock([32]byte{9}, block, false)
	if err != nil {
		t.Fatalf("CompressBlock failed: %v", err)
	}

	raw := compressed[relay.RelayHeaderSize:]
	result, err := node.OnCompressedBlock(context.Background(), raw, 1, false, uint64(len(compressed)))
	if err != nil {
		t.Fatalf("OnCompressedBlock failed: %v", err)
	}
	if result == nil {
		t.Fatal("expected a non-nil result")
	}

	if node.HeaderChain().Height() != 1 {
		t.Fatalf("expected header chain height 1, got %d", node.HeaderChain().Height())
	}

	meta, err := store.GetBlock(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetBlock failed: %v", err)
	}
	if meta == nil {
		t.Fatal("expected block metadata to be persisted")
	}
	if meta.TxCount != 1 {
		t.Errorf("expected TxCount 1, got %d", meta.TxCount)
	}

	if len(indexer.seen) != 1 {
		t.Fatalf("expected 1 transaction indexed, got %d", len(indexer.seen))
	}
	if !bytesEqual(indexer.seen[0].RawTx, tx) {
		t.Error("expected indexed transaction bytes to match the original")
	}
	wantTxID := txHash(tx)
	if !bytesEqual(indexer.seen[0].TxID, wantTxID[:]) {
		t.Error("expected indexed txid to be the transaction's double-SHA-256")
	}
}

func TestOnCompressedBlockPropagatesTxNotFound(t *testing.T) {
	node := NewNode(Config{})

	wire := make([]byte, relay.BlockHeaderSize)
	binary.LittleEndian.PutUint32(wire[0:4], 4)
	wire = append(wire, 0x00, 0x00) // reference index 0 in an empty recv-cache

	if _, err := node.OnCompressedBlock(context.Background(), wire, 1, false, uint64(len(wire))); err != relay.ErrTxNotFound {
		t.Fatalf("expected ErrTxNotFound, got %v", err)
	}
}

func TestOnCompressedBlockWithoutStoreOrIndexerStillDecompresses(t *testing.T) {
	node := NewNode(Config{})

	tx := simpleTx(1)
	root := txHash(tx)
	block := buildFullBlock(4, root, [][]byte{tx})

	compressed, err := node.Relay().CompressBlock([32]byte{1}, block, false)
	if err != nil {
		t.Fatalf("CompressBlock failed: %v", err)
	}

	raw := compressed[relay.RelayHeaderSize:]
	if _, err := node.OnCompressedBlock(context.Background(), raw, 1, false, uint64(len(compressed))); err != nil {
		t.Fatalf("OnCompressedBlock failed: %v", err)
	}
}

func TestOnCompressedBlockStoresProofLeaves(t *testing.T) {
	kv := memory.New()
	proofs := merkle.NewProofStore(kv, nil)
	node := NewNode(Config{Proofs: proofs})

	txs := [][]byte{simpleTx(1), simpleTx(2)}
	leaves := [][32]byte{txHash(txs[0]), txHash(txs[1])}
	root := foldTwo(leaves[0], leaves[1])
	block := buildFullBlock(4, root, txs)

	compressed, err := node.Relay().CompressBlock([32]byte{4}, block, false)
	if err != nil {
		t.Fatalf("CompressBlock failed: %v", err)
	}

	raw := compressed[relay.RelayHeaderSize:]
	if _, err := node.OnCompressedBlock(context.Background(), raw, 2, false, uint64(len(compressed))); err != nil {
		t.Fatalf("OnCompressedBlock failed: %v", err)
	}

	rootMH, err := multihash.WrapChainHash(kvstore.Hash(root))
	if err != nil {
		t.Fatalf("WrapChainHash failed: %v", err)
	}
	proof, err := proofs.BuildProof(context.Background(), rootMH, 0)
	if err != nil {
		t.Fatalf("expected BuildProof to succeed once leaves are stored, got: %v", err)
	}
	if !merkle.VerifyProof(proof, root) {
		t.Error("expected the stored leaves to fold back to the block's merkle root")
	}
}

func foldTwo(a, b [32]byte) [32]byte {
	var out [32]byte
	hashutil.DoubleSHA256Two32(a[:], b[:], out[:])
	return out
}

func TestWarmCacheNoopWithoutReconcileURL(t *testing.T) {
	node := NewNode(Config{})
	admitted, err := node.WarmCache(context.Background(), []kvstore.Hash{{1}})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if admitted != 0 {
		t.Errorf("expected 0 admitted, got %d", admitted)
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
