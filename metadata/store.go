package metadata

import (
	"context"

	"github.com/shruggr/relaynode/kvstore"
)

// BlockMeta is the minimal per-block row a relay peer keeps once a block has
// been fully decompressed and validated. It exists for height/hash lookups
// and basic bandwidth accounting; the transaction bodies themselves live in
// the send/recv tx caches, not here.
type BlockMeta struct {
	Height     uint64
	BlockHash  kvstore.Hash
	MerkleRoot kvstore.Hash
	TxCount    uint64
	RelayBytes uint64 // size of the compressed relay message that produced this block
}

// Store persists BlockMeta rows.
type Store interface {
	// PutBlock stores block metadata.
	PutBlock(ctx context.Context, meta *BlockMeta) error

	// GetBlock retrieves block metadata by height.
	GetBlock(ctx context.Context, height uint64) (*BlockMeta, error)

	// GetBlockByHash retrieves block metadata by block hash.
	GetBlockByHash(ctx context.Context, blockHash kvstore.Hash) (*BlockMeta, error)

	// DeleteBlock removes block metadata, e.g. during reorg cleanup.
	DeleteBlock(ctx context.Context, height uint64) error

	// GetLatestBlock returns the highest block height stored.
	GetLatestBlock(ctx context.Context) (*BlockMeta, error)

	// Close releases any resources.
	Close() error
}
