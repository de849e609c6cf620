package merkle

import (
	"context"
	"fmt"

	"github.com/shruggr/relaynode/hashutil"
	"github.com/shruggr/relaynode/kvstore"
	"github.com/shruggr/relaynode/multihash"
	"github.com/shruggr/relaynode/proofcache"
)

// ProofNode is one sibling hash on the path from a leaf to a Merkle root.
type ProofNode struct {
	Hash   [32]byte
	IsLeft bool // true if Hash sits to the left of the running hash
}

// Proof is an inclusion proof for a single transaction within a relayed
// block's Merkle tree.
type Proof struct {
	TxID  [32]byte
	Nodes []ProofNode
}

// ProofStore persists the leaf set of relayed blocks, content-addressed by
// their Merkle root, and serves per-transaction inclusion proofs against
// them. This lets a relay peer answer SPV proof requests for blocks it has
// already decompressed without recomputing the tree on every request.
type ProofStore struct {
	kv    kvstore.KVStore
	cache proofcache.Cache[*Proof]
}

// NewProofStore builds a ProofStore over kv. cache may be nil to disable
// proof caching.
func NewProofStore(kv kvstore.KVStore, cache proofcache.Cache[*Proof]) *ProofStore {
	return &ProofStore{kv: kv, cache: cache}
}

// StoreLeaves persists the ordered leaf (txid) hashes of a relayed block,
// keyed by its Merkle root, so BuildProof can later answer proof requests
// against it.
func (s *ProofStore) StoreLeaves(ctx context.Context, root multihash.MerkleHash, leaves [][32]byte) error {
	buf := make([]byte, len(leaves)*32)
	for i, h := range leaves {
		copy(buf[i*32:(i+1)*32], h[:])
	}
	if err := s.kv.Put(ctx, root.Bytes(), buf); err != nil {
		return fmt.Errorf("failed to store leaves: %w", err)
	}
	return nil
}

// BuildProof returns an inclusion proof for the transaction at position
// within a block previously passed to StoreLeaves. Proofs are cached by
// txid so repeated requests against the same transaction skip the fold.
func (s *ProofStore) BuildProof(ctx context.Context, root multihash.MerkleHash, position uint32) (*Proof, error) {
	buf, err := s.kv.Get(ctx, root.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to load leaves: %w", err)
	}
	if buf == nil {
		return nil, fmt.Errorf("no leaves stored for root")
	}
	if len(buf)%32 != 0 {
		return nil, fmt.Errorf("corrupt leaf record: length %d not a multiple of 32", len(buf))
	}

	txCount := len(buf) / 32
	if int(position) >= txCount {
		return nil, fmt.Errorf("position %d exceeds tx count %d", position, txCount)
	}

	var txid [32]byte
	copy(txid[:], buf[int(position)*32:int(position)*32+32])

	if s.cache != nil {
		if cached, ok := s.cache.Get(txid); ok {
			return cached, nil
		}
	}

	row := make([][32]byte, txCount)
	for i := 0; i < txCount; i++ {
		copy(row[i][:], buf[i*32:i*32+32])
	}

	proof := &Proof{TxID: txid}
	pos := int(position)

	for len(row) > 1 {
		siblingIdx := pos ^ 1
		if siblingIdx >= len(row) {
			siblingIdx = len(row) - 1 // odd row: last leaf pairs with itself
		}

		proof.Nodes = append(proof.Nodes, ProofNode{
			Hash:   row[siblingIdx],
			IsLeft: siblingIdx < pos,
		})

		next := make([][32]byte, (len(row)+1)/2)
		for i := range next {
			left := row[2*i]
			right := left
			if 2*i+1 < len(row) {
				right = row[2*i+1]
			}
			var out [32]byte
			hashutil.DoubleSHA256Two32(left[:], right[:], out[:])
			next[i] = out
		}
		row = next
		pos /= 2
	}

	if s.cache != nil {
		s.cache.Put(txid, proof)
	}

	return proof, nil
}

// VerifyProof folds proof back up to a root and compares it to expectedRoot.
func VerifyProof(proof *Proof, expectedRoot [32]byte) bool {
	current := proof.TxID

	for _, node := range proof.Nodes {
		var out [32]byte
		if node.IsLeft {
			hashutil.DoubleSHA256Two32(node.Hash[:], current[:], out[:])
		} else {
			hashutil.DoubleSHA256Two32(current[:], node.Hash[:], out[:])
		}
		current = out
	}

	return current == expectedRoot
}
