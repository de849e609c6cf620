package messages

import (
	"github.com/shruggr/relaynode/kvstore"
)

// BlockHeader contains parsed fields from an 80-byte block header.
type BlockHeader struct {
	Version       int32
	PrevBlockHash kvstore.Hash
	MerkleRoot    kvstore.Hash
	Timestamp     uint32
	Bits          uint32
	Nonce         uint32
}
