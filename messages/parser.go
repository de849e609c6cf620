package messages

import (
	"encoding/binary"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/chainhash"
)

// ParseBlockHeader extracts key fields from an 80-byte block header.
//
//	0-4:   version (int32)
//	4-36:  prev block hash (32 bytes)
//	36-68: merkle root (32 bytes)
//	68-72: timestamp (uint32)
//	72-76: bits (uint32)
//	76-80: nonce (uint32)
func ParseBlockHeader(header []byte) (*BlockHeader, error) {
	if len(header) != 80 {
		return nil, fmt.Errorf("invalid block header length: got %d, expected 80", len(header))
	}

	version := binary.LittleEndian.Uint32(header[0:4])

	prevBlockHash, err := chainhash.NewHash(header[4:36])
	if err != nil {
		return nil, fmt.Errorf("failed to parse prev block hash: %w", err)
	}

	merkleRoot, err := chainhash.NewHash(header[36:68])
	if err != nil {
		return nil, fmt.Errorf("failed to parse merkle root: %w", err)
	}

	timestamp := binary.LittleEndian.Uint32(header[68:72])
	bits := binary.LittleEndian.Uint32(header[72:76])
	nonce := binary.LittleEndian.Uint32(header[76:80])

	return &BlockHeader{
		Version:       int32(version),
		PrevBlockHash: *prevBlockHash,
		MerkleRoot:    *merkleRoot,
		Timestamp:     timestamp,
		Bits:          bits,
		Nonce:         nonce,
	}, nil
}
