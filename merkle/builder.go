// Package merkle folds transaction hashes into a Bitcoin-style Merkle root
// and, optionally (see proof.go), persists a block's leaf hashes so a relay
// peer can later build inclusion proofs from them without keeping the
// block itself.
package merkle

import "github.com/shruggr/relaynode/hashutil"

// Builder holds a flat N*32 byte buffer of transaction (then row) hashes
// and folds it in place to a single root, mirroring the C++
// MerkleTreeBuilder exactly: no intermediate slice allocations, one buffer
// mutated row by row as the tree collapses.
type Builder struct {
	hashes []byte // len == max(n, 1) * 32
	n      int
}

// NewBuilder reserves a buffer for n transaction hashes. n may be zero when
// Merkle checking is disabled by the caller; a single throwaway slot is
// still allocated so Slot(0) never indexes out of range.
func NewBuilder(n int) *Builder {
	c := n
	if c < 1 {
		c = 1
	}
	return &Builder{hashes: make([]byte, c*32), n: n}
}

// Slot returns the writable 32-byte window for transaction (or, mid-fold,
// row) i.
func (b *Builder) Slot(i int) []byte {
	return b.hashes[i*32 : i*32+32]
}

// RootMatches folds the buffer in place and reports whether the resulting
// root equals expected. The duplicate-final-sibling check at the top of
// each row rejects the well known malleability where an odd final row
// silently duplicates its last hash.
func (b *Builder) RootMatches(expected []byte) bool {
	txCount := b.n
	if txCount == 0 {
		txCount = 1
	}

	if txCount == 1 {
		return string(b.Slot(0)) == string(expected)
	}

	stepCount := 1
	lastMax := txCount - 1

	for rowSize := txCount; rowSize > 1; rowSize = (rowSize + 1) / 2 {
		if string(b.Slot(lastMax-stepCount)) == string(b.Slot(lastMax)) {
			return false
		}

		for i := 0; i < rowSize; i += 2 {
			leftIdx := i * stepCount
			rightIdx := (i + 1) * stepCount
			if rightIdx > lastMax {
				rightIdx = lastMax
			}
			left := b.Slot(leftIdx)
			right := b.Slot(rightIdx)
			hashutil.DoubleSHA256Two32(left, right, left)
		}

		lastMax = ((rowSize - 1) &^ 1) * stepCount
		stepCount *= 2
	}

	return string(b.Slot(0)) == string(expected)
}
