// Package chainstate tracks the header chain a relay peer has accepted,
// giving the peer layer somewhere to track header continuity and height
// without needing a full block index.
package chainstate

import (
	"fmt"
	"sync"

	"github.com/shruggr/relaynode/kvstore"
)

// Header holds the fields of an 80-byte Bitcoin block header a relay peer
// needs to track chain continuity.
type Header struct {
	Height     uint64
	Hash       kvstore.Hash
	PrevHash   kvstore.Hash
	MerkleRoot kvstore.Hash
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32
}

// HeaderChain is a mutex-guarded, height-indexed view of the chain tip a
// relay peer has accepted. It does not perform proof-of-work or difficulty
// validation itself; callers do that before calling AddHeader.
type HeaderChain struct {
	mu      sync.RWMutex
	headers map[uint64]*Header
	tip     *Header
}

// NewHeaderChain returns an empty header chain.
func NewHeaderChain() *HeaderChain {
	return &HeaderChain{
		headers: make(map[uint64]*Header),
	}
}

// AddHeader appends a header at the chain tip. It rejects headers that
// don't extend the current tip, forcing the caller to go through Reorg for
// anything else.
func (hc *HeaderChain) AddHeader(header *Header) error {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	if hc.tip != nil {
		if header.Height != hc.tip.Height+1 {
			return fmt.Errorf("chainstate: header height %d does not extend tip %d", header.Height, hc.tip.Height)
		}
		if header.PrevHash != hc.tip.Hash {
			return fmt.Errorf("chainstate: header at height %d does not reference tip hash", header.Height)
		}
	}

	hc.headers[header.Height] = header
	hc.tip = header
	return nil
}

// GetHeader returns the header at height, if known.
func (hc *HeaderChain) GetHeader(height uint64) (*Header, bool) {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	h, ok := hc.headers[height]
	return h, ok
}

// GetTip returns the current chain tip, or nil if no header has been added.
func (hc *HeaderChain) GetTip() *Header {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	return hc.tip
}

// Reorg discards every header above height, resetting the tip to that
// height's header (or to empty if height has no header).
func (hc *HeaderChain) Reorg(height uint64) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	for h := range hc.headers {
		if h > height {
			delete(hc.headers, h)
		}
	}
	hc.tip = hc.headers[height]
}

// Height returns the current tip height, or 0 if the chain is empty.
func (hc *HeaderChain) Height() uint64 {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	if hc.tip == nil {
		return 0
	}
	return hc.tip.Height
}
