package relay

import (
	"encoding/binary"

	"github.com/shruggr/relaynode/hashutil"
	"github.com/shruggr/relaynode/internal/varint"
	"github.com/shruggr/relaynode/merkle"
	"github.com/shruggr/relaynode/txcache"
)

// Compressor implements the send-path block compression algorithm: strip
// the peer message header and 80-byte block header, walk every
// transaction without copying, and replace each one the send cache
// already holds with its 2-byte index.
type Compressor struct {
	sendCache *txcache.Cache
	seen      *SeenSet
}

// NewCompressor builds a Compressor over sendCache, sharing seen with
// whatever Decompressor (if any) is paired with it on the same Node.
func NewCompressor(sendCache *txcache.Cache, seen *SeenSet) *Compressor {
	return &Compressor{sendCache: sendCache, seen: seen}
}

// CompressBlock implements maybe_compress_block. hash is the block's
// double-SHA-256; block is the full peer wire message (24-byte message
// header, 80-byte block header, then tx_count transactions). Compressor
// performs no locking of its own — callers serialize access the way
// relay.Node does.
func (c *Compressor) CompressBlock(hash [32]byte, block []byte, checkMerkle bool) ([]byte, error) {
	if checkMerkle && !hasRequiredWork(hash) {
		return nil, ErrBadWork
	}
	if c.seen.Contains(hash) {
		return nil, ErrSeen
	}

	cur := 0
	end := len(block)
	var err error

	if cur, err = varint.MoveForward(cur, MessageHeaderSize, end); err != nil {
		return nil, ErrInvalidSize
	}

	versionStart := cur
	if cur, err = varint.MoveForward(cur, 4, end); err != nil {
		return nil, ErrInvalidSize
	}
	if int32(binary.LittleEndian.Uint32(block[versionStart:cur])) < 4 {
		return nil, ErrSmallVersion
	}

	if cur, err = varint.MoveForward(cur, 32, end); err != nil { // prev block hash
		return nil, ErrInvalidSize
	}
	merkleRootOffset := cur
	if cur, err = varint.MoveForward(cur, BlockHeaderSize-(4+32), end); err != nil { // rest of the header
		return nil, ErrInvalidSize
	}

	txCount, cur, err := varint.ReadVarint(block, cur, end)
	if err != nil {
		return nil, ErrInvalidSize
	}
	if txCount < MinTxCount || txCount > MaxTxCount {
		return nil, ErrTxCountRange
	}

	out := make([]byte, 0, len(block))
	out = append(out, writeRelayHeader(txCount)...)
	out = append(out, block[MessageHeaderSize:MessageHeaderSize+BlockHeaderSize]...)

	var builder *merkle.Builder
	if checkMerkle {
		builder = merkle.NewBuilder(int(txCount))
	}

	for i := uint64(0); i < txCount; i++ {
		txStart := cur
		if cur, err = walkTransaction(block, cur, end); err != nil {
			return nil, ErrInvalidSize
		}
		txBytes := block[txStart:cur]

		index := c.sendCache.Remove(txBytes)

		if checkMerkle {
			hashutil.DoubleSHA256(txBytes, builder.Slot(int(i)))
		}

		if index < 0 {
			out = append(out, 0xff, 0xff)
			txLen := len(txBytes)
			out = append(out, byte(txLen>>16), byte(txLen>>8), byte(txLen))
			out = append(out, txBytes...)
		} else {
			out = append(out, byte(index>>8), byte(index))
		}
	}

	if checkMerkle && !builder.RootMatches(block[merkleRootOffset:merkleRootOffset+32]) {
		return nil, ErrInvalidMerkle
	}

	if !c.seen.Insert(hash) {
		return nil, ErrMutexBroken
	}

	return out, nil
}

// walkTransaction advances cur past one serialized transaction without
// copying any of its bytes.
func walkTransaction(block []byte, cur, end int) (int, error) {
	var err error
	if cur, err = varint.MoveForward(cur, 4, end); err != nil { // version
		return cur, err
	}

	txIns, next, err := varint.ReadVarint(block, cur, end)
	if err != nil {
		return cur, err
	}
	cur = next
	for j := uint64(0); j < txIns; j++ {
		if cur, err = varint.MoveForward(cur, 36, end); err != nil {
			return cur, err
		}
		scriptLen, next, err := varint.ReadVarint(block, cur, end)
		if err != nil {
			return cur, err
		}
		if cur, err = varint.MoveForward(next, int(scriptLen)+4, end); err != nil {
			return cur, err
		}
	}

	txOuts, next, err := varint.ReadVarint(block, cur, end)
	if err != nil {
		return cur, err
	}
	cur = next
	for j := uint64(0); j < txOuts; j++ {
		if cur, err = varint.MoveForward(cur, 8, end); err != nil {
			return cur, err
		}
		scriptLen, next, err := varint.ReadVarint(block, cur, end)
		if err != nil {
			return cur, err
		}
		if cur, err = varint.MoveForward(next, int(scriptLen), end); err != nil {
			return cur, err
		}
	}

	if cur, err = varint.MoveForward(cur, 4, end); err != nil { // locktime
		return cur, err
	}
	return cur, nil
}

// hasRequiredWork checks the difficulty gate: bytes 25..31 of the block
// hash must all be zero.
func hasRequiredWork(hash [32]byte) bool {
	for i := 25; i <= 31; i++ {
		if hash[i] != 0 {
			return false
		}
	}
	return true
}

func writeRelayHeader(txCount uint64) []byte {
	buf := make([]byte, RelayHeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], RelayMagicBytes)
	binary.BigEndian.PutUint32(buf[4:8], BlockType)
	binary.BigEndian.PutUint32(buf[8:12], uint32(txCount))
	return buf
}
