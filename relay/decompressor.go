package relay

import (
	"encoding/binary"

	"github.com/shruggr/relaynode/hashutil"
	"github.com/shruggr/relaynode/internal/varint"
	"github.com/shruggr/relaynode/merkle"
	"github.com/shruggr/relaynode/txcache"
)

// Reader is the externally supplied byte-read capability decompression
// blocks on. ReadAll must behave like io.ReadFull: return exactly n bytes
// read or a non-nil error, never a silent short read.
type Reader interface {
	ReadAll(buf []byte) (int, error)
}

// indexPtr is a deferred cache reference: index names a recv-cache
// position as the sender saw it at the moment it processed that
// transaction; pos is the transaction's slot in the reassembled block.
type indexPtr struct {
	index uint16
	pos   int
}

// tweakSort sorts ptrs[start:end] by index ascending while rewriting each
// index to the value the recv-cache will hold for it once every
// earlier-consumed reference has already been removed. It is a merge sort
// where the merge step itself performs the decrement, ported directly from
// the original's recursive form rather than the equivalent "rank minus
// equal-key predecessors" restatement, since the two differ on tie-
// breaking among equal indices and the recursive form is the authoritative
// behavior.
func tweakSort(ptrs []indexPtr, start, end int) {
	if start+1 >= end {
		return
	}
	split := (end-start)/2 + start
	tweakSort(ptrs, start, split)
	tweakSort(ptrs, split, end)

	left := make([]indexPtr, split-start)
	copy(left, ptrs[start:split])

	j, k := 0, split
	for i := start; i < end; i++ {
		if j < len(left) && (k >= end || int(left[j].index)-(k-split) <= int(ptrs[k].index)) {
			ptrs[i] = left[j]
			ptrs[i].index -= uint16(k - split)
			j++
		} else {
			ptrs[i] = ptrs[k]
			k++
		}
	}
}

// Decompressor implements the recv-path block decompression algorithm.
type Decompressor struct {
	recvCache *txcache.Cache
	seen      *SeenSet
}

// NewDecompressor builds a Decompressor over recvCache, sharing seen with
// whatever Compressor (if any) is paired with it on the same Node.
func NewDecompressor(recvCache *txcache.Cache, seen *SeenSet) *Decompressor {
	return &Decompressor{recvCache: recvCache, seen: seen}
}

// Result is what a successful decompression produces. Transactions holds
// the same bytes already concatenated into Block, sliced out individually
// so a caller can feed each one to a downstream indexer without re-parsing
// the reassembled block.
type Result struct {
	WireBytes    uint32
	Block        []byte
	BlockHash    [32]byte
	Transactions [][]byte
}

// DecompressBlock implements do_decompress. txCount is the declared
// transaction count carried in the relay message header. Every recv-cache
// removal happens only after every read against r has already succeeded,
// so a truncated, oversize or otherwise unreadable relay block never
// touches the cache. A reference that misses the cache, or a Merkle root
// mismatch, is detected only once removals have started; the entries
// removed before that point stay removed.
func (d *Decompressor) DecompressBlock(r Reader, txCount uint32, checkMerkle bool) (*Result, error) {
	if txCount > MaxTxCount {
		return nil, ErrTooManyTransactions
	}

	header := make([]byte, BlockHeaderSize)
	if n, err := r.ReadAll(header); err != nil || n != BlockHeaderSize {
		return nil, ErrReadBlockHeader
	}

	if int32(binary.LittleEndian.Uint32(header[0:4])) < 4 {
		return nil, ErrBlockVersionTooLow
	}

	var blockHash [32]byte
	hashutil.DoubleSHA256(header, blockHash[:])
	d.seen.Insert(blockHash)

	if checkMerkle && !hasRequiredWork(blockHash) {
		return nil, ErrBelowDifficulty
	}

	block := make([]byte, 0, BlockHeaderSize+int(txCount)*256)
	block = append(block, header...)
	block = append(block, varint.WriteVarint(uint64(txCount))...)

	wireBytes := uint32(4 * 3)

	txData := make([][]byte, txCount)
	var ptrs []indexPtr

	var builder *merkle.Builder
	if checkMerkle {
		builder = merkle.NewBuilder(int(txCount))
	}

	for i := uint32(0); i < txCount; i++ {
		idxBuf := make([]byte, 2)
		if n, err := r.ReadAll(idxBuf); err != nil || n != 2 {
			return nil, ErrReadTxIndex
		}
		index := binary.BigEndian.Uint16(idxBuf)
		wireBytes += 2

		if index == IndexSentinel {
			lenBuf := make([]byte, 3)
			if n, err := r.ReadAll(lenBuf); err != nil || n != 3 {
				return nil, ErrReadTxLength
			}
			txSize := uint32(lenBuf[0])<<16 | uint32(lenBuf[1])<<8 | uint32(lenBuf[2])
			if txSize > MaxDecompressedTxBytes {
				return nil, ErrTxTooLarge
			}

			body := make([]byte, txSize)
			if n, err := r.ReadAll(body); err != nil || uint32(n) != txSize {
				return nil, ErrReadTxData
			}
			wireBytes += 3 + txSize

			txData[i] = body
			if checkMerkle {
				hashutil.DoubleSHA256(body, builder.Slot(int(i)))
			}
		} else {
			ptrs = append(ptrs, indexPtr{index: index, pos: int(i)})
		}
	}

	// Every ReadAll call above has already succeeded by this point; every
	// recv-cache mutation below happens only now, so a failed read never
	// leaves the cache partially drained.
	tweakSort(ptrs, 0, len(ptrs))

	for _, ptr := range ptrs {
		blob, hash, ok := d.recvCache.RemoveAt(int(ptr.index))
		if !ok {
			return nil, ErrTxNotFound
		}
		txData[ptr.pos] = blob
		if checkMerkle {
			copy(builder.Slot(ptr.pos), hash[:])
		}
	}

	for i := uint32(0); i < txCount; i++ {
		block = append(block, txData[i]...)
	}

	if checkMerkle {
		const merkleRootOffset = 4 + 32
		if !builder.RootMatches(block[merkleRootOffset : merkleRootOffset+32]) {
			return nil, ErrMerkleMismatch
		}
	}

	return &Result{WireBytes: wireBytes, Block: block, BlockHash: blockHash, Transactions: txData}, nil
}
