// Package relay implements the block relay compression/decompression hot
// path: Compressor turns a full block into cache-index-substituted
// relay bytes against a send-side txcache.Cache, Decompressor is its
// inverse against a recv-side txcache.Cache, and Node is the monitor-style
// facade a peer holds one of per connection.
package relay

// Wire layout constants. MessageHeaderSize and BlockHeaderSize describe
// the input a Compressor consumes; RelayHeaderSize is the fixed 12-byte
// header every relay message (single-tx or block) carries.
const (
	MessageHeaderSize = 24
	BlockHeaderSize   = 80
	RelayHeaderSize   = 12

	// IndexSentinel marks a wire slot as carrying an inline transaction
	// rather than a cache reference; a cache therefore never grows past
	// 65535 live entries.
	IndexSentinel = 0xffff

	MinTxCount = 1
	MaxTxCount = 100000

	// MaxDecompressedTxBytes bounds a single inline transaction body read
	// off the wire during decompression, independent of any cache
	// admission policy.
	MaxDecompressedTxBytes = 1_000_000

	DefaultMaxRelayTransactionBytes            = 10_000_000
	DefaultOldMaxRelayTransactionBytes         = 10_000
	DefaultOldMaxExtraOversizeTransactions     = 10
	DefaultOldMaxRelayOversizeTransactionBytes = 100_000
)

// RelayMagicBytes, BlockType and TxType together form the 12-byte relay
// message header {magic:4, type:4, length:4}. Peers on a connection must
// agree on these out of band, exactly as they must agree on a protocol
// version; the values here are this implementation's own wire tag.
var (
	RelayMagicBytes uint32 = 0x52424c58 // "RBLX"
	BlockType       uint32 = 0x00000001
	TxType          uint32 = 0x00000002
)
