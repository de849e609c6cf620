// Package varint implements the Bitcoin-style compact-size variable length
// integer codec the relay wire format and the underlying transaction
// encoding both use. It is deliberately not multiformats/go-varint: that
// package implements protobuf LEB128, a different wire format entirely.
package varint

import (
	"encoding/binary"
	"errors"
)

// ErrTruncated is returned whenever a read would run past the supplied end
// of buffer, mirroring the C++ original's read_exception.
var ErrTruncated = errors.New("varint: truncated input")

// MoveForward advances cur by n bytes, failing if that would pass end.
func MoveForward(cur int, n int, end int) (int, error) {
	if cur+n > end || cur+n < cur {
		return cur, ErrTruncated
	}
	return cur + n, nil
}

// ReadVarint reads a compact-size integer starting at cur and returns the
// decoded value plus the cursor position just past it.
func ReadVarint(buf []byte, cur int, end int) (uint64, int, error) {
	if cur >= end {
		return 0, cur, ErrTruncated
	}
	prefix := buf[cur]
	switch {
	case prefix < 0xfd:
		return uint64(prefix), cur + 1, nil
	case prefix == 0xfd:
		next, err := MoveForward(cur, 3, end)
		if err != nil {
			return 0, cur, err
		}
		return uint64(binary.LittleEndian.Uint16(buf[cur+1 : cur+3])), next, nil
	case prefix == 0xfe:
		next, err := MoveForward(cur, 5, end)
		if err != nil {
			return 0, cur, err
		}
		return uint64(binary.LittleEndian.Uint32(buf[cur+1 : cur+5])), next, nil
	default: // 0xff
		next, err := MoveForward(cur, 9, end)
		if err != nil {
			return 0, cur, err
		}
		return binary.LittleEndian.Uint64(buf[cur+1 : cur+9]), next, nil
	}
}

// WriteVarint encodes n in compact-size form.
func WriteVarint(n uint64) []byte {
	switch {
	case n < 0xfd:
		return []byte{byte(n)}
	case n <= 0xffff:
		b := make([]byte, 3)
		b[0] = 0xfd
		binary.LittleEndian.PutUint16(b[1:], uint16(n))
		return b
	case n <= 0xffffffff:
		b := make([]byte, 5)
		b[0] = 0xfe
		binary.LittleEndian.PutUint32(b[1:], uint32(n))
		return b
	default:
		b := make([]byte, 9)
		b[0] = 0xff
		binary.LittleEndian.PutUint64(b[1:], n)
		return b
	}
}
