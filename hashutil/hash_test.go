package hashutil

import (
	"bytes"
	"crypto/sha256"
	"testing"
)

func TestDoubleSHA256(t *testing.T) {
	data := []byte("relay node")
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])

	got := make([]byte, 32)
	DoubleSHA256(data, got)

	if !bytes.Equal(got, second[:]) {
		t.Fatalf("DoubleSHA256 mismatch: got %x want %x", got, second)
	}
}

func TestDoubleSHA256Two32Aliasing(t *testing.T) {
	a := sha256.Sum256([]byte("a"))
	b := sha256.Sum256([]byte("b"))

	want := make([]byte, 32)
	DoubleSHA256Two32(a[:], b[:], want)

	// out aliases a, matching how the Merkle fold reuses the left slot.
	got := append([]byte(nil), a[:]...)
	DoubleSHA256Two32(got, b[:], got)

	if !bytes.Equal(got, want) {
		t.Fatalf("aliased DoubleSHA256Two32 mismatch: got %x want %x", got, want)
	}
}

func TestGetBlockHash(t *testing.T) {
	header := make([]byte, 80)
	for i := range header {
		header[i] = byte(i)
	}
	block := append([]byte{0, 0, 0, 0}, header...)

	want := make([]byte, 32)
	DoubleSHA256(header, want)

	got := make([]byte, 32)
	GetBlockHash(block, 4, got)

	if !bytes.Equal(got, want) {
		t.Fatalf("GetBlockHash mismatch: got %x want %x", got, want)
	}
}
