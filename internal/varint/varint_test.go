package varint

import "testing"

func TestReadWriteVarintRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 0xfc, 0xfd, 0xfe, 0xffff, 0x10000, 0xffffffff, 0x100000000, ^uint64(0)}

	for _, n := range cases {
		encoded := WriteVarint(n)
		got, next, err := ReadVarint(encoded, 0, len(encoded))
		if err != nil {
			t.Fatalf("ReadVarint(%d) failed: %v", n, err)
		}
		if got != n {
			t.Fatalf("ReadVarint round trip mismatch: got %d want %d", got, n)
		}
		if next != len(encoded) {
			t.Fatalf("ReadVarint cursor mismatch: got %d want %d", next, len(encoded))
		}
	}
}

func TestReadVarintTruncated(t *testing.T) {
	buf := []byte{0xfd, 0x01}
	if _, _, err := ReadVarint(buf, 0, len(buf)); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestMoveForwardTruncated(t *testing.T) {
	if _, err := MoveForward(5, 10, 12); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	got, err := MoveForward(5, 4, 12)
	if err != nil || got != 9 {
		t.Fatalf("MoveForward failed: got=%d err=%v", got, err)
	}
}
