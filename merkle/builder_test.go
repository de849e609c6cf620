package merkle

import (
	"crypto/sha256"
	"testing"

	"github.com/shruggr/relaynode/hashutil"
)

func pairHash(a, b [32]byte) [32]byte {
	var out [32]byte
	buf := append([]byte(nil), a[:]...)
	hashutil.DoubleSHA256Two32(buf, b[:], out[:])
	return out
}

func TestRootMatchesFourTx(t *testing.T) {
	txids := [][32]byte{
		sha256.Sum256([]byte("tx1")),
		sha256.Sum256([]byte("tx2")),
		sha256.Sum256([]byte("tx3")),
		sha256.Sum256([]byte("tx4")),
	}

	b := NewBuilder(len(txids))
	for i, h := range txids {
		copy(b.Slot(i), h[:])
	}

	h01 := pairHash(txids[0], txids[1])
	h23 := pairHash(txids[2], txids[3])
	want := pairHash(h01, h23)

	if !b.RootMatches(want[:]) {
		t.Fatal("expected root to match")
	}
}

func TestRootMatchesSingleTx(t *testing.T) {
	txid := sha256.Sum256([]byte("single-tx"))
	b := NewBuilder(1)
	copy(b.Slot(0), txid[:])

	if !b.RootMatches(txid[:]) {
		t.Fatal("single tx root should equal txid")
	}
}

func TestRootMatchesOddCountDuplicatesLastSibling(t *testing.T) {
	txids := [][32]byte{
		sha256.Sum256([]byte("tx1")),
		sha256.Sum256([]byte("tx2")),
		sha256.Sum256([]byte("tx3")),
	}
	b := NewBuilder(len(txids))
	for i, h := range txids {
		copy(b.Slot(i), h[:])
	}

	h01 := pairHash(txids[0], txids[1])
	h22 := pairHash(txids[2], txids[2])
	want := pairHash(h01, h22)

	if !b.RootMatches(want[:]) {
		t.Fatal("expected root to match for odd tx count")
	}
}

func TestRootMatchesRejectsDuplicateFinalSibling(t *testing.T) {
	// Three transactions where the third is deliberately equal to the
	// second, reproducing the malleable-tree shape: a naive fold that
	// doesn't guard against it would still compute a root, but
	// RootMatches must refuse it outright.
	tx0 := sha256.Sum256([]byte("tx0"))
	tx1 := sha256.Sum256([]byte("tx1"))

	b := NewBuilder(3)
	copy(b.Slot(0), tx0[:])
	copy(b.Slot(1), tx1[:])
	copy(b.Slot(2), tx1[:]) // duplicate of slot 1, mimicking a duplicated last leaf

	h01 := pairHash(tx0, tx1)
	h22 := pairHash(tx1, tx1)
	root := pairHash(h01, h22)

	if b.RootMatches(root[:]) {
		t.Fatal("expected duplicate-sibling detection to reject the root")
	}
}

func TestRootMatchesWrongRoot(t *testing.T) {
	txid := sha256.Sum256([]byte("single-tx"))
	b := NewBuilder(1)
	copy(b.Slot(0), txid[:])

	other := sha256.Sum256([]byte("not-the-root"))
	if b.RootMatches(other[:]) {
		t.Fatal("expected mismatch to be rejected")
	}
}
