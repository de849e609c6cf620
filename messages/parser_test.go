package messages

import (
	"encoding/hex"
	"testing"
)

func TestParseBlockHeader(t *testing.T) {
	header := make([]byte, 80)

	// Version: 1
	header[0] = 0x01
	header[1] = 0x00
	header[2] = 0x00
	header[3] = 0x00

	prevHashBytes, _ := hex.DecodeString("0000000000000000000000000000000000000000000000000000000000000001")
	copy(header[4:36], prevHashBytes)

	merkleRootBytes, _ := hex.DecodeString("0000000000000000000000000000000000000000000000000000000000000002")
	copy(header[36:68], merkleRootBytes)

	// Timestamp: 1234567890 (bytes 68-72)
	header[68] = 0xD2
	header[69] = 0x02
	header[70] = 0x96
	header[71] = 0x49

	// Bits: 0x1d00ffff (bytes 72-76)
	header[72] = 0xFF
	header[73] = 0xFF
	header[74] = 0x00
	header[75] = 0x1D

	// Nonce: 2083236893 (bytes 76-80)
	header[76] = 0x1D
	header[77] = 0xAC
	header[78] = 0x2B
	header[79] = 0x7C

	parsedHeader, err := ParseBlockHeader(header)
	if err != nil {
		t.Fatalf("ParseBlockHeader failed: %v", err)
	}

	if parsedHeader.Version != 1 {
		t.Errorf("Expected Version 1, got %d", parsedHeader.Version)
	}
	if parsedHeader.Timestamp != 1234567890 {
		t.Errorf("Expected Timestamp 1234567890, got %d", parsedHeader.Timestamp)
	}
	if parsedHeader.Bits != 0x1d00ffff {
		t.Errorf("Expected Bits 0x1d00ffff, got 0x%x", parsedHeader.Bits)
	}
	if parsedHeader.Nonce != 2083236893 {
		t.Errorf("Expected Nonce 2083236893, got %d", parsedHeader.Nonce)
	}
}

func TestParseBlockHeaderInvalidLength(t *testing.T) {
	if _, err := ParseBlockHeader(make([]byte, 79)); err == nil {
		t.Fatal("expected error for invalid header length, got nil")
	}
}
