package framing

import (
	"bytes"
	"errors"
	"testing"
)

func makePayload(size int, fill byte) []byte {
	p := make([]byte, size)
	for i := range p {
		p[i] = fill
	}
	return p
}

func TestXmodemBlockRoundTrip(t *testing.T) {
	for _, variant := range []Variant{VariantChecksum, VariantCRC, Variant1K} {
		b, err := NewXmodemBlock(5, makePayload(variant.BlockSize(), 0x42), variant)
		if err != nil {
			t.Fatalf("NewXmodemBlock: %v", err)
		}
		wire := b.Serialize()
		got, err := DeserializeXmodemBlock(wire, variant != VariantChecksum)
		if err != nil {
			t.Fatalf("DeserializeXmodemBlock: %v", err)
		}
		if got.BlockNum != b.BlockNum || !bytes.Equal(got.Data, b.Data) || got.Variant != b.Variant {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, b)
		}
	}
}

func TestXmodemBlockNumberWraparound(t *testing.T) {
	b, err := NewXmodemBlock(255, makePayload(128, 1), VariantChecksum)
	if err != nil {
		t.Fatal(err)
	}
	wire := b.Serialize()
	if wire[1] != 255 || wire[2] != 0 {
		t.Fatalf("complement of 255 should be 0, got %d", wire[2])
	}
	next, err := NewXmodemBlock(0, makePayload(128, 1), VariantChecksum)
	if err != nil {
		t.Fatal(err)
	}
	wire2 := next.Serialize()
	if wire2[1] != 0 || wire2[2] != 255 {
		t.Fatalf("complement of 0 should be 255, got %d", wire2[2])
	}
}

func TestXmodemBadPayloadSize(t *testing.T) {
	_, err := NewXmodemBlock(1, make([]byte, 100), VariantChecksum)
	if err == nil {
		t.Fatal("expected error for wrong payload size")
	}
}

func TestXmodemCorruptedChecksumDetected(t *testing.T) {
	b, _ := NewXmodemBlock(1, makePayload(128, 7), VariantChecksum)
	wire := b.Serialize()
	wire[len(wire)-1] ^= 0xFF
	_, err := DeserializeXmodemBlock(wire, false)
	var perr *ProtocolError
	if !errors.As(err, &perr) || perr.Kind != ErrChecksumMismatch {
		t.Fatalf("expected ChecksumMismatch, got %v", err)
	}
}

func TestXmodemCorruptedCRCDetected(t *testing.T) {
	b, _ := NewXmodemBlock(3, makePayload(128, 9), VariantCRC)
	wire := b.Serialize()
	wire[len(wire)-1] ^= 0xFF
	_, err := DeserializeXmodemBlock(wire, true)
	var perr *ProtocolError
	if !errors.As(err, &perr) || perr.Kind != ErrCrcMismatch {
		t.Fatalf("expected CrcMismatch, got %v", err)
	}
}

func TestXmodemInvalidComplement(t *testing.T) {
	b, _ := NewXmodemBlock(1, makePayload(128, 2), VariantChecksum)
	wire := b.Serialize()
	wire[2] = 0
	_, err := DeserializeXmodemBlock(wire, false)
	var perr *ProtocolError
	if !errors.As(err, &perr) || perr.Kind != ErrInvalidComplement {
		t.Fatalf("expected InvalidComplement, got %v", err)
	}
}

func TestXmodem1KUsesSTX(t *testing.T) {
	b, _ := NewXmodemBlock(1, makePayload(1024, 3), Variant1K)
	wire := b.Serialize()
	if wire[0] != STX {
		t.Fatalf("1K variant should use STX header, got %02X", wire[0])
	}
}
