package framing

import (
	"bytes"
	"testing"
)

func TestZDLERoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x41, 0x42, 0x43},
		{0x00, 0x0D, 0x10, 0x11, 0x13, ZDLE, 0x7F, 0xFF},
		{0x90, 0x8D, 0x91, 0x93},
		bytes.Repeat([]byte{0x18}, 5),
	}
	for _, c := range cases {
		enc := EncodeZDLE(c)
		dec, err := DecodeZDLE(enc)
		if err != nil {
			t.Fatalf("DecodeZDLE(%v) error: %v", c, err)
		}
		if !bytes.Equal(dec, c) {
			t.Fatalf("round trip mismatch: got %v, want %v", dec, c)
		}
	}
}

func TestZDLETrailingLoneEscapeFails(t *testing.T) {
	_, err := DecodeZDLE([]byte{0x41, ZDLE})
	if err != ErrInvalidEscape {
		t.Fatalf("expected ErrInvalidEscape, got %v", err)
	}
}

func TestZDLEFrameMarkerPreserved(t *testing.T) {
	encoded := []byte{0x41, 0x42, ZDLE, ZCRCE}
	dec, err := DecodeZDLE(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{0x41, 0x42, ZDLE, ZCRCE}
	if !bytes.Equal(dec, want) {
		t.Fatalf("got %v, want %v", dec, want)
	}
}

func TestU32RoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 0xFFFFFFFF, 0x12345678, 0x18181818} {
		enc := EncodeU32(v)
		got, err := DecodeU32(enc)
		if err != nil {
			t.Fatalf("DecodeU32 error for %d: %v", v, err)
		}
		if got != v {
			t.Fatalf("DecodeU32 = %d, want %d", got, v)
		}
	}
}

func TestDecodeU32UnexpectedEOF(t *testing.T) {
	_, err := DecodeU32(EncodeZDLE([]byte{1, 2}))
	if err == nil {
		t.Fatal("expected error for truncated u32")
	}
}
