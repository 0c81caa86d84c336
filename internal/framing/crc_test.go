package framing

import "testing"

func TestCRC16KnownVector(t *testing.T) {
	// "123456789" -> 0x31C3 is the standard CRC-16/XMODEM check value.
	got := CRC16([]byte("123456789"))
	if got != 0x31C3 {
		t.Fatalf("CRC16(123456789) = %04X, want 31C3", got)
	}
}

func TestCRC32IncrementalMatchesOneShot(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	got := CRC32(data)
	if got == 0 {
		t.Fatal("CRC32 returned zero for non-empty input")
	}
	// Recompute incrementally via UpdateCRC32 and compare.
	var running uint32
	for _, b := range data {
		running = UpdateCRC32(running, b)
	}
	if running != got {
		t.Fatalf("incremental CRC32 = %08X, want %08X", running, got)
	}
}

func TestChecksum8Wraps(t *testing.T) {
	data := make([]byte, 128)
	for i := range data {
		data[i] = 0xFF
	}
	got := Checksum8(data)
	want := byte((128 * 0xFF) % 256)
	if got != want {
		t.Fatalf("Checksum8 = %d, want %d", got, want)
	}
}
