package protocol

import (
	"context"
	"errors"
	"fmt"

	"github.com/stlalpha/impulse-bbs/internal/framing"
)

// errZmodemCancelled is returned once canRunLength consecutive CAN bytes
// have crossed a zmodemCancelReader: the cancel sequence either side of a
// Zmodem transfer may send instead of a normal reply.
var errZmodemCancelled = errors.New("zmodem: cancelled by peer")

const canRunLength = 5

// zmodemCancelReader wraps a Transport's Read so every byte read during a
// transfer is watched for a CAN run, without every call site needing to
// check for it individually.
type zmodemCancelReader struct {
	Transport
	run int
}

func (c *zmodemCancelReader) Read(b []byte) (int, error) {
	if c.run >= canRunLength {
		return 0, errZmodemCancelled
	}
	n, err := c.Transport.Read(b)
	for i := 0; i < n; i++ {
		if b[i] == framing.CAN {
			c.run++
		} else {
			c.run = 0
		}
		if c.run >= canRunLength {
			return i + 1, errZmodemCancelled
		}
	}
	return n, err
}

// Zmodem wire constants, grounded on the standard Forsberg frame layout.
const (
	zPad  = 0x2A // '*'
	zBin  = 0x41 // 'A' — binary header, CRC-16
	zHex  = 0x42 // 'B' — hex header, CRC-16
	zBin32 = 0x43 // 'C' — binary header, CRC-32
)

// Frame types used by the sender/receiver state machines (a subset of the
// full Forsberg set sufficient for file transfer with resume).
const (
	zRQInit = 0x00
	zRInit  = 0x01
	zFile   = 0x04
	zNak    = 0x06
	zAbort  = 0x07
	zFin    = 0x08
	zRPos   = 0x09
	zData   = 0x0A
	zEOF    = 0x0B
)

// Subpacket end-of-frame markers.
const (
	zCRCE = framing.ZCRCE // frame ends, header follows
	zCRCG = framing.ZCRCG // frame continues, no ack
	zCRCQ = framing.ZCRCQ // frame continues, ack requested
	zCRCW = framing.ZCRCW // frame ends, ack requested
)

// Receiver capability flags advertised in ZRINIT's position field.
const (
	canFC32 = 0x20 // can use 32-bit CRC
)

// zHeader is a parsed Zmodem header: a frame type byte plus a 4-byte
// position/flags field, whose interpretation depends on the frame type.
type zHeader struct {
	Type     byte
	Position [4]byte
	UseCRC32 bool
}

func headerWithPosition(t byte, pos uint32) zHeader {
	var h zHeader
	h.Type = t
	h.Position[0] = byte(pos)
	h.Position[1] = byte(pos >> 8)
	h.Position[2] = byte(pos >> 16)
	h.Position[3] = byte(pos >> 24)
	return h
}

func (h zHeader) position() uint32 {
	return uint32(h.Position[0]) | uint32(h.Position[1])<<8 | uint32(h.Position[2])<<16 | uint32(h.Position[3])<<24
}

var hexDigits = "0123456789abcdef"

func toHex(b byte) [2]byte {
	return [2]byte{hexDigits[b>>4], hexDigits[b&0xF]}
}

func fromHex(hi, lo byte) (byte, error) {
	h, err := hexNibble(hi)
	if err != nil {
		return 0, err
	}
	l, err := hexNibble(lo)
	if err != nil {
		return 0, err
	}
	return h<<4 | l, nil
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("zmodem: invalid hex digit 0x%02X", c)
	}
}

// sendHexHeader transmits a Zmodem HEX header: ZPAD ZPAD ZDLE 'B' type
// data[4] crc16, each payload byte hex-encoded, terminated by CRLF.
func sendHexHeader(t Transport, h zHeader) error {
	var out []byte
	out = append(out, zPad, zPad, framing.ZDLE, zHex)
	crcInput := append([]byte{h.Type}, h.Position[:]...)
	crc := framing.CRC16(crcInput)
	for _, b := range crcInput {
		hx := toHex(b)
		out = append(out, hx[0], hx[1])
	}
	hx := toHex(byte(crc >> 8))
	out = append(out, hx[0], hx[1])
	hx = toHex(byte(crc))
	out = append(out, hx[0], hx[1])
	out = append(out, '\r', '\n')
	_, err := t.Write(out)
	return err
}

// sendBinHeader16 transmits a Zmodem BIN16 header (used for ZDATA).
func sendBinHeader16(t Transport, h zHeader) error {
	var out []byte
	out = append(out, zPad, framing.ZDLE, zBin)
	raw := append([]byte{h.Type}, h.Position[:]...)
	crc := framing.CRC16(raw)
	raw = append(raw, byte(crc>>8), byte(crc))
	out = append(out, framing.EncodeZDLE(raw)...)
	_, err := t.Write(out)
	return err
}

// recvHeader reads and classifies the next header off the wire, skipping
// leading ZPAD bytes and garbage as Zmodem readers conventionally do.
func recvHeader(ctx context.Context, t Transport) (zHeader, error) {
	// Hunt for ZPAD ZDLE.
	for {
		b, err := readByteCtx(ctx, t)
		if err != nil {
			return zHeader{}, err
		}
		if b != zPad {
			continue
		}
		// Consume any additional ZPAD bytes.
		for {
			b2, err := readByteCtx(ctx, t)
			if err != nil {
				return zHeader{}, err
			}
			if b2 == zPad {
				continue
			}
			if b2 != framing.ZDLE {
				break
			}
			kind, err := readByteCtx(ctx, t)
			if err != nil {
				return zHeader{}, err
			}
			switch kind {
			case zHex:
				return recvHexHeaderBody(ctx, t)
			case zBin:
				return recvBinHeaderBody(ctx, t, false)
			case zBin32:
				return recvBinHeaderBody(ctx, t, true)
			default:
				break
			}
			break
		}
		break
	}
	return zHeader{}, protoErr(framing.ErrInvalidBlockHeader, "zmodem: no recognizable header")
}

func recvHexHeaderBody(ctx context.Context, t Transport) (zHeader, error) {
	raw := make([]byte, 5)
	hexBuf := make([]byte, 14) // 5 data bytes + 2 crc bytes, hex-encoded
	if err := readFullCtx(ctx, t, hexBuf); err != nil {
		return zHeader{}, err
	}
	for i := 0; i < 7; i++ {
		b, err := fromHex(hexBuf[i*2], hexBuf[i*2+1])
		if err != nil {
			return zHeader{}, err
		}
		if i < 5 {
			raw[i] = b
		}
	}
	var h zHeader
	h.Type = raw[0]
	copy(h.Position[:], raw[1:5])
	// Trailing CRLF is conventionally present; best-effort consume it.
	_, _ = readByteCtx(ctx, t)
	_, _ = readByteCtx(ctx, t)
	return h, nil
}

func recvBinHeaderBody(ctx context.Context, t Transport, crc32 bool) (zHeader, error) {
	width := 5 + 2
	if crc32 {
		width = 5 + 4
	}
	// Escaped length is unknown up front; read byte by byte, unescaping.
	var raw []byte
	for len(raw) < width {
		b, err := readByteCtx(ctx, t)
		if err != nil {
			return zHeader{}, err
		}
		if b != framing.ZDLE {
			raw = append(raw, b)
			continue
		}
		nb, err := readByteCtx(ctx, t)
		if err != nil {
			return zHeader{}, err
		}
		raw = append(raw, nb^0x40)
	}
	var h zHeader
	h.Type = raw[0]
	copy(h.Position[:], raw[1:5])
	h.UseCRC32 = crc32
	return h, nil
}

// sendSubpacket writes data ZDLE-escaped, followed by ZDLE+marker and the
// CRC (16 or 32 bit) of data+marker.
func sendSubpacket(t Transport, data []byte, marker byte, useCRC32 bool) error {
	var out []byte
	out = append(out, framing.EncodeZDLE(data)...)
	out = append(out, framing.ZDLE, marker)
	crcInput := append(append([]byte{}, data...), marker)
	if useCRC32 {
		crc := framing.CRC32(crcInput)
		raw := []byte{byte(crc), byte(crc >> 8), byte(crc >> 16), byte(crc >> 24)}
		out = append(out, framing.EncodeZDLE(raw)...)
	} else {
		crc := framing.CRC16(crcInput)
		raw := []byte{byte(crc >> 8), byte(crc)}
		out = append(out, framing.EncodeZDLE(raw)...)
	}
	_, err := t.Write(out)
	return err
}

// recvSubpacket reads one ZDLE-escaped subpacket, returning its payload and
// the terminating marker (ZCRCE/ZCRCG/ZCRCQ/ZCRCW).
func recvSubpacket(ctx context.Context, t Transport, useCRC32 bool) (data []byte, marker byte, err error) {
	var encoded []byte
	for {
		b, rerr := readByteCtx(ctx, t)
		if rerr != nil {
			return nil, 0, rerr
		}
		if b != framing.ZDLE {
			encoded = append(encoded, b)
			continue
		}
		nb, rerr := readByteCtx(ctx, t)
		if rerr != nil {
			return nil, 0, rerr
		}
		if isFrameMarkerByte(nb) {
			marker = nb
			encoded = append(encoded, framing.ZDLE, nb)
			break
		}
		if nb == framing.ZDLE {
			encoded = append(encoded, framing.ZDLE)
			continue
		}
		encoded = append(encoded, nb^0x40)
	}

	crcLen := 2
	if useCRC32 {
		crcLen = 4
	}
	crcEncoded := make([]byte, 0, crcLen*2)
	for len(crcEncoded) < crcLen {
		b, rerr := readByteCtx(ctx, t)
		if rerr != nil {
			return nil, 0, rerr
		}
		if b != framing.ZDLE {
			crcEncoded = append(crcEncoded, b)
			continue
		}
		nb, rerr := readByteCtx(ctx, t)
		if rerr != nil {
			return nil, 0, rerr
		}
		crcEncoded = append(crcEncoded, nb^0x40)
	}

	payload, marker2 := framing.TrimFrameMarker(encoded)
	if marker2 != 0 {
		marker = marker2
	}

	crcInput := append(append([]byte{}, payload...), marker)
	if useCRC32 {
		want := uint32(crcEncoded[0]) | uint32(crcEncoded[1])<<8 | uint32(crcEncoded[2])<<16 | uint32(crcEncoded[3])<<24
		if framing.CRC32(crcInput) != want {
			return nil, 0, protoErr(framing.ErrCrcMismatch, "zmodem subpacket CRC32")
		}
	} else {
		want := uint16(crcEncoded[0])<<8 | uint16(crcEncoded[1])
		if framing.CRC16(crcInput) != want {
			return nil, 0, protoErr(framing.ErrCrcMismatch, "zmodem subpacket CRC16")
		}
	}
	return payload, marker, nil
}

func isFrameMarkerByte(b byte) bool {
	switch b {
	case zCRCE, zCRCG, zCRCQ, zCRCW:
		return true
	default:
		return false
	}
}
