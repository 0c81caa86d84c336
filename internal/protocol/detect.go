// Package protocol implements the Xmodem, Ymodem, and Zmodem sender and
// receiver state machines, their shared auto-detection, and the Zmodem
// frame codec. Framing primitives (CRC, ZDLE, Xmodem block codec) live in
// internal/framing; this package sequences them into complete transfer
// protocols.
package protocol

import (
	"context"
	"time"

	"github.com/stlalpha/impulse-bbs/internal/framing"
)

// Kind identifies a detected or selected transfer protocol.
type Kind int

const (
	Unknown Kind = iota
	KindXmodem
	KindXmodemCRC
	KindYmodem
	KindYmodemG
	KindZmodem
)

func (k Kind) String() string {
	switch k {
	case KindXmodem:
		return "Xmodem"
	case KindXmodemCRC:
		return "Xmodem-CRC"
	case KindYmodem:
		return "Ymodem"
	case KindYmodemG:
		return "Ymodem-G"
	case KindZmodem:
		return "Zmodem"
	default:
		return "Unknown"
	}
}

// DefaultDetectTimeout is the default window a detector waits for enough
// bytes to classify the incoming stream.
const DefaultDetectTimeout = 5 * time.Second

// Detect classifies the start of an incoming byte stream. It returns Unknown
// (not an error) on timeout. Every byte it reads is consumed from r, also
// when the stream ends up classified as Unknown; nothing is pushed back.
//
// Classification, by first meaningful byte(s):
//   - "**\x18B" (ZPAD ZPAD ZDLE 'B')                -> Zmodem
//   - 'G'                                            -> Ymodem-G
//   - 'C'                                            -> Ymodem (CRC initiator)
//   - SOH, then a block number and its complement    -> Xmodem
//   - NAK                                             -> Xmodem checksum
func Detect(ctx context.Context, r ByteReader, timeout time.Duration) (Kind, error) {
	if timeout <= 0 {
		timeout = DefaultDetectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	first, err := readByteCtx(ctx, r)
	if err != nil {
		if ctx.Err() != nil {
			return Unknown, nil
		}
		return Unknown, err
	}

	switch first {
	case '*':
		second, err := readByteCtx(ctx, r)
		if err != nil {
			return Unknown, nil
		}
		if second != '*' {
			return Unknown, nil
		}
		third, err := readByteCtx(ctx, r)
		if err != nil || third != framing.ZDLE {
			return Unknown, nil
		}
		fourth, err := readByteCtx(ctx, r)
		if err != nil || fourth != 'B' {
			return Unknown, nil
		}
		return KindZmodem, nil
	case 'G':
		return KindYmodemG, nil
	case 'C':
		return KindYmodem, nil
	case framing.SOH:
		comp1, err := readByteCtx(ctx, r)
		if err != nil {
			return Unknown, nil
		}
		comp2, err := readByteCtx(ctx, r)
		if err != nil {
			return Unknown, nil
		}
		if comp1+comp2 != 255 {
			return Unknown, nil
		}
		return KindXmodem, nil
	case framing.NAK:
		// A bare NAK is the Xmodem checksum-variant start signal.
		return KindXmodem, nil
	default:
		return Unknown, nil
	}
}
