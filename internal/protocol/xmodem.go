package protocol

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/stlalpha/impulse-bbs/internal/framing"
)

// XmodemConfig bounds retry and timeout behavior for both sender and
// receiver state machines.
type XmodemConfig struct {
	MaxRetries   int
	BlockTimeout time.Duration
	StartTimeout time.Duration
}

// DefaultXmodemConfig matches the conventional 10-second timeouts and
// 10-retry ceiling most Xmodem implementations settle on.
func DefaultXmodemConfig() XmodemConfig {
	return XmodemConfig{
		MaxRetries:   10,
		BlockTimeout: 10 * time.Second,
		StartTimeout: 10 * time.Second,
	}
}

type xmodemRxState int

const (
	rxWaitingForStart xmodemRxState = iota
	rxAwaitingBlock
	rxDone
	rxFailed
	rxCancelled
)

// XmodemReceiver implements the receiver state machine:
// WaitingForStart -> AwaitingBlock(n) -> Done, with an error edge to
// Failed.
type XmodemReceiver struct {
	cfg     XmodemConfig
	variant framing.Variant
}

// NewXmodemReceiver constructs a receiver that will request the given
// variant (Checksum, CRC, or 1K) during the start handshake.
func NewXmodemReceiver(variant framing.Variant, cfg XmodemConfig) *XmodemReceiver {
	return &XmodemReceiver{cfg: cfg, variant: variant}
}

// Receive drives the state machine to completion, returning the
// reassembled file bytes.
func (r *XmodemReceiver) Receive(ctx context.Context, t Transport) ([]byte, error) {
	state := rxWaitingForStart
	var out bytes.Buffer
	expected := byte(1)
	startTries := 0
	cancelRun := 0

	for {
		switch state {
		case rxWaitingForStart:
			startByte := byte(framing.NAK)
			if r.variant != framing.VariantChecksum {
				startByte = framing.C
			}
			startCtx, cancel := withTimeout(ctx, r.cfg.StartTimeout)
			if _, err := t.Write([]byte{startByte}); err != nil {
				cancel()
				return nil, err
			}
			b, err := readByteCtx(startCtx, t)
			cancel()
			if err != nil {
				startTries++
				if startTries >= r.cfg.MaxRetries {
					state = rxFailed
					continue
				}
				continue
			}
			if b == framing.CAN {
				cancelRun++
				if cancelRun >= 2 {
					state = rxCancelled
				}
				continue
			}
			cancelRun = 0
			if b == framing.EOT {
				_, _ = t.Write([]byte{framing.ACK})
				state = rxDone
				continue
			}
			if err := r.handleFirstBlockByte(ctx, t, b, &out, &expected); err != nil {
				state = rxFailed
				continue
			}
			state = rxAwaitingBlock

		case rxAwaitingBlock:
			if err := r.receiveOneBlock(ctx, t, &out, &expected); err != nil {
				if errors.Is(err, errXmodemEOT) {
					state = rxDone
					continue
				}
				if errors.Is(err, errCancelled) {
					cancelRun++
					if cancelRun >= 2 {
						state = rxCancelled
					}
					continue
				}
				cancelRun = 0
				state = rxFailed
				continue
			}
			cancelRun = 0

		case rxDone:
			return out.Bytes(), nil

		case rxFailed:
			return nil, protoErr(framing.ErrTooManyRetriesKind, "xmodem receive aborted")

		case rxCancelled:
			return nil, protoErr(framing.ErrCancelledKind, "xmodem receive cancelled by sender")
		}
	}
}

var errXmodemEOT = errors.New("xmodem: end of transmission")

// handleFirstBlockByte processes the header byte of the very first data
// block, which arrives in place of the start handshake's reply.
func (r *XmodemReceiver) handleFirstBlockByte(ctx context.Context, t Transport, first byte, out *bytes.Buffer, expected *byte) error {
	return r.readBlockGivenHeader(ctx, t, first, out, expected)
}

// receiveOneBlock reads one full packet (header already pending on the
// wire) and applies the accept/retransmit/NAK logic.
func (r *XmodemReceiver) receiveOneBlock(ctx context.Context, t Transport, out *bytes.Buffer, expected *byte) error {
	blockCtx, cancel := withTimeout(ctx, r.cfg.BlockTimeout)
	defer cancel()
	header, err := readByteCtx(blockCtx, t)
	if err != nil {
		return err
	}
	if header == framing.CAN {
		return errCancelled
	}
	if header == framing.EOT {
		_, _ = t.Write([]byte{framing.ACK})
		return errXmodemEOT
	}
	return r.readBlockGivenHeader(blockCtx, t, header, out, expected)
}

func (r *XmodemReceiver) readBlockGivenHeader(ctx context.Context, t Transport, header byte, out *bytes.Buffer, expected *byte) error {
	var variant framing.Variant
	switch header {
	case framing.SOH:
		variant = r.variant
		if variant == framing.Variant1K {
			variant = framing.VariantCRC
		}
	case framing.STX:
		variant = framing.Variant1K
	default:
		return r.nak(t)
	}

	rest := make([]byte, variant.PacketSize()-1)
	if err := readFullCtx(ctx, t, rest); err != nil {
		return r.nak(t)
	}
	packet := append([]byte{header}, rest...)

	useCRC := variant != framing.VariantChecksum
	block, err := framing.DeserializeXmodemBlock(packet, useCRC)
	if err != nil {
		return r.nak(t)
	}

	switch {
	case block.BlockNum == *expected:
		out.Write(block.Data)
		*expected++
		_, werr := t.Write([]byte{framing.ACK})
		return werr
	case block.BlockNum == *expected-1:
		// Retransmit of the previous block: ACK without appending again.
		_, werr := t.Write([]byte{framing.ACK})
		return werr
	default:
		return r.nak(t)
	}
}

func (r *XmodemReceiver) nak(t Transport) error {
	_, err := t.Write([]byte{framing.NAK})
	return err
}

type xmodemTxState int

const (
	txWaitStart xmodemTxState = iota
	txSendBlock
	txSendEOT
	txDone
	txFailed
	txCancelled
)

// XmodemSender implements the sender state machine: WaitStart ->
// SendBlock(n) -> SendEOT -> Done, with error edges to Failed/Cancelled.
type XmodemSender struct {
	cfg XmodemConfig
}

// NewXmodemSender constructs a sender; the variant is negotiated from the
// receiver's initial byte (NAK => Checksum, 'C'/'G' => CRC).
func NewXmodemSender(cfg XmodemConfig) *XmodemSender {
	return &XmodemSender{cfg: cfg}
}

// Send transmits data as a sequence of Xmodem blocks sized per the
// negotiated variant, then EOT.
func (s *XmodemSender) Send(ctx context.Context, t Transport, data []byte) error {
	state := txWaitStart
	var variant framing.Variant
	var blocks [][]byte
	blockNum := byte(1)
	idx := 0
	retries := 0
	cancelRun := 0

	for {
		switch state {
		case txWaitStart:
			startCtx, cancel := withTimeout(ctx, s.cfg.StartTimeout)
			b, err := readByteCtx(startCtx, t)
			cancel()
			if err != nil {
				retries++
				if retries >= s.cfg.MaxRetries {
					state = txFailed
					continue
				}
				continue
			}
			switch b {
			case framing.NAK:
				variant = framing.VariantChecksum
			case framing.C, framing.G:
				variant = framing.VariantCRC
			default:
				continue
			}
			blocks = chunkPayload(data, variant.BlockSize())
			state = txSendBlock

		case txSendBlock:
			if idx >= len(blocks) {
				state = txSendEOT
				continue
			}
			blk, err := framing.NewXmodemBlock(blockNum, blocks[idx], variant)
			if err != nil {
				state = txFailed
				continue
			}
			if _, err := t.Write(blk.Serialize()); err != nil {
				state = txFailed
				continue
			}
			ackCtx, cancel := withTimeout(ctx, s.cfg.BlockTimeout)
			reply, err := readByteCtx(ackCtx, t)
			cancel()
			if err != nil {
				retries++
				if retries >= s.cfg.MaxRetries {
					state = txFailed
					continue
				}
				continue
			}
			switch reply {
			case framing.ACK:
				idx++
				blockNum++
				retries = 0
				cancelRun = 0
			case framing.NAK:
				retries++
				cancelRun = 0
				if retries >= s.cfg.MaxRetries {
					state = txFailed
				}
			case framing.CAN:
				cancelRun++
				if cancelRun >= 2 {
					state = txCancelled
				}
			default:
				retries++
				cancelRun = 0
			}

		case txSendEOT:
			if _, err := t.Write([]byte{framing.EOT}); err != nil {
				state = txFailed
				continue
			}
			eotCtx, cancel := withTimeout(ctx, s.cfg.BlockTimeout)
			reply, err := readByteCtx(eotCtx, t)
			cancel()
			if err != nil || reply != framing.ACK {
				retries++
				if retries >= s.cfg.MaxRetries {
					state = txFailed
					continue
				}
				continue
			}
			state = txDone

		case txDone:
			return nil

		case txFailed:
			return protoErr(framing.ErrTooManyRetriesKind, "xmodem send aborted")

		case txCancelled:
			return protoErr(framing.ErrCancelledKind, "xmodem send cancelled by receiver")
		}
	}
}

// chunkPayload splits data into fixed-size blocks, padding the final short
// block with SUB (0x1A), the standard Xmodem pad byte.
func chunkPayload(data []byte, size int) [][]byte {
	var out [][]byte
	for i := 0; i < len(data); i += size {
		end := i + size
		if end > len(data) {
			chunk := make([]byte, size)
			copy(chunk, data[i:])
			for j := len(data) - i; j < size; j++ {
				chunk[j] = 0x1A
			}
			out = append(out, chunk)
			break
		}
		out = append(out, data[i:end])
	}
	if len(data) == 0 {
		out = append(out, bytes.Repeat([]byte{0x1A}, size))
	}
	return out
}
