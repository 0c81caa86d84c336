package protocol

import (
	"context"
	"errors"
	"time"

	"github.com/stlalpha/impulse-bbs/internal/framing"
)

// ZmodemConfig bounds the sender/receiver state machines.
type ZmodemConfig struct {
	BufferSize   int
	TimeoutMs    int
	MaxRetries   int
	EnableResume bool
	UseCRC32     bool
}

// DefaultZmodemConfig matches the conventional 8192-byte subpacket buffer.
func DefaultZmodemConfig() ZmodemConfig {
	return ZmodemConfig{BufferSize: 8192, TimeoutMs: 10000, MaxRetries: 10, EnableResume: true}
}

func (c ZmodemConfig) timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

type zSenderState int

const (
	zsSendInit zSenderState = iota
	zsSendFile
	zsSendData
	zsSendEOF
	zsSendFin
	zsDone
	zsFailed
)

// ZmodemSender implements the sender state machine: SendRZInit ->
// SendZFILE -> SendZDATA -> SendZEOF -> SendZFIN -> Done.
type ZmodemSender struct {
	cfg ZmodemConfig
}

func NewZmodemSender(cfg ZmodemConfig) *ZmodemSender {
	return &ZmodemSender{cfg: cfg}
}

// Send transmits one file. If the receiver's ZRPOS offset is nonzero and
// resume is enabled, it seeks into data and resumes from that offset, the
// crash-recovery path a restarted transfer takes.
func (s *ZmodemSender) Send(ctx context.Context, t Transport, info YmodemFileInfo, data []byte) error {
	t = &zmodemCancelReader{Transport: t}
	state := zsSendInit
	useCRC32 := s.cfg.UseCRC32
	offset := uint32(0)
	crcRetries := 0
	var lastErr error

	for {
		switch state {
		case zsSendInit:
			if err := sendHexHeader(t, headerWithPosition(zRQInit, 0)); err != nil {
				return err
			}
			hctx, cancel := withTimeout(ctx, s.cfg.timeout())
			h, err := recvHeader(hctx, t)
			cancel()
			if err != nil {
				lastErr = err
				state = zsFailed
				continue
			}
			if h.Type != zRInit {
				continue
			}
			if h.Position[0]&canFC32 != 0 {
				useCRC32 = useCRC32 || s.cfg.UseCRC32
			}
			state = zsSendFile

		case zsSendFile:
			block0 := encodeBlockZero(info, 128)
			if err := sendHexHeader(t, headerWithPosition(zFile, 0)); err != nil {
				lastErr = err
				state = zsFailed
				continue
			}
			if err := sendSubpacket(t, block0, zCRCW, useCRC32); err != nil {
				lastErr = err
				state = zsFailed
				continue
			}
			hctx, cancel := withTimeout(ctx, s.cfg.timeout())
			h, err := recvHeader(hctx, t)
			cancel()
			if err != nil {
				lastErr = err
				state = zsFailed
				continue
			}
			if h.Type == zRPos && s.cfg.EnableResume {
				offset = h.position()
			}
			state = zsSendData

		case zsSendData:
			if s.cfg.EnableResume && offset > uint32(len(data)) {
				offset = uint32(len(data))
			}
			newOffset, done, err := s.sendDataFrame(ctx, t, data, offset, useCRC32)
			if err != nil {
				lastErr = err
				state = zsFailed
				continue
			}
			if done {
				offset = newOffset
				crcRetries = 0
				state = zsSendEOF
				continue
			}
			if newOffset < offset {
				crcRetries++
				if crcRetries >= s.cfg.MaxRetries {
					lastErr = protoErr(framing.ErrTooManyRetriesKind, "zmodem: too many CRC retries")
					state = zsFailed
					continue
				}
			} else {
				crcRetries = 0
			}
			offset = newOffset

		case zsSendEOF:
			if err := sendHexHeader(t, headerWithPosition(zEOF, uint32(len(data)))); err != nil {
				lastErr = err
				state = zsFailed
				continue
			}
			hctx, cancel := withTimeout(ctx, s.cfg.timeout())
			h, err := recvHeader(hctx, t)
			cancel()
			if err != nil {
				lastErr = err
				state = zsFailed
				continue
			}
			if h.Type != zRInit {
				continue
			}
			state = zsSendFin

		case zsSendFin:
			if err := sendHexHeader(t, headerWithPosition(zFin, 0)); err != nil {
				lastErr = err
				state = zsFailed
				continue
			}
			state = zsDone

		case zsDone:
			return nil

		case zsFailed:
			if errors.Is(lastErr, errZmodemCancelled) {
				return protoErr(framing.ErrCancelledKind, "zmodem send cancelled by peer")
			}
			return protoErr(framing.ErrTooManyRetriesKind, "zmodem send aborted")
		}
	}
}

// sendDataFrame sends one ZDATA header followed by a single subpacket of up
// to BufferSize bytes starting at offset, ZCRCW-terminated so every chunk is
// acknowledged before the next one goes out. A ZRPOS reply means the
// receiver's CRC check on this subpacket failed; the returned offset rewinds
// to the position the receiver last accepted so the caller resends from
// there instead of advancing.
func (s *ZmodemSender) sendDataFrame(ctx context.Context, t Transport, data []byte, offset uint32, useCRC32 bool) (newOffset uint32, done bool, err error) {
	if err := sendBinHeader16(t, headerWithPosition(zData, offset)); err != nil {
		return offset, false, err
	}
	pos := int(offset)
	end := pos + s.cfg.BufferSize
	if end > len(data) {
		end = len(data)
	}
	if err := sendSubpacket(t, data[pos:end], zCRCW, useCRC32); err != nil {
		return offset, false, err
	}
	hctx, cancel := withTimeout(ctx, s.cfg.timeout())
	h, err := recvHeader(hctx, t)
	cancel()
	if err != nil {
		return offset, false, err
	}
	if h.Type == zRPos {
		return h.position(), false, nil
	}
	return uint32(end), end >= len(data), nil
}

type zReceiverState int

const (
	zrInit zReceiverState = iota
	zrFileWait
	zrData
	zrDone
	zrFailed
)

// ZmodemReceiver implements the mirrored receiver state machine.
type ZmodemReceiver struct {
	cfg ZmodemConfig
}

func NewZmodemReceiver(cfg ZmodemConfig) *ZmodemReceiver {
	return &ZmodemReceiver{cfg: cfg}
}

// existingSize, when EnableResume is set and > 0, causes the receiver to
// respond with ZRPOS(existingSize) so the sender resumes mid-file.
func (r *ZmodemReceiver) Receive(ctx context.Context, t Transport, existingSize int64) (YmodemFileInfo, []byte, error) {
	t = &zmodemCancelReader{Transport: t}
	state := zrInit
	var info YmodemFileInfo
	var out []byte
	useCRC32 := r.cfg.UseCRC32
	crcRetries := 0
	var lastErr error

	for {
		switch state {
		case zrInit:
			if err := sendHexHeader(t, headerWithPosition(zRInit, canFC32)); err != nil {
				lastErr = err
				state = zrFailed
				continue
			}
			state = zrFileWait

		case zrFileWait:
			hctx, cancel := withTimeout(ctx, r.cfg.timeout())
			h, err := recvHeader(hctx, t)
			cancel()
			if err != nil {
				lastErr = err
				state = zrFailed
				continue
			}
			if h.Type != zFile {
				continue
			}
			useCRC32 = useCRC32 || h.UseCRC32
			payload, _, err := recvSubpacket(ctx, t, useCRC32)
			if err != nil {
				lastErr = err
				state = zrFailed
				continue
			}
			parsed, ok, err := decodeBlockZero(payload)
			if err != nil || !ok {
				lastErr = err
				state = zrFailed
				continue
			}
			info = parsed

			resumeAt := uint32(0)
			if r.cfg.EnableResume && existingSize > 0 {
				resumeAt = uint32(existingSize)
				out = make([]byte, existingSize)
			}
			if err := sendHexHeader(t, headerWithPosition(zRPos, resumeAt)); err != nil {
				lastErr = err
				state = zrFailed
				continue
			}
			state = zrData

		case zrData:
			hctx, cancel := withTimeout(ctx, r.cfg.timeout())
			h, err := recvHeader(hctx, t)
			cancel()
			if err != nil {
				lastErr = err
				state = zrFailed
				continue
			}
			switch h.Type {
			case zData:
				retried, err := r.readDataSubpackets(ctx, t, &out, useCRC32)
				if err != nil {
					lastErr = err
					state = zrFailed
					continue
				}
				if retried {
					crcRetries++
					if crcRetries >= r.cfg.MaxRetries {
						lastErr = protoErr(framing.ErrTooManyRetriesKind, "zmodem: too many CRC retries")
						state = zrFailed
					}
					continue
				}
				crcRetries = 0
			case zEOF:
				if err := sendHexHeader(t, headerWithPosition(zRInit, canFC32)); err != nil {
					lastErr = err
					state = zrFailed
					continue
				}
				state = zrDone
			}

		case zrDone:
			return info, out, nil

		case zrFailed:
			if errors.Is(lastErr, errZmodemCancelled) {
				return info, nil, protoErr(framing.ErrCancelledKind, "zmodem receive cancelled by peer")
			}
			return info, nil, protoErr(framing.ErrTooManyRetriesKind, "zmodem receive aborted")
		}
	}
}

// readDataSubpackets reads subpackets belonging to one ZDATA frame. A CRC
// mismatch on any subpacket makes it reply ZRPOS(len(*out)) rather than
// propagate the error: retried reports this so the caller can bound
// consecutive retries instead of looping forever against a broken peer.
func (r *ZmodemReceiver) readDataSubpackets(ctx context.Context, t Transport, out *[]byte, useCRC32 bool) (retried bool, err error) {
	for {
		payload, marker, perr := recvSubpacket(ctx, t, useCRC32)
		if perr != nil {
			var pe *framing.ProtocolError
			if errors.As(perr, &pe) && pe.Kind == framing.ErrCrcMismatch {
				if herr := sendHexHeader(t, headerWithPosition(zRPos, uint32(len(*out)))); herr != nil {
					return false, herr
				}
				return true, nil
			}
			return false, perr
		}
		*out = append(*out, payload...)
		switch marker {
		case zCRCW:
			return false, sendHexHeader(t, headerWithPosition(zAckFrame, uint32(len(*out))))
		case zCRCE:
			return false, nil
		case zCRCQ:
			if err := sendHexHeader(t, headerWithPosition(zAckFrame, uint32(len(*out)))); err != nil {
				return false, err
			}
		case zCRCG:
			// continue reading without acking
		}
	}
}

const zAckFrame = 0x03 // ZACK
