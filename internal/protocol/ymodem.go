package protocol

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stlalpha/impulse-bbs/internal/framing"
)

// YmodemFileInfo is the metadata carried in a Ymodem block 0.
type YmodemFileInfo struct {
	Name  string
	Size  int64
	Mtime time.Time
	Mode  int64
	Serial int64
}

// encodeBlockZero renders file metadata as the ASCII block-0 payload:
// "name\0size mtime mode serial\0", zero-padded to blockSize.
func encodeBlockZero(info YmodemFileInfo, blockSize int) []byte {
	buf := make([]byte, blockSize)
	var sb strings.Builder
	sb.WriteString(info.Name)
	sb.WriteByte(0)
	sb.WriteString(strconv.FormatInt(info.Size, 10))
	sb.WriteByte(' ')
	sb.WriteString(strconv.FormatInt(info.Mtime.Unix(), 8))
	if info.Mode != 0 || info.Serial != 0 {
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatInt(info.Mode, 8))
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatInt(info.Serial, 10))
	}
	sb.WriteByte(0)
	copy(buf, sb.String())
	return buf
}

// decodeBlockZero parses a block-0 payload. An all-zero block signals
// end-of-batch, reported by returning ok=false.
func decodeBlockZero(block []byte) (info YmodemFileInfo, ok bool, err error) {
	allZero := true
	for _, b := range block {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return YmodemFileInfo{}, false, nil
	}

	nameEnd := bytes.IndexByte(block, 0)
	if nameEnd < 0 {
		return info, false, fmt.Errorf("ymodem: block 0 missing name terminator")
	}
	info.Name = string(block[:nameEnd])

	rest := block[nameEnd+1:]
	restEnd := bytes.IndexByte(rest, 0)
	if restEnd >= 0 {
		rest = rest[:restEnd]
	}
	fields := strings.Fields(string(rest))
	if len(fields) >= 1 {
		if n, perr := strconv.ParseInt(fields[0], 10, 64); perr == nil {
			info.Size = n
		}
	}
	if len(fields) >= 2 {
		if n, perr := strconv.ParseInt(fields[1], 8, 64); perr == nil {
			info.Mtime = time.Unix(n, 0).UTC()
		}
	}
	if len(fields) >= 3 {
		if n, perr := strconv.ParseInt(fields[2], 8, 64); perr == nil {
			info.Mode = n
		}
	}
	if len(fields) >= 4 {
		if n, perr := strconv.ParseInt(fields[3], 10, 64); perr == nil {
			info.Serial = n
		}
	}
	return info, true, nil
}

// YmodemBatchFile pairs file metadata with its content for a batch send.
type YmodemBatchFile struct {
	Info YmodemFileInfo
	Data []byte
}

// YmodemSender sends a batch of files: each preceded by a block-0 metadata
// block, terminated by an all-zero block 0. Transport and acknowledgement
// semantics reuse the Xmodem-CRC block format (SOH, 128-byte payload,
// CRC-16); 1K (STX) blocks are not sent.
type YmodemSender struct {
	cfg     XmodemConfig
	gMode   bool // Ymodem-G flag; not consulted by SendBatch.
	inner   *XmodemSender
}

// NewYmodemSender constructs a sender. gMode is recorded but does not change
// how SendBatch sends: every block waits for an ACK, whether the receiver
// started with 'C' or 'G'.
func NewYmodemSender(cfg XmodemConfig, gMode bool) *YmodemSender {
	return &YmodemSender{cfg: cfg, gMode: gMode, inner: NewXmodemSender(cfg)}
}

// SendBatch transmits files in sequence, ending the batch with an all-zero
// block 0.
func (s *YmodemSender) SendBatch(ctx context.Context, t Transport, files []YmodemBatchFile) error {
	startCtx, cancel := withTimeout(ctx, s.cfg.StartTimeout)
	initByte, err := readByteCtx(startCtx, t)
	cancel()
	if err != nil {
		return protoErr(framing.ErrTimeoutKind, "ymodem: no start signal")
	}
	if initByte != framing.C && initByte != framing.G {
		return protoErr(framing.ErrUnexpectedByteKind, "ymodem: expected C/G, got 0x%02X", initByte)
	}

	for _, f := range files {
		block0 := encodeBlockZero(f.Info, 128)
		if err := s.sendOneBlockAndAwaitAck(ctx, t, block0, 0); err != nil {
			return err
		}
		if err := s.inner.Send(ctx, t, f.Data); err != nil {
			return err
		}
		// After EOT/ACK, sender must re-prime with the next file's C/G.
		primeCtx, cancel := withTimeout(ctx, s.cfg.StartTimeout)
		if _, err := readByteCtx(primeCtx, t); err != nil {
			cancel()
			return protoErr(framing.ErrTimeoutKind, "ymodem: no re-prime signal")
		}
		cancel()
	}

	// End of batch: all-zero block 0.
	end := make([]byte, 128)
	return s.sendOneBlockAndAwaitAck(ctx, t, end, 0)
}

func (s *YmodemSender) sendOneBlockAndAwaitAck(ctx context.Context, t Transport, payload []byte, blockNum byte) error {
	blk, err := framing.NewXmodemBlock(blockNum, payload, framing.VariantCRC)
	if err != nil {
		return err
	}
	if _, err := t.Write(blk.Serialize()); err != nil {
		return err
	}
	ackCtx, cancel := withTimeout(ctx, s.cfg.BlockTimeout)
	defer cancel()
	reply, err := readByteCtx(ackCtx, t)
	if err != nil || reply != framing.ACK {
		return protoErr(framing.ErrTimeoutKind, "ymodem: block 0 not acknowledged")
	}
	return nil
}

// YmodemReceiver receives a batch of files.
type YmodemReceiver struct {
	cfg   XmodemConfig
	gMode bool
	inner *XmodemReceiver
}

// NewYmodemReceiver constructs a receiver; gMode makes it send 'G' instead
// of 'C' as the start byte. Blocks are still ACKed one by one and a bad
// block is NAKed, as in plain Ymodem.
func NewYmodemReceiver(cfg XmodemConfig, gMode bool) *YmodemReceiver {
	return &YmodemReceiver{cfg: cfg, gMode: gMode, inner: NewXmodemReceiver(framing.VariantCRC, cfg)}
}

// ReceiveBatch receives files until an end-of-batch block 0 arrives.
func (r *YmodemReceiver) ReceiveBatch(ctx context.Context, t Transport) ([]YmodemBatchFile, error) {
	var files []YmodemBatchFile
	startByte := byte(framing.C)
	if r.gMode {
		startByte = framing.G
	}

	for {
		info, ok, data, err := r.receiveOneEntry(ctx, t, startByte)
		if err != nil {
			return nil, err
		}
		if !ok {
			return files, nil
		}
		files = append(files, YmodemBatchFile{Info: info, Data: data})
	}
}

func (r *YmodemReceiver) receiveOneEntry(ctx context.Context, t Transport, startByte byte) (YmodemFileInfo, bool, []byte, error) {
	tries := 0
	for {
		startCtx, cancel := withTimeout(ctx, r.cfg.StartTimeout)
		if _, err := t.Write([]byte{startByte}); err != nil {
			cancel()
			return YmodemFileInfo{}, false, nil, err
		}
		header, err := readByteCtx(startCtx, t)
		cancel()
		if err != nil {
			tries++
			if tries >= r.cfg.MaxRetries {
				return YmodemFileInfo{}, false, nil, protoErr(framing.ErrTooManyRetriesKind, "ymodem: block 0 timeout")
			}
			continue
		}
		if header != framing.SOH {
			tries++
			continue
		}
		rest := make([]byte, framing.VariantCRC.PacketSize()-1)
		blockCtx, cancelBlock := withTimeout(ctx, r.cfg.BlockTimeout)
		err = readFullCtx(blockCtx, t, rest)
		cancelBlock()
		if err != nil {
			tries++
			continue
		}
		packet := append([]byte{header}, rest...)
		block, err := framing.DeserializeXmodemBlock(packet, true)
		if err != nil {
			_, _ = t.Write([]byte{framing.NAK})
			tries++
			continue
		}
		if _, err := t.Write([]byte{framing.ACK}); err != nil {
			return YmodemFileInfo{}, false, nil, err
		}

		info, ok, err := decodeBlockZero(block.Data)
		if err != nil {
			return YmodemFileInfo{}, false, nil, err
		}
		if !ok {
			return YmodemFileInfo{}, false, nil, nil
		}

		data, err := r.inner.Receive(ctx, t)
		if err != nil {
			return YmodemFileInfo{}, false, nil, err
		}
		return info, true, data, nil
	}
}
