package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/stlalpha/impulse-bbs/internal/framing"
)

// ByteReader is the minimal transport surface the protocol engines need to
// read from. A plain io.Reader satisfies it.
type ByteReader = io.Reader

// Transport is the full duplex byte stream an engine operates over. Every
// read and write is a suspension point; engines never hold a lock across
// one.
type Transport interface {
	io.Reader
	io.Writer
}

// readResult carries the outcome of a single read off the timeout goroutine.
type readResult struct {
	b   byte
	err error
}

// readByteCtx reads one byte from r, honoring ctx cancellation/deadline.
// Plain io.Reader has no deadline support, so a goroutine performs the
// blocking read while the caller selects on ctx.Done(); the goroutine leaks
// until its read unblocks, which is acceptable here since protocol engines
// own their transport for the lifetime of one transfer.
func readByteCtx(ctx context.Context, r ByteReader) (byte, error) {
	ch := make(chan readResult, 1)
	go func() {
		var buf [1]byte
		_, err := io.ReadFull(r, buf[:])
		ch <- readResult{b: buf[0], err: err}
	}()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		return res.b, res.err
	}
}

// readFullCtx reads exactly len(buf) bytes, honoring ctx.
func readFullCtx(ctx context.Context, r ByteReader, buf []byte) error {
	ch := make(chan error, 1)
	go func() {
		_, err := io.ReadFull(r, buf)
		ch <- err
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-ch:
		return err
	}
}

// withTimeout returns a context bounded by d from now, layered on parent.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}

var errCancelled = errors.New("protocol: transfer cancelled")

// isTimeout reports whether err originated from a context deadline.
func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func protoErr(kind framing.ErrorKind, format string, args ...any) error {
	return &framing.ProtocolError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
