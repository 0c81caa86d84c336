package protocol

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stlalpha/impulse-bbs/internal/framing"
)

// rwTransport composes an independent reader and writer into one Transport,
// for tests that script the bytes a peer would send without needing a real
// io.Pipe round trip.
type rwTransport struct {
	io.Reader
	io.Writer
}

func fastZConfig() ZmodemConfig {
	return ZmodemConfig{BufferSize: 64, TimeoutMs: 3000, MaxRetries: 5, EnableResume: true}
}

func TestZmodemRoundTripSmallFile(t *testing.T) {
	source := bytes.Repeat([]byte("zmodem-payload-"), 30) // > one subpacket buffer
	info := YmodemFileInfo{Name: "test.bin", Size: int64(len(source)), Mtime: time.Unix(1700000000, 0).UTC()}

	sender := NewZmodemSender(fastZConfig())
	receiver := NewZmodemReceiver(fastZConfig())

	ctx := context.Background()
	var gotInfo YmodemFileInfo
	var gotData []byte
	_, sendErr, recvErr := runPair(
		func(tr Transport) error { return sender.Send(ctx, tr, info, source) },
		func(tr Transport) ([]byte, error) {
			var err error
			gotInfo, gotData, err = receiver.Receive(ctx, tr, 0)
			return gotData, err
		},
	)
	if sendErr != nil {
		t.Fatalf("sender error: %v", sendErr)
	}
	if recvErr != nil {
		t.Fatalf("receiver error: %v", recvErr)
	}
	if gotInfo.Name != "test.bin" {
		t.Fatalf("metadata not transferred: got %+v", gotInfo)
	}
	if !bytes.Equal(gotData, source) {
		t.Fatalf("payload mismatch: got %d bytes, want %d", len(gotData), len(source))
	}
}

func TestZmodemResumeFromOffset(t *testing.T) {
	source := bytes.Repeat([]byte("abcdefgh"), 20) // 160 bytes
	existing := int64(64)
	info := YmodemFileInfo{Name: "resume.bin", Size: int64(len(source))}

	sender := NewZmodemSender(fastZConfig())
	receiver := NewZmodemReceiver(fastZConfig())

	ctx := context.Background()
	var gotData []byte
	_, sendErr, recvErr := runPair(
		func(tr Transport) error { return sender.Send(ctx, tr, info, source) },
		func(tr Transport) ([]byte, error) {
			var err error
			_, gotData, err = receiver.Receive(ctx, tr, existing)
			return gotData, err
		},
	)
	if sendErr != nil {
		t.Fatalf("sender error: %v", sendErr)
	}
	if recvErr != nil {
		t.Fatalf("receiver error: %v", recvErr)
	}
	if len(gotData) != len(source) {
		t.Fatalf("resumed output length = %d, want %d", len(gotData), len(source))
	}
	if !bytes.Equal(gotData[existing:], source[existing:]) {
		t.Fatalf("resumed tail mismatch")
	}
}

func TestZmodemSenderCancelsOnCANRun(t *testing.T) {
	canRun := bytes.Repeat([]byte{framing.CAN}, canRunLength)
	tr := rwTransport{Reader: bytes.NewReader(canRun), Writer: io.Discard}
	sender := NewZmodemSender(fastZConfig())

	err := sender.Send(context.Background(), tr, YmodemFileInfo{Name: "x"}, []byte("data"))
	if err == nil {
		t.Fatal("expected cancellation error, got nil")
	}
	var protoErr *framing.ProtocolError
	if !errors.As(err, &protoErr) || protoErr.Kind != framing.ErrCancelledKind {
		t.Fatalf("err = %v, want ProtocolError{Kind: ErrCancelledKind}", err)
	}
}

func TestZmodemReceiverCancelsOnCANRun(t *testing.T) {
	canRun := bytes.Repeat([]byte{framing.CAN}, canRunLength)
	tr := rwTransport{Reader: bytes.NewReader(canRun), Writer: io.Discard}
	receiver := NewZmodemReceiver(fastZConfig())

	_, _, err := receiver.Receive(context.Background(), tr, 0)
	if err == nil {
		t.Fatal("expected cancellation error, got nil")
	}
	var protoErr *framing.ProtocolError
	if !errors.As(err, &protoErr) || protoErr.Kind != framing.ErrCancelledKind {
		t.Fatalf("err = %v, want ProtocolError{Kind: ErrCancelledKind}", err)
	}
}

func TestZmodemReceiverRetriesOnCRCMismatch(t *testing.T) {
	var wireBuf bytes.Buffer
	if err := sendSubpacket(&wireBuf, []byte("hello world"), zCRCW, false); err != nil {
		t.Fatalf("sendSubpacket: %v", err)
	}
	wire := wireBuf.Bytes()
	wire[0] ^= 0xFF // corrupt a data byte so the CRC check fails

	var written bytes.Buffer
	tr := rwTransport{Reader: bytes.NewReader(wire), Writer: &written}
	r := &ZmodemReceiver{cfg: fastZConfig()}

	var out []byte
	retried, err := r.readDataSubpackets(context.Background(), tr, &out, false)
	if err != nil {
		t.Fatalf("readDataSubpackets: %v", err)
	}
	if !retried {
		t.Fatal("expected retried=true on CRC mismatch")
	}
	if len(out) != 0 {
		t.Errorf("out should be unchanged after a mismatched subpacket, got %d bytes", len(out))
	}
	if written.Len() == 0 {
		t.Fatal("expected a ZRPOS header to be written in response")
	}
}

func TestZmodemSenderHonorsZRPOSRetry(t *testing.T) {
	cfg := fastZConfig()
	cfg.BufferSize = 4
	sender := &ZmodemSender{cfg: cfg}
	data := []byte("0123456789")

	var out bytes.Buffer
	newOffset, done, err := sender.sendDataFrame(context.Background(), rwTransportWithZRPOS(t, &out, 2), data, 0, false)
	if err != nil {
		t.Fatalf("sendDataFrame: %v", err)
	}
	if done {
		t.Fatal("expected done=false when the peer asks to rewind via ZRPOS")
	}
	if newOffset != 2 {
		t.Fatalf("newOffset = %d, want 2 (the ZRPOS offset)", newOffset)
	}
}

// rwTransportWithZRPOS returns a Transport whose reply to any header is a
// ZRPOS at the given offset, used to verify the sender rewinds instead of
// advancing when the receiver reports a rejected subpacket.
func rwTransportWithZRPOS(t *testing.T, capture *bytes.Buffer, offset uint32) Transport {
	t.Helper()
	var reply bytes.Buffer
	if err := sendHexHeader(&reply, headerWithPosition(zRPos, offset)); err != nil {
		t.Fatalf("sendHexHeader: %v", err)
	}
	return rwTransport{Reader: bytes.NewReader(reply.Bytes()), Writer: capture}
}
