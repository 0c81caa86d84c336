package protocol

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestYmodemBlockZeroRoundTrip(t *testing.T) {
	info := YmodemFileInfo{Name: "readme.txt", Size: 4096, Mtime: time.Unix(1700000000, 0).UTC()}
	enc := encodeBlockZero(info, 128)
	got, ok, err := decodeBlockZero(enc)
	if err != nil {
		t.Fatalf("decodeBlockZero error: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true for non-empty block 0")
	}
	if got.Name != info.Name || got.Size != info.Size {
		t.Fatalf("got %+v, want name/size from %+v", got, info)
	}
}

func TestYmodemBlockZeroEndOfBatch(t *testing.T) {
	end := make([]byte, 128)
	_, ok, err := decodeBlockZero(end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("all-zero block should report ok=false (end of batch)")
	}
}

func TestYmodemBatchSingleFileRoundTrip(t *testing.T) {
	files := []YmodemBatchFile{
		{Info: YmodemFileInfo{Name: "a.txt", Size: 10}, Data: bytes.Repeat([]byte("x"), 10)},
	}
	sender := NewYmodemSender(fastConfig(), false)
	receiver := NewYmodemReceiver(fastConfig(), false)

	ctx := context.Background()
	var result []YmodemBatchFile
	var sendErr, recvErr error
	_, sendErr, _ = runPair(
		func(tr Transport) error { return sender.SendBatch(ctx, tr, files) },
		func(tr Transport) ([]byte, error) {
			var err error
			result, err = receiver.ReceiveBatch(ctx, tr)
			recvErr = err
			return nil, err
		},
	)
	if sendErr != nil {
		t.Fatalf("sender error: %v", sendErr)
	}
	if recvErr != nil {
		t.Fatalf("receiver error: %v", recvErr)
	}
	if len(result) != 1 || result[0].Info.Name != "a.txt" {
		t.Fatalf("unexpected batch result: %+v", result)
	}
}
