package protocol

import (
	"io"
	"os"
	"sync"
)

// pipeTransport wires two Transports together via OS pipes so a sender and
// receiver state machine can run concurrently in tests against a
// bidirectional pipe instead of a real line. The pipes are buffered, so
// both ends can write before either reads, as both Zmodem ends do at start.
type pipeTransport struct {
	r io.Reader
	w io.Writer
}

func (p *pipeTransport) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipeTransport) Write(b []byte) (int, error) { return p.w.Write(b) }

// newLinkedTransports returns two Transports where writes to one are reads
// on the other, in both directions.
func newLinkedTransports() (a, b Transport) {
	ar, aw, err := os.Pipe()
	if err != nil {
		panic(err)
	}
	br, bw, err := os.Pipe()
	if err != nil {
		panic(err)
	}
	return &pipeTransport{r: ar, w: bw}, &pipeTransport{r: br, w: aw}
}

// runPair runs sender and receiver concurrently and collects both results.
func runPair(senderFn func(Transport) error, receiverFn func(Transport) ([]byte, error)) ([]byte, error, error) {
	senderSide, receiverSide := newLinkedTransports()
	var wg sync.WaitGroup
	var sendErr, recvErr error
	var out []byte
	wg.Add(2)
	go func() {
		defer wg.Done()
		sendErr = senderFn(senderSide)
	}()
	go func() {
		defer wg.Done()
		out, recvErr = receiverFn(receiverSide)
	}()
	wg.Wait()
	return out, sendErr, recvErr
}
