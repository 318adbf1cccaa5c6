package provisioner

import (
	"context"
	"io"
	"strings"
	"sync"
)

// TestTransport is a test helper that simulates a blocking transport using
// channels. The Loop's scanner goroutine continuously reads from the
// transport, so reads must block until data is available, like a real
// serial port would.
//
// OnWrite, when set, is invoked for every line written to the transport,
// letting tests script a peer that replies to commands.
type TestTransport struct {
	mu       sync.Mutex
	readChan chan []byte
	writes   []string
	closed   bool

	OnWrite func(line string)
}

// NewTestTransport creates a new test transport. Exported for use in
// tests.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		readChan: make(chan []byte, 32),
	}
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	line := strings.TrimRight(string(p), "\r\n")

	t.mu.Lock()
	t.writes = append(t.writes, line)
	onWrite := t.OnWrite
	t.mu.Unlock()

	if onWrite != nil {
		onWrite(line)
	}
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	data, ok := <-t.readChan
	if !ok {
		return 0, io.EOF
	}
	return copy(p, data), nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.readChan)
	return nil
}

// SendData queues data to be read from the transport. This simulates the
// module sending lines to the host.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.readChan <- []byte(data)
	}
}

// Writes returns the command lines written so far, trailing line
// terminators stripped.
func (t *TestTransport) Writes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string{}, t.writes...)
}

// TestDialer returns a fixed transport from Dial.
type TestDialer struct {
	Transport Transport
	Err       error
}

func (d TestDialer) Dial(ctx context.Context) (Transport, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Transport, nil
}
