package provisioner

import (
	"context"
	"io"
)

// Transport represents an established, bidirectional byte stream to a BLE
// mesh provisioner module.
//
// A Transport is assumed to be already connected and ready for use. It
// provides the low-level I/O primitives required to send AT commands and
// receive responses. Typical implementations include serial ports, TCP
// connections to emulators, or in-memory fakes used for testing.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a Transport to a provisioner module.
//
// Dialer abstracts how the connection is created (for example, via a
// serial port, a TCP-based emulator, or a test double) and is intended to
// be used during link construction only. Once a Transport is obtained, the
// Dialer is no longer needed.
type Dialer interface {
	// Dial creates and returns a connected Transport. It may perform
	// blocking operations and should respect cancellation and deadlines
	// provided by the context. Dial returns an error if the transport
	// cannot be established.
	Dial(ctx context.Context) (Transport, error)
}
