package provisioner

import "errors"

var (
	// ErrNoDialer is returned when a Link is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order
	// to establish a connection to the provisioner module.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotOpen is returned when a command is issued before Loop has
	// started or after the link was shut down.
	ErrNotOpen = errors.New("link not open")

	// ErrAlreadyClosed is returned when Close is called on a Link that has
	// already been closed.
	ErrAlreadyClosed = errors.New("link already closed")

	// ErrLoopRunning is returned when Loop is called while a previous call
	// is still running. The Link supports exactly one reader.
	ErrLoopRunning = errors.New("loop already running")

	// ErrClosed is reported to callers whose command was still in flight
	// when the link shut down. Callers observe a cancellation, not a
	// timeout.
	ErrClosed = errors.New("link closed while command in flight")

	// ErrTimeout is returned by SendCommand when no matching response
	// arrived within the deadline.
	ErrTimeout = errors.New("timeout waiting for response")
)
