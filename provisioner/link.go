package provisioner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/richlink-iot/meshctl/at"
)

// Link multiplexes one half-duplex AT-command stream to the provisioner
// module across many logically independent request/response exchanges plus
// a stream of unsolicited notifications.
//
// All transport I/O happens inside a single event loop (Loop). A scanner
// goroutine frames incoming bytes into lines and feeds them to the loop;
// the loop is the only writer to the transport and the only mutator of the
// pending-waiter queues, so no locking is needed on the correlation state.
//
// Correlation is strictly FIFO per response type: the wire protocol has no
// per-request id, so the oldest waiter for a type is resolved by the next
// arriving message of that type. Callers issuing concurrent commands with
// the same response type get pure arrival-order matching; serialize such
// commands if strict pairing is required.
type Link struct {
	transport Transport
	config    Config
	logger    *slog.Logger

	// requests carries exec requests into the loop, which registers the
	// waiter before writing the command bytes. This ordering guarantees a
	// response can never arrive before its waiter exists.
	requests chan *execRequest
	// cancels removes a waiter whose caller gave up (timeout or context).
	cancels chan *waiter
	// notifs is the notification queue, drained by the Dispatcher.
	notifs chan *at.Message
	// done is closed when the loop exits; it unblocks callers that would
	// otherwise wait on a loop that is gone.
	done chan struct{}

	running atomic.Bool
	closed  atomic.Bool

	observerMu sync.Mutex
	observers  map[ObserverID]func(string)
	observerID uint64
}

// ObserverID identifies a registered raw-line observer.
type ObserverID uint64

// waiter is a single-assignment result slot for one expected response.
// resolve and cancel are driven exclusively by the loop; resp is buffered
// so resolving never blocks line processing.
type waiter struct {
	expect string
	resp   chan *at.Message
}

// execRequest asks the loop to register a waiter (when expect is set) and
// write the command bytes.
type execRequest struct {
	raw    string
	expect string
	w      *waiter
	// written reports the outcome of the transport write.
	written chan error
}

// New creates a Link using the given configuration and dials the
// transport. Loop must be started (typically in a goroutine) before any
// command can be sent.
func New(ctx context.Context, config Config) (*Link, error) {
	config.setDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	transport, err := config.Dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, ErrNotOpen
	}

	return &Link{
		transport: transport,
		config:    config,
		logger:    config.Logger.With("component", "link"),
		requests:  make(chan *execRequest),
		cancels:   make(chan *waiter),
		notifs:    make(chan *at.Message, config.NotificationBuffer),
		done:      make(chan struct{}),
		observers: map[ObserverID]func(string){},
	}, nil
}

// Loop is the main event loop that owns all transport I/O. It must be
// called exactly once after New and runs until the context is cancelled,
// the transport reaches EOF, or a read error occurs.
//
// On exit every outstanding waiter is cancelled (callers observe ErrClosed)
// and the notification queue is closed.
func (l *Link) Loop(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}

	// pending holds the per-type FIFO waiter queues. Only this goroutine
	// touches it.
	pending := map[string][]*waiter{}

	defer func() {
		l.running.Store(false)
		for _, queue := range pending {
			for _, w := range queue {
				close(w.resp)
			}
		}
		close(l.notifs)
		close(l.done)
	}()

	scanner := bufio.NewScanner(l.transport)
	scanner.Split(at.Splitter)

	lines := make(chan string, 16)
	scanErrs := make(chan error, 1)

	go func() {
		defer close(lines)
		for scanner.Scan() {
			token := scanner.Text()
			if token == "" {
				continue
			}
			select {
			case lines <- token:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case scanErrs <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case req := <-l.requests:
			if req.w != nil {
				pending[req.expect] = append(pending[req.expect], req.w)
			}
			if _, err := l.transport.Write([]byte(req.raw)); err != nil {
				if req.w != nil {
					pending[req.expect] = removeWaiter(pending[req.expect], req.w)
				}
				req.written <- fmt.Errorf("write command %q: %w", req.raw, err)
				continue
			}
			req.written <- nil

		case w := <-l.cancels:
			pending[w.expect] = removeWaiter(pending[w.expect], w)

		case line, ok := <-lines:
			if !ok {
				return io.EOF
			}
			l.route(pending, line)

		case err := <-scanErrs:
			return fmt.Errorf("scanner error: %w", err)
		}
	}
}

// route classifies one line and delivers it in fixed priority order:
// oldest pending waiter for the type, else the notification queue, with
// raw observers always invoked last. Unrouted messages are logged and
// dropped; that is an observability signal, not an error.
func (l *Link) route(pending map[string][]*waiter, line string) {
	msg := at.Parse(line)

	routed := false
	if queue := pending[msg.Type]; len(queue) > 0 {
		w := queue[0]
		pending[msg.Type] = queue[1:]
		w.resp <- msg
		routed = true
	} else if at.IsNotification(msg.Raw) {
		select {
		case l.notifs <- msg:
		default:
			l.logger.Warn("notification queue full, dropping message", "type", msg.Type)
		}
		routed = true
	}

	l.notifyObservers(msg.Raw)

	if !routed && msg.Type != "" {
		l.logger.Warn("unrouted message", "type", msg.Type, "raw", msg.Raw)
	}
}

// SendCommand writes a raw command line and, when expect is non-empty,
// suspends until the matching response arrives or the timeout elapses.
//
// With an empty expect the command is fire-and-forget: SendCommand returns
// (nil, nil) as soon as the bytes are written. On timeout the waiter is
// removed and ErrTimeout is returned; a response that arrives afterwards
// is treated like any other line. If the link shuts down while the command
// is in flight, ErrClosed is returned. Loop must be running; a command
// issued before Loop starts waits for it.
func (l *Link) SendCommand(ctx context.Context, raw, expect string, timeout time.Duration) (*at.Message, error) {
	if l.closed.Load() {
		return nil, ErrNotOpen
	}
	if timeout <= 0 {
		timeout = l.config.CommandTimeout
	}

	req := &execRequest{
		raw:     raw,
		expect:  expect,
		written: make(chan error, 1),
	}
	if expect != "" {
		req.w = &waiter{expect: expect, resp: make(chan *at.Message, 1)}
	}

	select {
	case l.requests <- req:
	case <-l.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := <-req.written; err != nil {
		return nil, err
	}
	if req.w == nil {
		return nil, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg, ok := <-req.w.resp:
		if !ok {
			return nil, ErrClosed
		}
		return msg, nil
	case <-timer.C:
		l.cancelWaiter(req.w)
		return nil, ErrTimeout
	case <-ctx.Done():
		l.cancelWaiter(req.w)
		return nil, ctx.Err()
	}
}

func (l *Link) cancelWaiter(w *waiter) {
	select {
	case l.cancels <- w:
	case <-l.done:
	}
}

// Notifications returns the queue of unsolicited messages. The channel is
// closed when the link shuts down.
func (l *Link) Notifications() <-chan *at.Message {
	return l.notifs
}

// AddObserver registers a pass-through callback invoked with every raw
// line the link processes, regardless of routing. Observer panics are
// recovered; an observer can never fail line processing.
func (l *Link) AddObserver(fn func(raw string)) ObserverID {
	l.observerMu.Lock()
	defer l.observerMu.Unlock()

	l.observerID++
	id := ObserverID(l.observerID)
	l.observers[id] = fn
	return id
}

// RemoveObserver unregisters a raw-line observer.
func (l *Link) RemoveObserver(id ObserverID) {
	l.observerMu.Lock()
	defer l.observerMu.Unlock()

	delete(l.observers, id)
}

func (l *Link) notifyObservers(raw string) {
	l.observerMu.Lock()
	observers := make([]func(string), 0, len(l.observers))
	for _, fn := range l.observers {
		observers = append(observers, fn)
	}
	l.observerMu.Unlock()

	for _, fn := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					l.logger.Error("observer panic", "panic", r)
				}
			}()
			fn(raw)
		}()
	}
}

// IsOpen reports whether the link is usable for commands.
func (l *Link) IsOpen() bool {
	return l.running.Load() && !l.closed.Load()
}

// Close shuts down the link and closes the underlying transport. Closing
// the transport stops the scanner, which terminates the loop; the loop in
// turn cancels every outstanding waiter. After Close the link cannot be
// reused.
func (l *Link) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return ErrAlreadyClosed
	}

	if l.transport != nil {
		return l.transport.Close()
	}
	return nil
}

func removeWaiter(queue []*waiter, w *waiter) []*waiter {
	for i, candidate := range queue {
		if candidate == w {
			return append(queue[:i], queue[i+1:]...)
		}
	}
	return queue
}
