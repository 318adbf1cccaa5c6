package provisioner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/richlink-iot/meshctl/at"
)

// Handler processes one notification message. Handlers run on the
// dispatcher goroutine; a handler that needs to block simply blocks,
// delaying subsequent handlers for the same stream but nothing else.
type Handler func(ctx context.Context, msg *at.Message)

// HandlerID identifies a registered handler for removal. Go functions are
// not comparable, so registration hands out identity tokens instead.
type HandlerID uint64

type handlerEntry struct {
	id HandlerID
	fn Handler
}

// Dispatcher drains the link's notification queue and fans each message
// out to the handlers registered for its parsed type.
type Dispatcher struct {
	link   *Link
	logger *slog.Logger

	mu       sync.Mutex
	handlers map[string][]handlerEntry
	nextID   HandlerID
}

// NewDispatcher creates a dispatcher for the given link. Run must be
// started (typically in a goroutine) for handlers to be invoked.
func NewDispatcher(link *Link, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		link:     link,
		logger:   logger.With("component", "dispatcher"),
		handlers: map[string][]handlerEntry{},
	}
}

// AddHandler registers a handler for a parsed message type (e.g. "DIS",
// "NL"). Multiple handlers may be registered per type; they run in
// registration order.
func (d *Dispatcher) AddHandler(msgType string, fn Handler) HandlerID {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.handlers[msgType] = append(d.handlers[msgType], handlerEntry{id: id, fn: fn})
	return id
}

// RemoveHandler unregisters a handler. Removing an unknown id is a no-op.
func (d *Dispatcher) RemoveHandler(id HandlerID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for msgType, entries := range d.handlers {
		for i, entry := range entries {
			if entry.id == id {
				d.handlers[msgType] = append(entries[:i], entries[i+1:]...)
				return
			}
		}
	}
}

// Run drains the notification queue until the context is cancelled or the
// link shuts down. Handler panics are recovered and logged; they never
// stop dispatch of subsequent handlers or messages.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-d.link.Notifications():
			if !ok {
				return nil
			}
			d.dispatch(ctx, msg)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, msg *at.Message) {
	d.mu.Lock()
	entries := d.handlers[msg.Type]
	snapshot := make([]handlerEntry, len(entries))
	copy(snapshot, entries)
	d.mu.Unlock()

	if len(snapshot) == 0 {
		d.logger.Debug("unhandled notification", "type", msg.Type, "raw", msg.Raw)
		return
	}

	for _, entry := range snapshot {
		d.invoke(ctx, entry, msg)
	}
}

func (d *Dispatcher) invoke(ctx context.Context, entry handlerEntry, msg *at.Message) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panic", "type", msg.Type, "panic", r)
		}
	}()
	entry.fn(ctx, msg)
}

// WaitForMessage registers an ephemeral handler and suspends until the
// first message of the given type for which filter returns true (a nil
// filter matches everything). The handler is removed afterwards regardless
// of outcome; on timeout ErrTimeout is returned.
func (d *Dispatcher) WaitForMessage(ctx context.Context, msgType string, timeout time.Duration, filter func(*at.Message) bool) (*at.Message, error) {
	resolved := make(chan *at.Message, 1)
	var once sync.Once

	id := d.AddHandler(msgType, func(_ context.Context, msg *at.Message) {
		if filter != nil && !filter(msg) {
			return
		}
		once.Do(func() { resolved <- msg })
	})
	defer d.RemoveHandler(id)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-resolved:
		return msg, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
