package provisioner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/richlink-iot/meshctl/at"
)

// newTestDispatcher builds a running link+dispatcher pair over the given
// transport.
func newTestDispatcher(t *testing.T, transport *TestTransport) (*Link, *Dispatcher) {
	t.Helper()

	link := newTestLink(t, transport)
	startLoop(t, link)

	dispatcher := NewDispatcher(link, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		dispatcher.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	})

	return link, dispatcher
}

func TestDispatcherFanOut(t *testing.T) {
	transport := NewTestTransport()
	_, dispatcher := newTestDispatcher(t, transport)

	first := make(chan *at.Message, 1)
	second := make(chan *at.Message, 1)
	dispatcher.AddHandler(at.TypeDiscover, func(_ context.Context, msg *at.Message) { first <- msg })
	dispatcher.AddHandler(at.TypeDiscover, func(_ context.Context, msg *at.Message) { second <- msg })

	transport.SendData("DIS-MSG AA -48 BB\r\n")

	for _, ch := range []chan *at.Message{first, second} {
		select {
		case msg := <-ch:
			if msg.Type != at.TypeDiscover {
				t.Fatalf("type: got %q, want DIS", msg.Type)
			}
		case <-time.After(time.Second):
			t.Fatal("handler not invoked")
		}
	}
}

func TestDispatcherHandlerPanicIsRecovered(t *testing.T) {
	transport := NewTestTransport()
	_, dispatcher := newTestDispatcher(t, transport)

	invoked := make(chan struct{}, 2)
	dispatcher.AddHandler(at.TypeDiscover, func(context.Context, *at.Message) { panic("handler boom") })
	dispatcher.AddHandler(at.TypeDiscover, func(context.Context, *at.Message) { invoked <- struct{}{} })

	transport.SendData("DIS-MSG AA -48 BB\r\n")

	select {
	case <-invoked:
	case <-time.After(time.Second):
		t.Fatal("panic in one handler stopped dispatch of the next")
	}

	// Dispatch keeps working for subsequent messages.
	transport.SendData("DIS-MSG CC -50 DD\r\n")
	select {
	case <-invoked:
	case <-time.After(time.Second):
		t.Fatal("dispatch stopped after handler panic")
	}
}

func TestDispatcherRemoveHandler(t *testing.T) {
	transport := NewTestTransport()
	_, dispatcher := newTestDispatcher(t, transport)

	seen := make(chan *at.Message, 2)
	kept := make(chan *at.Message, 2)
	id := dispatcher.AddHandler(at.TypeNodeList, func(_ context.Context, msg *at.Message) { seen <- msg })
	dispatcher.AddHandler(at.TypeNodeList, func(_ context.Context, msg *at.Message) { kept <- msg })
	dispatcher.RemoveHandler(id)
	dispatcher.RemoveHandler(id) // unknown id is a no-op

	transport.SendData("NL-MSG 0 0x0100 1 1\r\n")

	select {
	case <-kept:
	case <-time.After(time.Second):
		t.Fatal("remaining handler not invoked")
	}
	select {
	case msg := <-seen:
		t.Fatalf("removed handler invoked with %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWaitForMessage(t *testing.T) {
	transport := NewTestTransport()
	_, dispatcher := newTestDispatcher(t, transport)

	go func() {
		time.Sleep(10 * time.Millisecond)
		transport.SendData("PROV-MSG SUCCESS 0x0100\r\n")
	}()

	msg, err := dispatcher.WaitForMessage(context.Background(), at.TypeProvision, time.Second, nil)
	if err != nil {
		t.Fatalf("WaitForMessage: %v", err)
	}
	if msg.Param(0, "") != "0x0100" {
		t.Fatalf("params: %q", msg.Params)
	}
}

func TestWaitForMessageFilter(t *testing.T) {
	transport := NewTestTransport()
	_, dispatcher := newTestDispatcher(t, transport)

	go func() {
		transport.SendData("DIS-MSG AA -48 WRONG\r\n")
		time.Sleep(10 * time.Millisecond)
		transport.SendData("DIS-MSG BB -50 TARGET\r\n")
	}()

	msg, err := dispatcher.WaitForMessage(context.Background(), at.TypeDiscover, time.Second, func(m *at.Message) bool {
		return m.Param(2, "") == "TARGET"
	})
	if err != nil {
		t.Fatalf("WaitForMessage: %v", err)
	}
	if msg.Param(0, "") != "BB" {
		t.Fatalf("filter matched the wrong message: %q", msg.Params)
	}
}

func TestWaitForMessageTimeout(t *testing.T) {
	transport := NewTestTransport()
	_, dispatcher := newTestDispatcher(t, transport)

	_, err := dispatcher.WaitForMessage(context.Background(), at.TypeProvision, 30*time.Millisecond, nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("got %v, want ErrTimeout", err)
	}
}
