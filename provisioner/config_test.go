package provisioner

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/mock/gomock"
)

func TestConfigBuilderDefaults(t *testing.T) {
	config, err := NewConfigBuilder().
		WithDialer(TestDialer{Transport: NewTestTransport()}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if config.CommandTimeout != 5*time.Second {
		t.Errorf("CommandTimeout: got %s", config.CommandTimeout)
	}
	if config.RetryDelay != 500*time.Millisecond {
		t.Errorf("RetryDelay: got %s", config.RetryDelay)
	}
	if config.SettleDelay != 500*time.Millisecond {
		t.Errorf("SettleDelay: got %s", config.SettleDelay)
	}
	if config.MaxRetries != 1 {
		t.Errorf("MaxRetries: got %d", config.MaxRetries)
	}
	if config.NotificationBuffer != 256 {
		t.Errorf("NotificationBuffer: got %d", config.NotificationBuffer)
	}
	if config.Logger == nil {
		t.Error("Logger not defaulted")
	}
}

func TestConfigBuilderOverrides(t *testing.T) {
	config, err := NewConfigBuilder().
		WithDialer(TestDialer{Transport: NewTestTransport()}).
		WithLogger(testLogger()).
		WithCommandTimeout(time.Second).
		WithRetryDelay(10 * time.Millisecond).
		WithSettleDelay(20 * time.Millisecond).
		WithMaxRetries(3).
		WithNotificationBuffer(16).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if config.CommandTimeout != time.Second || config.MaxRetries != 3 || config.NotificationBuffer != 16 {
		t.Fatalf("overrides not applied: %+v", config)
	}
}

func TestConfigBuilderRequiresDialer(t *testing.T) {
	if _, err := NewConfigBuilder().Build(); !errors.Is(err, ErrNoDialer) {
		t.Fatalf("got %v, want ErrNoDialer", err)
	}
}

func TestNewWithMockDialer(t *testing.T) {
	ctrl := gomock.NewController(t)

	transport := NewMockTransport(ctrl)
	dialer := NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any()).Return(transport, nil)

	config, err := NewConfigBuilder().
		WithDialer(dialer).
		WithLogger(testLogger()).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	link, err := New(context.Background(), config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if link.IsOpen() {
		t.Error("link reports open before Loop started")
	}
}

func TestNewRejectsNilTransport(t *testing.T) {
	ctrl := gomock.NewController(t)

	dialer := NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any()).Return(nil, nil)

	_, err := New(context.Background(), Config{Dialer: dialer, Logger: testLogger()})
	if !errors.Is(err, ErrNotOpen) {
		t.Fatalf("got %v, want ErrNotOpen", err)
	}
}

func TestSerialDialerValidation(t *testing.T) {
	if _, err := (SerialDialer{PortName: "/dev/ttyUSB0"}).Dial(nil); err == nil {
		t.Error("nil context accepted")
	}

	if _, err := (SerialDialer{}).Dial(context.Background()); err == nil {
		t.Error("empty port name accepted")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (SerialDialer{PortName: "/dev/ttyUSB0"}).Dial(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context: got %v", err)
	}
}
