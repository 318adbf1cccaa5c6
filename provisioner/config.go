package provisioner

import (
	"log/slog"
	"time"
)

// Config holds the settings shared by the Link and the orchestration layer
// built on top of it.
type Config struct {
	// Dialer opens the transport to the module. Required.
	Dialer Dialer
	// Logger receives structured log output. Defaults to slog.Default().
	// Components derive their own child loggers from it; there is no
	// package-level logging state.
	Logger *slog.Logger
	// CommandTimeout is the default deadline for a single command
	// response.
	CommandTimeout time.Duration
	// RetryDelay is the fixed pause before each retry attempt. The first
	// attempt is never delayed.
	RetryDelay time.Duration
	// SettleDelay is the quiescence window used by collect-style
	// operations (scan trailing messages, node listing). The wire
	// protocol has no end-of-list marker, so completion is detected by
	// silence.
	SettleDelay time.Duration
	// MaxRetries is the retry bound for retried commands. A command runs
	// at most MaxRetries+1 times.
	MaxRetries int
	// NotificationBuffer is the capacity of the notification queue.
	// Notifications arriving while the queue is full are dropped and
	// logged.
	NotificationBuffer int
}

func (c *Config) validate() error {
	if c.Dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = 5 * time.Second
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 500 * time.Millisecond
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = 500 * time.Millisecond
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 1
	}
	if c.NotificationBuffer == 0 {
		c.NotificationBuffer = 256
	}
}

// ConfigBuilder assembles a Config fluently.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.Dialer = d
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.Logger = l
	return b
}

func (b *ConfigBuilder) WithCommandTimeout(d time.Duration) *ConfigBuilder {
	b.config.CommandTimeout = d
	return b
}

func (b *ConfigBuilder) WithRetryDelay(d time.Duration) *ConfigBuilder {
	b.config.RetryDelay = d
	return b
}

func (b *ConfigBuilder) WithSettleDelay(d time.Duration) *ConfigBuilder {
	b.config.SettleDelay = d
	return b
}

func (b *ConfigBuilder) WithMaxRetries(n int) *ConfigBuilder {
	b.config.MaxRetries = n
	return b
}

func (b *ConfigBuilder) WithNotificationBuffer(n int) *ConfigBuilder {
	b.config.NotificationBuffer = n
	return b
}

// Build validates the assembled configuration and applies defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	config := b.config
	config.setDefaults()
	if err := config.validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}
