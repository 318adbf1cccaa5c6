package provisioner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/richlink-iot/meshctl/state"
)

// Provisioner drives multi-step mesh workflows (discovery, provisioning,
// node and publish/subscribe management) on top of a Link and its
// Dispatcher.
//
// The caller owns the goroutines: Link.Loop and Dispatcher.Run must both
// be running for Provisioner operations to make progress.
type Provisioner struct {
	link       *Link
	dispatcher *Dispatcher
	store      *state.Store
	logger     *slog.Logger

	timeout    time.Duration
	settle     time.Duration
	maxRetries int

	// bearerSettle is the pause after the PB-ADV bearer opens, giving the
	// module time to complete the bearer handshake before AT+PROV.
	bearerSettle time.Duration
}

// Step timeouts for the provisioning sequence. Bearer establishment and
// provisioning involve over-the-air exchanges and take far longer than
// ordinary commands.
const (
	bearerTimeout    = 10 * time.Second
	provisionTimeout = 15 * time.Second
	configTimeout    = 10 * time.Second
)

// DefaultModelID is the model bound during provisioning (Generic OnOff
// Server).
const DefaultModelID = "0x1000"

// NewProvisioner creates the orchestration layer. The store may be nil,
// in which case publish/subscribe settings are not recorded locally.
func NewProvisioner(link *Link, dispatcher *Dispatcher, store *state.Store, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{
		link:         link,
		dispatcher:   dispatcher,
		store:        store,
		logger:       logger.With("component", "provisioner"),
		timeout:      link.config.CommandTimeout,
		settle:       link.config.SettleDelay,
		maxRetries:   link.config.MaxRetries,
		bearerSettle: time.Second,
	}
}

// Dispatcher returns the notification dispatcher this provisioner uses.
func (p *Provisioner) Dispatcher() *Dispatcher {
	return p.dispatcher
}

// Version returns the module firmware version.
func (p *Provisioner) Version(ctx context.Context) (string, error) {
	result, err := CmdVersion().ExecuteWithRetry(ctx, p.link, p.timeout, p.maxRetries)
	if err != nil {
		return "", err
	}
	if !result.Success {
		return "", fmt.Errorf("get version: %s", result.Err)
	}
	return result.Param(0, "unknown"), nil
}

// Role returns the module role ("0" = device, "1" = provisioner).
func (p *Provisioner) Role(ctx context.Context) (string, error) {
	result, err := CmdRole().ExecuteWithRetry(ctx, p.link, p.timeout, p.maxRetries)
	if err != nil {
		return "", err
	}
	if !result.Success {
		return "", fmt.Errorf("get role: %s", result.Err)
	}
	return result.Param(0, "unknown"), nil
}

// VerifyProvisioner checks that the module is configured in the
// provisioner role. Some firmware builds report the role as a word rather
// than a digit.
func (p *Provisioner) VerifyProvisioner(ctx context.Context) bool {
	role, err := p.Role(ctx)
	if err != nil {
		p.logger.Error("verify provisioner role", "error", err)
		return false
	}

	switch role {
	case "1", "PROVISIONER", "Provisioner":
		p.logger.Info("module verified as provisioner")
		return true
	default:
		p.logger.Warn("module is not a provisioner", "role", role)
		return false
	}
}

// Restart reboots the module.
func (p *Provisioner) Restart(ctx context.Context) error {
	result, err := CmdRestart().ExecuteWithRetry(ctx, p.link, p.timeout, p.maxRetries)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("restart module: %s", result.Err)
	}
	return nil
}

// sleep pauses for d or until the context ends.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
