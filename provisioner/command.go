package provisioner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/richlink-iot/meshctl/at"
)

// Command is one AT command in the module's catalogue. The expected
// response type always equals the command name (VER -> VER-MSG and so on).
type Command struct {
	Name   string
	Params []string
}

// NewCommand builds a command from a name and its positional parameters.
func NewCommand(name string, params ...string) Command {
	return Command{Name: name, Params: params}
}

// Build returns the wire form: "AT+<NAME>[ <param> ...]\r\n".
func (c Command) Build() string {
	var b strings.Builder
	b.WriteString(at.Prefix)
	b.WriteString(c.Name)
	for _, p := range c.Params {
		b.WriteByte(' ')
		b.WriteString(p)
	}
	b.WriteString(at.CRLF)
	return b.String()
}

// Result is the structured outcome of a command execution. Protocol-level
// failures (ERROR status, timeout) are reported here rather than as Go
// errors; only environment failures (link closed, not open, context
// cancelled) propagate as errors.
type Result struct {
	Success bool
	Status  string
	Type    string
	Params  []string
	Raw     string
	// Err carries the raw failing line or a timeout description when
	// Success is false.
	Err string
}

// Param returns the response parameter at index i, or def when absent.
func (r *Result) Param(i int, def string) string {
	if i >= 0 && i < len(r.Params) {
		return r.Params[i]
	}
	return def
}

// Execute sends the command and waits for its response.
//
// A module reply with ERROR status yields a Result with Success false and
// no error. A missing reply yields a Result whose Err contains "Timeout".
func (c Command) Execute(ctx context.Context, link *Link, timeout time.Duration) (*Result, error) {
	msg, err := link.SendCommand(ctx, c.Build(), c.Name, timeout)
	switch {
	case err == nil:
		result := &Result{
			Success: msg.IsSuccess(),
			Status:  msg.Status,
			Type:    msg.Type,
			Params:  msg.Params,
			Raw:     msg.Raw,
		}
		if !result.Success {
			result.Err = msg.Raw
		}
		return result, nil

	case errors.Is(err, ErrTimeout):
		if timeout <= 0 {
			timeout = link.config.CommandTimeout
		}
		return &Result{
			Status: at.StatusError,
			Type:   c.Name,
			Raw:    c.Build(),
			Err:    fmt.Sprintf("Timeout after %s", timeout),
		}, nil

	default:
		return nil, err
	}
}

// Fire writes the command without waiting for any response.
func (c Command) Fire(ctx context.Context, link *Link) error {
	_, err := link.SendCommand(ctx, c.Build(), "", 0)
	return err
}

// ExecuteWithRetry runs Execute up to maxRetries+1 times with a fixed
// pause before each retry (never before the first attempt). It returns on
// the first success; after all attempts fail it returns the last failure
// result verbatim. Timeouts and ERROR replies are retried identically.
// This is the only retry policy in the system.
func (c Command) ExecuteWithRetry(ctx context.Context, link *Link, timeout time.Duration, maxRetries int) (*Result, error) {
	var last *Result

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			link.logger.Info("retrying command",
				"command", strings.TrimSpace(c.Build()),
				"attempt", attempt+1,
				"max", maxRetries+1)

			select {
			case <-time.After(link.config.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := c.Execute(ctx, link, timeout)
		if err != nil {
			return nil, err
		}
		if result.Success {
			return result, nil
		}

		last = result
		link.logger.Warn("command failed",
			"command", strings.TrimSpace(c.Build()),
			"status", result.Status,
			"error", result.Err,
			"attempt", attempt+1)
	}

	return last, nil
}

// Catalogue constructors. Parameter order follows the module firmware
// documentation.

func CmdVersion() Command { return NewCommand(at.CmdVersion) }

func CmdRole() Command { return NewCommand(at.CmdRole) }

func CmdRestart() Command { return NewCommand(at.CmdRestart) }

// CmdClearNetwork removes every provisioned node from the mesh.
func CmdClearNetwork() Command { return NewCommand(at.CmdClearNetwork) }

func CmdStartScan() Command { return NewCommand(at.CmdDiscover, "1") }

func CmdStopScan() Command { return NewCommand(at.CmdDiscover, "0") }

// CmdOpenBearer opens a PB-ADV provisioning bearer to the device with the
// given UUID (32 hex characters).
func CmdOpenBearer(deviceUUID string) Command {
	return NewCommand(at.CmdOpenBearer, deviceUUID)
}

// CmdProvision provisions the device behind the open bearer. The assigned
// unicast address is returned as the first response parameter.
func CmdProvision() Command { return NewCommand(at.CmdProvision) }

func CmdAddAppKey(dst string, appKeyIdx, netKeyIdx int) Command {
	return NewCommand(at.CmdAddAppKey, dst, strconv.Itoa(appKeyIdx), strconv.Itoa(netKeyIdx))
}

func CmdBindModel(dst string, elementIdx int, modelID string, appKeyIdx int) Command {
	return NewCommand(at.CmdBindModel, dst, strconv.Itoa(elementIdx), modelID, strconv.Itoa(appKeyIdx))
}

func CmdListNodes() Command { return NewCommand(at.CmdListNodes) }

func CmdRemoveNode(nodeIndex int) Command {
	return NewCommand(at.CmdRemoveNode, strconv.Itoa(nodeIndex))
}

func CmdSetPublish(dst string, elementIdx int, modelID, publishAddr string, appKeyIdx int) Command {
	return NewCommand(at.CmdSetPublish, dst, strconv.Itoa(elementIdx), modelID, publishAddr, strconv.Itoa(appKeyIdx))
}

func CmdClearPublish(dst string, elementIdx int, modelID string, appKeyIdx int) Command {
	return NewCommand(at.CmdClearPublish, dst, strconv.Itoa(elementIdx), modelID, strconv.Itoa(appKeyIdx))
}

func CmdAddSubscription(dst string, elementIdx int, modelID, groupAddr string) Command {
	return NewCommand(at.CmdAddSub, dst, strconv.Itoa(elementIdx), modelID, groupAddr)
}

func CmdRemoveSubscription(dst string, elementIdx int, modelID, groupAddr string) Command {
	return NewCommand(at.CmdRemoveSub, dst, strconv.Itoa(elementIdx), modelID, groupAddr)
}

// CmdSendData sends vendor model data (1-20 bytes, hex encoded) to dst.
func CmdSendData(dst string, elementIdx, appKeyIdx int, ack bool, data string) Command {
	ackParam := "0"
	if ack {
		ackParam = "1"
	}
	return NewCommand(at.CmdSendData, dst, strconv.Itoa(elementIdx), strconv.Itoa(appKeyIdx), ackParam, data)
}
