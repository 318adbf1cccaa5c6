package provisioner

import (
	"context"
	"errors"
	"fmt"

	"go.bug.st/serial"
)

// SerialDialer opens a provisioner module over a serial port using
// go.bug.st/serial.
type SerialDialer struct {
	// PortName is the serial device path (e.g. "/dev/ttyUSB0", "COM3").
	PortName string
	// Mode overrides the port settings. When nil the module default of
	// 115200 8N1 with no flow control is used.
	Mode *serial.Mode
}

// Dial opens the configured serial port.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("meshctl: context is nil")
	}
	if d.PortName == "" {
		return nil, errors.New("meshctl: serial port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		mode = &serial.Mode{
			BaudRate: 115200,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		}
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", d.PortName, err)
	}

	return port, nil
}
