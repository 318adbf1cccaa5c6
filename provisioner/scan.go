package provisioner

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/richlink-iot/meshctl/at"
)

// Device is one unprovisioned device reported during a scan.
type Device struct {
	MAC  string
	RSSI int
	UUID string
	Raw  string
}

// scanSession deduplicates discovery reports by UUID. The lock is required
// because the map is mutated by the discovery handler on the dispatcher
// goroutine and read by the scanning caller after the collection window.
type scanSession struct {
	mu      sync.Mutex
	devices map[string]Device
	order   []string
}

func newScanSession() *scanSession {
	return &scanSession{devices: map[string]Device{}}
}

// add records a device unless its UUID was already seen. The first report
// wins; later reports with different RSSI values are ignored.
func (s *scanSession) add(d Device) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[d.UUID]; ok {
		return false
	}
	s.devices[d.UUID] = d
	s.order = append(s.order, d.UUID)
	return true
}

// list returns the discovered devices in first-seen order.
func (s *scanSession) list() []Device {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices := make([]Device, 0, len(s.order))
	for _, uuid := range s.order {
		devices = append(devices, s.devices[uuid])
	}
	return devices
}

// ScanDevices scans for unprovisioned devices for the given duration and
// returns the deduplicated results in discovery order. onFound, when
// non-nil, is invoked once per unique device as it is discovered.
//
// Start-scan is fire-and-forget: the module may begin emitting DIS-MSG
// discovery notifications before (or instead of) acknowledging the
// command. After stop-scan a settle window catches trailing messages.
// Stop-scan is re-attempted on every exit path so the module is never
// left in scanning mode.
func (p *Provisioner) ScanDevices(ctx context.Context, duration time.Duration, onFound func(Device)) ([]Device, error) {
	session := newScanSession()

	id := p.dispatcher.AddHandler(at.TypeDiscover, func(_ context.Context, msg *at.Message) {
		if len(msg.Params) < 3 {
			return
		}
		rssi, err := strconv.Atoi(msg.Params[1])
		if err != nil {
			p.logger.Debug("discovery report with bad RSSI", "raw", msg.Raw)
		}
		device := Device{
			MAC:  msg.Params[0],
			RSSI: rssi,
			UUID: msg.Params[2],
			Raw:  msg.Raw,
		}
		if session.add(device) {
			p.logger.Info("discovered device", "uuid", device.UUID, "rssi", device.RSSI, "mac", device.MAC)
			if onFound != nil {
				onFound(device)
			}
		}
	})
	defer p.dispatcher.RemoveHandler(id)

	defer func() {
		// The module must not be left scanning even when the collection
		// window was aborted.
		if err := CmdStopScan().Fire(context.WithoutCancel(ctx), p.link); err != nil {
			p.logger.Debug("stop scan on cleanup", "error", err)
		}
	}()

	p.logger.Info("starting device scan", "duration", duration)
	if err := CmdStartScan().Fire(ctx, p.link); err != nil {
		return nil, err
	}

	if err := sleep(ctx, duration); err != nil {
		return nil, err
	}

	if err := CmdStopScan().Fire(ctx, p.link); err != nil {
		p.logger.Warn("stop scan", "error", err)
	}

	// Trailing discovery messages may still be in flight.
	if err := sleep(ctx, p.settle); err != nil {
		return nil, err
	}

	devices := session.list()
	p.logger.Info("scan complete", "devices", len(devices))
	return devices, nil
}
