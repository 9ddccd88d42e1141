// Package transport implements the Modbus/TCP block-read adapter: one
// instance per physical device, holding a single persistent connection
// and notifying a liveness sink of every success or failure.
package transport

import (
	"fmt"
	"strings"
	"time"

	"github.com/grid-x/modbus"
	"github.com/sirupsen/logrus"
)

const (
	// ModbusPort is the default TCP port this fleet's devices listen on.
	ModbusPort = 503
	// ModbusUnitID is the Modbus slave/unit id used for every request.
	ModbusUnitID = 1
	// ModbusTimeout bounds every single read; one slow device can never
	// stall the poll tick beyond this.
	ModbusTimeout = 1 * time.Second
)

// Liveness is the subset of the liveness Tracker the Adapter notifies.
// Defined here (rather than imported) to keep transport free of a
// dependency on the liveness package's Log wiring.
type Liveness interface {
	Connect(deviceID int, connected bool, now time.Time)
	ReadSucceeded(deviceID int, now time.Time)
	ReadFailed(deviceID int, timedOut bool, message string, now time.Time)
}

// Metrics is the subset of the meter registry the Adapter marks.
// Passing a nil Metrics is fine — every call site below guards it.
type Metrics interface {
	ReadOK()
	ReadFailed()
}

// Adapter owns one Modbus/TCP handler for one device and implements the
// batched block-read contract of §4.2.
type Adapter struct {
	deviceID int
	ip       string
	handler  *modbus.TCPClientHandler
	client   modbus.Client
	liveness Liveness
	metrics  Metrics
	log      *logrus.Entry
}

// NewAdapter dials deviceID at ip:ModbusPort and reports the initial
// connect outcome to the liveness tracker before returning. The Adapter
// is usable even when the dial fails — subsequent reads will simply
// fail and keep reporting offline until the device comes back.
func NewAdapter(deviceID int, ip string, liveness Liveness, metrics Metrics) *Adapter {
	addr := fmt.Sprintf("%s:%d", ip, ModbusPort)
	handler := modbus.NewTCPClientHandler(addr)
	handler.Timeout = ModbusTimeout
	handler.SlaveID = ModbusUnitID

	a := &Adapter{
		deviceID: deviceID,
		ip:       ip,
		handler:  handler,
		client:   modbus.NewClient(handler),
		liveness: liveness,
		metrics:  metrics,
		log:      logrus.WithField("device_id", deviceID),
	}

	now := time.Now()
	err := handler.Connect()
	if err != nil {
		a.log.Warnf("initial connect to %s failed: %v", addr, err)
	}
	liveness.Connect(deviceID, err == nil, now)
	return a
}

// Close releases the underlying TCP connection, best-effort.
func (a *Adapter) Close() {
	if err := a.handler.Close(); err != nil {
		a.log.Debugf("close: %v", err)
	}
}

// ReadBlock reads every address in addresses with a single input-register
// request spanning their min/max, then projects the response back onto
// the requested addresses in the caller's order; addresses outside the
// read span default to 0.
func (a *Adapter) ReadBlock(addresses []int) ([]int, error) {
	if len(addresses) == 0 {
		return nil, nil
	}
	start, end := addresses[0], addresses[0]
	for _, addr := range addresses[1:] {
		if addr < start {
			start = addr
		}
		if addr > end {
			end = addr
		}
	}
	count := end - start + 1

	raw, err := a.client.ReadInputRegisters(uint16(start), uint16(count))
	now := time.Now()
	if err != nil {
		timedOut := strings.Contains(strings.ToLower(err.Error()), "timeout")
		a.liveness.ReadFailed(a.deviceID, timedOut, err.Error(), now)
		if a.metrics != nil {
			a.metrics.ReadFailed()
		}
		kind := "offline"
		if timedOut {
			kind = "timeout"
		}
		return nil, &ReadError{Kind: kind, Err: err}
	}
	a.liveness.ReadSucceeded(a.deviceID, now)
	if a.metrics != nil {
		a.metrics.ReadOK()
	}

	out := make([]int, len(addresses))
	for i, addr := range addresses {
		idx := addr - start
		if idx < 0 || idx >= count {
			out[i] = 0
			continue
		}
		// Each register is big-endian 16-bit.
		out[i] = int(raw[idx*2])<<8 | int(raw[idx*2+1])
	}
	return out, nil
}

// ReadError classifies a failed read as timeout or a generic offline
// failure, per §4.2's error classification.
type ReadError struct {
	Kind string // "timeout" or "offline"
	Err  error
}

func (e *ReadError) Error() string { return e.Kind + ": " + e.Err.Error() }
func (e *ReadError) Unwrap() error { return e.Err }
