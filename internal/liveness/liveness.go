// Package liveness tracks per-device online/offline/timeout state and
// emits a status-change log entry on every transition.
package liveness

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusTimeout Status = "timeout"
)

// Change is one status-change log entry, ready for the sink.
type Change struct {
	DeviceID                    int
	NewStatus                   Status
	Message                     string
	DurationInPreviousStateSecs int64
	WallTime                    time.Time
}

// Log persists status-change entries. It is out of scope for this
// package to define the storage — callers supply an implementation
// backed by the relational sink.
type Log interface {
	// DeviceExists reports whether id is a known, currently-loaded
	// device. LogStatusChange must be skipped (with a diagnostic) when
	// it returns false.
	DeviceExists(id int) bool
	LogStatusChange(c Change) error
}

type deviceState struct {
	status             Status
	lastChange         time.Time
	lastSuccessfulRead time.Time
	hasSuccessfulRead  bool
}

// Tracker owns the per-device LivenessState map. It is written by the
// poll loop (on every successful/failed read) and by the heartbeat loop
// (on stale-device detection) — the only two writers in the process —
// so its state map is guarded by a mutex.
type Tracker struct {
	mu    sync.Mutex
	state map[int]*deviceState
	log   Log
}

func NewTracker(log Log) *Tracker {
	return &Tracker{state: map[int]*deviceState{}, log: log}
}

// Connect establishes the initial LivenessState for a device at connect
// time: online on a successful TCP connect, offline otherwise. This is
// not itself a transition — there is no previous state to compare
// against — so no log entry is ever emitted here.
func (t *Tracker) Connect(deviceID int, connected bool, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	status := StatusOffline
	if connected {
		status = StatusOnline
	}
	ds := &deviceState{status: status, lastChange: now}
	if connected {
		ds.lastSuccessfulRead = now
		ds.hasSuccessfulRead = true
	}
	t.state[deviceID] = ds
}

// ReadSucceeded notifies the Tracker of a successful Transport Adapter
// read. If the device was not already online, this is a "Connection
// restored" transition. last_successful_read_time is recorded
// unconditionally, independent of whether a transition fires, so the
// heartbeat loop can tell a quietly-still-online device from a genuinely
// stale one.
func (t *Tracker) ReadSucceeded(deviceID int, now time.Time) {
	t.mu.Lock()
	ds, ok := t.state[deviceID]
	if !ok {
		ds = &deviceState{status: StatusOffline, lastChange: now}
		t.state[deviceID] = ds
	}
	ds.lastSuccessfulRead = now
	ds.hasSuccessfulRead = true
	t.mu.Unlock()

	t.transition(deviceID, StatusOnline, "Connection restored", now, func(cur Status) bool {
		return cur != StatusOnline
	})
}

// ReadFailed notifies the Tracker of a failed read, classified by the
// Transport Adapter as either a timeout or a generic offline failure.
func (t *Tracker) ReadFailed(deviceID int, timedOut bool, message string, now time.Time) {
	target := StatusOffline
	if timedOut {
		target = StatusTimeout
	}
	t.transition(deviceID, target, message, now, func(Status) bool { return true })
}

// HeartbeatStale transitions a device to offline because its last
// successful read is older than the offline threshold. This only ever
// applies from the online state — a device already flagged offline or
// timeout does not need a second notice.
func (t *Tracker) HeartbeatStale(deviceID int, elapsedSec float64, now time.Time) {
	msg := fmt.Sprintf("no successful read in %.0fs", elapsedSec)
	t.transition(deviceID, StatusOffline, msg, now, func(cur Status) bool {
		return cur == StatusOnline
	})
}

func (t *Tracker) transition(deviceID int, target Status, message string, now time.Time, apply func(Status) bool) {
	t.mu.Lock()
	ds, ok := t.state[deviceID]
	if !ok {
		ds = &deviceState{status: StatusOffline, lastChange: now}
		t.state[deviceID] = ds
	}
	if ds.status == target || !apply(ds.status) {
		t.mu.Unlock()
		return
	}
	prev := ds.status
	duration := int64(math.Floor(now.Sub(ds.lastChange).Seconds()))
	ds.status = target
	ds.lastChange = now
	t.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"device_id": deviceID, "from": prev, "to": target, "duration_s": duration,
	}).Infof("device status change: %s", message)

	if t.log == nil {
		return
	}
	if !t.log.DeviceExists(deviceID) {
		logrus.Warnf("dropping status-change entry: device %d not in catalog", deviceID)
		return
	}
	change := Change{
		DeviceID:                    deviceID,
		NewStatus:                   target,
		Message:                     message,
		DurationInPreviousStateSecs: duration,
		WallTime:                    now,
	}
	if err := t.log.LogStatusChange(change); err != nil {
		logrus.Errorf("failed to persist status-change entry for device %d: %v", deviceID, err)
	}
}

// Status returns the current known status of a device, and whether any
// state has been recorded for it yet.
func (t *Tracker) Status(deviceID int) (Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ds, ok := t.state[deviceID]
	if !ok {
		return "", false
	}
	return ds.status, true
}

// LastChange returns the wall time of the device's last recorded
// transition, used to compute a transition's duration-in-previous-state.
func (t *Tracker) LastChange(deviceID int) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ds, ok := t.state[deviceID]
	if !ok {
		return time.Time{}, false
	}
	return ds.lastChange, true
}

// LastSuccessfulRead returns the wall time of the device's last
// successful Transport Adapter read, used by the heartbeat loop to
// detect a device that has gone quiet without its status yet reflecting
// that. The second return is false if no read has ever succeeded.
func (t *Tracker) LastSuccessfulRead(deviceID int) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ds, ok := t.state[deviceID]
	if !ok || !ds.hasSuccessfulRead {
		return time.Time{}, false
	}
	return ds.lastSuccessfulRead, true
}
