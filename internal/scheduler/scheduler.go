// Package scheduler runs the two cooperating long-running tasks of the
// poller: the poll loop, which samples every known machine once per
// tick, and the heartbeat loop, which watches for devices that have
// gone quiet. Both share one cancellation signal and are joined at
// shutdown.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ttmmdgt/caldera-cosmic/internal/config"
	"github.com/ttmmdgt/caldera-cosmic/internal/cycle"
	"github.com/ttmmdgt/caldera-cosmic/internal/liveness"
	"github.com/ttmmdgt/caldera-cosmic/internal/metrics"
	"github.com/ttmmdgt/caldera-cosmic/internal/transport"
)

const (
	// PollInterval is the nominal cadence of one poll tick.
	PollInterval = 100 * time.Millisecond
	// HeartbeatCheckInterval is how often the heartbeat loop wakes up.
	HeartbeatCheckInterval = 10 * time.Second
	// OfflineThreshold is how long an online device may go without a
	// successful read before the heartbeat loop declares it offline.
	OfflineThreshold = 60 * time.Second
)

// channel is one (line, machine, side) engine plus the register address
// its samples come from.
type channel struct {
	key  cycle.Key
	addr int
}

// machine is one physical press position reachable through one device's
// Transport Adapter.
type machine struct {
	line     string
	spec     config.MachineSpec
	deviceID int
	adapter  *transport.Adapter
}

// Scheduler owns every live device adapter and channel engine, and runs
// the poll/heartbeat task pair described in §4.1.
type Scheduler struct {
	cfg      cycle.Config
	liveness *liveness.Tracker
	metrics  *metrics.Registry
	filter   string // optional --machine selector, empty means "all"

	machines []machine
	engines  map[string]*cycle.Engine
}

// New builds a Scheduler from a loaded device catalog. It dials every
// device's Transport Adapter eagerly, establishing the Liveness
// Tracker's initial per-device state as a side effect.
func New(devices []config.DeviceSpec, cfg cycle.Config, lv *liveness.Tracker, mtr *metrics.Registry, machineFilter string) *Scheduler {
	s := &Scheduler{
		cfg:      cfg,
		liveness: lv,
		metrics:  mtr,
		filter:   machineFilter,
		engines:  map[string]*cycle.Engine{},
	}

	for _, dev := range devices {
		adapter := transport.NewAdapter(dev.ID, dev.IP, lv, mtr)
		for _, line := range dev.LineKeys {
			for _, m := range dev.Lines[line] {
				if machineFilter != "" && m.Name != machineFilter {
					continue
				}
				s.machines = append(s.machines, machine{
					line: line, spec: m, deviceID: dev.ID, adapter: adapter,
				})
			}
		}
	}
	return s
}

func (s *Scheduler) engineFor(key cycle.Key, sink cycle.Sink) *cycle.Engine {
	k := key.String()
	e, ok := s.engines[k]
	if !ok {
		e = cycle.NewEngine(key, s.cfg, sink, s.metrics)
		s.engines[k] = e
	}
	return e
}

// Run starts the poll loop and heartbeat loop and blocks until ctx is
// cancelled and both have returned. sink receives every finalized
// cycle; heartbeat-driven liveness notifications go to the Tracker
// passed to New.
func (s *Scheduler) Run(ctx context.Context, sink cycle.Sink) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		s.pollLoop(ctx, sink)
	}()
	go func() {
		defer wg.Done()
		s.heartbeatLoop(ctx)
	}()

	wg.Wait()
	s.closeAdapters()
}

func (s *Scheduler) pollLoop(ctx context.Context, sink cycle.Sink) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		t0 := time.Now()
		s.pollOnce(sink)
		elapsed := time.Since(t0)
		sleep := PollInterval - elapsed
		if sleep < 0 {
			sleep = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

func (s *Scheduler) pollOnce(sink cycle.Sink) {
	now := time.Now()
	for _, m := range s.machines {
		values, err := m.adapter.ReadBlock([]int{
			m.spec.AddrTHL, m.spec.AddrSideL, m.spec.AddrTHR, m.spec.AddrSideR,
		})
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"line": m.line, "machine": m.spec.Name,
			}).Debugf("read failed, continuing to next machine: %v", err)
			continue
		}
		thL, sideL, thR, sideR := values[0], values[1], values[2], values[3]

		lKey := cycle.Key{Line: m.line, Machine: m.spec.Name, Position: cycle.PositionL}
		rKey := cycle.Key{Line: m.line, Machine: m.spec.Name, Position: cycle.PositionR}
		s.engineFor(lKey, sink).Accept(cycle.Sample{TH: thL, Side: sideL, T: now})
		s.engineFor(rKey, sink).Accept(cycle.Sample{TH: thR, Side: sideR, T: now})
	}
}

func (s *Scheduler) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(HeartbeatCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkHeartbeats()
		}
	}
}

func (s *Scheduler) checkHeartbeats() {
	now := time.Now()
	seen := map[int]bool{}
	for _, m := range s.machines {
		if seen[m.deviceID] {
			continue
		}
		seen[m.deviceID] = true

		status, ok := s.liveness.Status(m.deviceID)
		if !ok || status != liveness.StatusOnline {
			continue
		}
		lastRead, ok := s.liveness.LastSuccessfulRead(m.deviceID)
		if !ok {
			continue
		}
		if elapsed := now.Sub(lastRead); elapsed >= OfflineThreshold {
			s.liveness.HeartbeatStale(m.deviceID, elapsed.Seconds(), now)
		}
	}
}

func (s *Scheduler) closeAdapters() {
	seen := map[*transport.Adapter]bool{}
	for _, m := range s.machines {
		if seen[m.adapter] {
			continue
		}
		seen[m.adapter] = true
		m.adapter.Close()
	}
}
