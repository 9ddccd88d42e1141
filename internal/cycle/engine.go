package cycle

import (
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type phase int

const (
	phaseIdle phase = iota
	phaseActive
)

// state is the private, per-channel buffer set described in §3 as
// ChannelState. It is owned exclusively by its Engine.
type state struct {
	phase       phase
	startTime   time.Time
	lastNonzero time.Time
	th          []int
	side        []int
	t           []time.Time
}

func (s *state) reset() {
	*s = state{phase: phaseIdle}
}

// Metrics receives per-cycle counters. Engines work fine with a nil
// Metrics (every call below is a no-op guard), so tests need not supply
// one.
type Metrics interface {
	Cycle(cycleType string)
	Split()
	SinkLost()
}

// Engine is the per-channel cycle-extraction pipeline: one instance per
// Key, consuming samples in arrival order and emitting zero or more
// finalized cycles to its Sink.
type Engine struct {
	key     Key
	cfg     Config
	sink    Sink
	metrics Metrics
	log     *logrus.Entry

	st state
}

// NewEngine builds an Engine for one channel. cfg is copied so later
// mutation of a shared Config by the caller cannot affect a running
// Engine. metrics may be nil.
func NewEngine(key Key, cfg Config, sink Sink, metrics Metrics) *Engine {
	return &Engine{
		key:     key,
		cfg:     cfg,
		sink:    sink,
		metrics: metrics,
		log:     logrus.WithField("channel", key.String()),
		st:      state{phase: phaseIdle},
	}
}

// Accept processes one sample. It runs to completion synchronously; the
// engine never suspends mid-sample.
func (e *Engine) Accept(s Sample) {
	if e.st.phase == phaseActive && s.T.Sub(e.st.startTime) > e.cfg.CycleTimeout {
		e.finalize(candidate{th: e.st.th, side: e.st.side, t: e.st.t, typ: TypeTimeout})
		e.st.reset()
	}

	switch e.st.phase {
	case phaseIdle:
		if s.TH >= e.cfg.StartThreshold || s.Side >= e.cfg.StartThreshold {
			e.st = state{
				phase:       phaseActive,
				startTime:   s.T,
				lastNonzero: s.T,
				th:          []int{s.TH},
				side:        []int{s.Side},
				t:           []time.Time{s.T},
			}
			e.log.Debugf("start: th=%d side=%d", s.TH, s.Side)
		}

	case phaseActive:
		e.st.th = append(e.st.th, s.TH)
		e.st.side = append(e.st.side, s.Side)
		e.st.t = append(e.st.t, s.T)
		if s.TH > e.cfg.EndThreshold || s.Side > e.cfg.EndThreshold {
			e.st.lastNonzero = s.T
		}

		elapsedMS := s.T.Sub(e.st.startTime).Milliseconds()
		if s.T.Sub(e.st.lastNonzero) >= e.cfg.IdleGap && elapsedMS >= e.cfg.MinCycleDurationMS {
			e.finalize(candidate{th: e.st.th, side: e.st.side, t: e.st.t, typ: TypeComplete})
			e.st.reset()
		} else if len(e.st.th) > e.cfg.MaxBufferLength {
			e.finalize(candidate{th: e.st.th, side: e.st.side, t: e.st.t, typ: TypeOverflow})
			e.st.reset()
		}
	}
}

// finalize runs the multi-peak splitter (for non-timeout candidates),
// then hands each resulting candidate to finalizeOne.
func (e *Engine) finalize(c candidate) {
	if c.typ != TypeTimeout {
		if subs := e.split(c.th, c.side, c.t); subs != nil {
			for _, sub := range subs {
				if e.metrics != nil {
					e.metrics.Split()
				}
				e.finalizeOne(sub)
			}
			return
		}
	}
	e.finalizeOne(c)
}

// finalizeOne implements §4.4.3: duration computation, the discard rule,
// waveform validation, grading, and the sensor-validity flags, then hands
// the assembled Record to the Sink.
func (e *Engine) finalizeOne(c candidate) {
	timestampsMS := toEpochMillis(c.t)
	var durationMS int64
	if len(timestampsMS) > 1 {
		durationMS = timestampsMS[len(timestampsMS)-1] - timestampsMS[0]
	} else if len(c.t) > 0 {
		durationMS = 0
	}
	durationS := float64(durationMS) / 1000.0

	maxTH, _ := minMax(c.th)
	maxSide, _ := minMax(c.side)
	sampleCount := len(c.th)

	if sampleCount < e.cfg.SplitMinSamples && c.typ == TypeSplit {
		e.log.Debugf("dropping split sub-cycle: too few samples (%d)", sampleCount)
		return
	}

	if durationS < e.cfg.MinDurationS && c.typ != TypeTimeout {
		if c.typ == TypeSplit {
			e.log.Debugf("dropping split sub-cycle: too short (%.3fs)", durationS)
			return
		}
		e.log.WithFields(logrus.Fields{
			"line": e.key.Line, "machine": e.key.Machine, "position": e.key.Position,
			"duration_s": durationS, "samples": sampleCount,
			"max_th": maxTH, "max_side": maxSide,
		}).Info("discarding short cycle")
		return
	}

	typ := c.typ
	var grade Grade
	valid, reason := validateWaveform(c.th, c.side, sampleCount, durationMS, timestampsMS)
	if !valid {
		if c.typ == TypeSplit {
			e.log.Debugf("dropping split sub-cycle: invalid waveform (%s)", reason)
			return
		}
		grade = GradeDefective
		typ = TypeInvalidWaveform
		e.log.WithFields(logrus.Fields{
			"line": e.key.Line, "machine": e.key.Machine, "position": e.key.Position,
			"reason": reason, "duration_s": durationS, "samples": sampleCount,
			"th_prefix":   prefix(c.th, 20),
			"side_prefix": prefix(c.side, 20),
		}).Warn("invalid waveform, saving as defective")
	} else {
		grade = e.cfg.grade(maxTH, maxSide, typ)
	}

	thOk, sideOk := sensorFlags(c.th, c.side, maxTH, maxSide, e.cfg.GoodMin, e.cfg.GoodMax)

	rec := Record{
		Line:         e.key.Line,
		MachineID:    extractMachineID(e.key.Machine),
		Position:     e.key.Position,
		THWaveform:   c.th,
		SideWaveform: c.side,
		Timestamps:   timestampsMS,
		DurationS:    durationS,
		MaxTH:        maxTH,
		MaxSide:      maxSide,
		SampleCount:  sampleCount,
		Type:         typ,
		Grade:        grade,
		THOk:         thOk,
		SideOk:       sideOk,
	}

	if err := e.sink.SaveCycle(rec); err != nil {
		if e.metrics != nil {
			e.metrics.SinkLost()
		}
		e.log.WithFields(logrus.Fields{
			"line": e.key.Line, "machine": e.key.Machine, "position": e.key.Position,
			"grade": grade, "cycle_type": typ, "duration_s": durationS, "samples": sampleCount,
			"th_prefix":   prefix(c.th, 20),
			"side_prefix": prefix(c.side, 20),
		}).Errorf("DATA LOST - sink save failed: %v", err)
		return
	}
	if e.metrics != nil {
		e.metrics.Cycle(string(typ))
	}
	e.log.Infof("%s | samples=%d | %.3fs | TH=%d Side=%d", grade, sampleCount, durationS, maxTH, maxSide)
}

func toEpochMillis(t []time.Time) []int64 {
	out := make([]int64, len(t))
	for i, v := range t {
		out[i] = v.UnixMilli()
	}
	return out
}

func prefix(v []int, n int) string {
	if n > len(v) {
		n = len(v)
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = strconv.Itoa(v[i])
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// extractMachineID pulls the decimal digits out of a machine name such as
// "mc2", matching the device catalog's naming convention.
func extractMachineID(name string) int {
	var digits strings.Builder
	for _, r := range name {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	n, _ := strconv.Atoi(digits.String())
	return n
}
