package cycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	records []Record
}

func (f *fakeSink) SaveCycle(r Record) error {
	f.records = append(f.records, r)
	return nil
}

func feed(e *Engine, base time.Time, pairs [][2]int, stepMS int) time.Time {
	t := base
	for _, p := range pairs {
		e.Accept(Sample{TH: p[0], Side: p[1], T: t})
		t = t.Add(time.Duration(stepMS) * time.Millisecond)
	}
	return t
}

func repeat(th, side, n int) [][2]int {
	out := make([][2]int, n)
	for i := range out {
		out[i] = [2]int{th, side}
	}
	return out
}

func trailingZeros(n int) [][2]int {
	return repeat(0, 0, n)
}

func newTestEngine(sink Sink) *Engine {
	return NewEngine(Key{Line: "L1", Machine: "mc1", Position: PositionL}, DefaultConfig(), sink, nil)
}

func TestScenario1_ExcellentComplete(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(sink)
	base := time.Now()

	samples := append(repeat(37, 38, 60), trailingZeros(8)...)
	feed(e, base, samples, 100)

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, TypeComplete, rec.Type)
	assert.Equal(t, GradeExcellent, rec.Grade)
	assert.Equal(t, 37, rec.MaxTH)
	assert.Equal(t, 38, rec.MaxSide)
	assert.True(t, rec.THOk)
	assert.True(t, rec.SideOk)
	assert.InDelta(t, 5.9, rec.DurationS, 0.7)
	assert.GreaterOrEqual(t, rec.SampleCount, 60)
}

func TestScenario2_DeadSideSensor(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(sink)
	base := time.Now()

	samples := append(repeat(35, 0, 60), trailingZeros(8)...)
	feed(e, base, samples, 100)

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, TypeInvalidWaveform, rec.Type)
	assert.Equal(t, GradeDefective, rec.Grade)
}

func TestScenario3_ImpossibleJump(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(sink)
	base := time.Now()

	samples := repeat(35, 35, 30)
	samples = append(samples, [2]int{95, 35})
	samples = append(samples, repeat(35, 35, 30)...)
	samples = append(samples, trailingZeros(8)...)
	feed(e, base, samples, 100)

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, TypeInvalidWaveform, rec.Type)
}

func TestScenario4_ShortCycleDiscarded(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(sink)
	base := time.Now()

	samples := append(repeat(40, 40, 20), trailingZeros(8)...)
	feed(e, base, samples, 100)

	assert.Empty(t, sink.records)
}

func TestScenario5_TwoPeakSplit(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(sink)
	base := time.Now()

	samples := repeat(40, 40, 60)
	samples = append(samples, repeat(0, 0, 4)...)
	samples = append(samples, repeat(40, 40, 60)...)
	samples = append(samples, trailingZeros(8)...)
	feed(e, base, samples, 100)

	require.Len(t, sink.records, 2)
	for _, rec := range sink.records {
		assert.Equal(t, TypeSplit, rec.Type)
		assert.Equal(t, 60, rec.SampleCount)
	}
}

func TestScenario6_TwoPeakNoGapMerges(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(sink)
	base := time.Now()

	samples := repeat(40, 40, 60)
	samples = append(samples, [2]int{0, 0})
	samples = append(samples, repeat(40, 40, 60)...)
	samples = append(samples, trailingZeros(8)...)
	feed(e, base, samples, 100)

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, TypeComplete, rec.Type)
}

func TestScenario7_BufferOverflow(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(sink)
	base := time.Now()

	samples := repeat(40, 40, 501)
	feed(e, base, samples, 100)

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, TypeOverflow, rec.Type)
	assert.Equal(t, GradeOverflow, rec.Grade)
	assert.Equal(t, 501, rec.SampleCount)
}

func TestAllZeroStreamEmitsNothing(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(sink)
	base := time.Now()

	feed(e, base, trailingZeros(200), 100)

	assert.Empty(t, sink.records)
	assert.Equal(t, phaseIdle, e.st.phase)
}

func TestSingleRectangularPulse(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(sink)
	base := time.Now()

	samples := append(repeat(40, 40, 55), trailingZeros(8)...)
	feed(e, base, samples, 100)

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, TypeComplete, rec.Type)
	first := rec.Timestamps[0]
	last := rec.Timestamps[len(rec.Timestamps)-1]
	assert.InDelta(t, float64(last-first)/1000.0, rec.DurationS, 1e-6)
}

func TestTimestampsAreMonotonic(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(sink)
	base := time.Now()

	samples := append(repeat(40, 40, 60), trailingZeros(8)...)
	feed(e, base, samples, 100)

	require.Len(t, sink.records, 1)
	ts := sink.records[0].Timestamps
	for i := 1; i < len(ts); i++ {
		assert.GreaterOrEqual(t, ts[i], ts[i-1])
	}
}

func TestMaxValuesMatchWaveform(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(sink)
	base := time.Now()

	samples := append(repeat(33, 34, 60), trailingZeros(8)...)
	feed(e, base, samples, 100)

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	maxTH, _ := minMax(rec.THWaveform)
	maxSide, _ := minMax(rec.SideWaveform)
	assert.Equal(t, maxTH, rec.MaxTH)
	assert.Equal(t, maxSide, rec.MaxSide)
}

func TestBufferEqualLengthInvariant(t *testing.T) {
	e := newTestEngine(&fakeSink{})
	base := time.Now()
	samples := repeat(10, 10, 30)
	feed(e, base, samples, 100)

	require.Equal(t, phaseActive, e.st.phase)
	assert.Equal(t, len(e.st.th), len(e.st.side))
	assert.Equal(t, len(e.st.th), len(e.st.t))
}
