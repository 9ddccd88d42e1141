package cycle

import "time"

// Config holds every numeric threshold the engine uses as a field rather
// than a package-level value, so an Engine can be built and tested in
// isolation with whatever thresholds a test wants to exercise.
type Config struct {
	// StartThreshold is the minimum sample value (inclusive) that moves an
	// idle channel to active.
	StartThreshold int
	// EndThreshold is the value above which a sample still counts as
	// "nonzero" for the purposes of resetting the idle timer.
	EndThreshold int
	// MinCycleDurationMS is the minimum elapsed time before a normal
	// (non-timeout, non-overflow) finalize can fire.
	MinCycleDurationMS int64
	// IdleGap is how long the channel must see values at or below
	// EndThreshold before a normal finalize fires.
	IdleGap time.Duration
	// CycleTimeout is the maximum time a channel may stay active before
	// being force-finalized as TIMEOUT.
	CycleTimeout time.Duration
	// MaxBufferLength is the sample count above which a channel is
	// force-finalized as OVERFLOW.
	MaxBufferLength int
	// MinDurationS is the minimum accepted cycle duration; shorter
	// candidates (other than TIMEOUT) are discarded.
	MinDurationS float64

	// SplitPeakDistance is the minimum index distance between two peaks
	// for both to be considered.
	SplitPeakDistance int
	// SplitMinZeroGap is the minimum run length of low-valued samples
	// required between two peaks to treat them as separate sub-cycles.
	SplitMinZeroGap int
	// SplitMinSamples is the minimum sample count a split sub-cycle must
	// have to be kept.
	SplitMinSamples int

	// Quality grading bands, see grade.go.
	GoodMin, GoodMax         int
	ExtendedMin, ExtendedMax int
	MarginalMin, MarginalMax int
	SensorLow                int
	PressureHigh             int
}

// DefaultConfig returns the thresholds this fleet runs with in production.
func DefaultConfig() Config {
	return Config{
		StartThreshold:     1,
		EndThreshold:       2,
		MinCycleDurationMS: 200,
		IdleGap:            500 * time.Millisecond,
		CycleTimeout:       30 * time.Second,
		MaxBufferLength:    500,
		MinDurationS:       5,

		SplitPeakDistance: 3,
		SplitMinZeroGap:   3,
		SplitMinSamples:   4,

		GoodMin:      30,
		GoodMax:      45,
		ExtendedMin:  25,
		ExtendedMax:  55,
		MarginalMin:  15,
		MarginalMax:  70,
		SensorLow:    10,
		PressureHigh: 80,
	}
}
