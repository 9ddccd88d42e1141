package cycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func tsRange(n, stepMS int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i * stepMS)
	}
	return out
}

func TestValidateWaveform_FlatlineZero(t *testing.T) {
	th := make([]int, 10)
	side := make([]int, 10)
	valid, reason := validateWaveform(th, side, 10, 900, tsRange(10, 100))
	assert.False(t, valid)
	assert.Contains(t, reason, "Zero flatline")
}

func TestValidateWaveform_FlatlinePressure(t *testing.T) {
	th := repeatInt(40, 10)
	side := repeatInt(40, 10)
	valid, reason := validateWaveform(th, side, 10, 900, tsRange(10, 100))
	assert.False(t, valid)
	assert.Contains(t, reason, "Flatline")
}

func TestValidateWaveform_NegativeReading(t *testing.T) {
	th := []int{40, 40, -1, 40, 40, 40}
	side := []int{40, 40, 40, 40, 40, 40}
	valid, reason := validateWaveform(th, side, 6, 500, tsRange(6, 100))
	assert.False(t, valid)
	assert.Equal(t, "Negative pressure reading", reason)
}

func TestValidateWaveform_TooFewSamples(t *testing.T) {
	th := []int{40, 40, 40}
	side := []int{40, 41, 40}
	// 5000ms duration with a 100ms median interval implies ~50 expected
	// samples; 3 actual is far under the 15% floor.
	valid, reason := validateWaveform(th, side, 3, 5000, []int64{0, 100, 200})
	assert.False(t, valid)
	assert.Contains(t, reason, "Too few samples")
}

func TestValidateWaveform_Plausible(t *testing.T) {
	th := repeatInt(37, 60)
	side := repeatInt(38, 60)
	valid, _ := validateWaveform(th, side, 60, 5900, tsRange(60, 100))
	assert.True(t, valid)
}

func repeatInt(v, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}
