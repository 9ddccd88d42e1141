package cycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGrade_Excellent(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, GradeExcellent, cfg.grade(37, 38, TypeComplete))
}

func TestGrade_Good(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, GradeGood, cfg.grade(50, 50, TypeComplete))
}

func TestGrade_Marginal(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, GradeMarginal, cfg.grade(35, 65, TypeComplete))
}

func TestGrade_SensorLow(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, GradeSensorLow, cfg.grade(5, 5, TypeComplete))
}

func TestGrade_PressureHigh(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, GradePressureHigh, cfg.grade(90, 40, TypeComplete))
}

func TestGrade_OverflowAndTimeoutEchoType(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, GradeOverflow, cfg.grade(40, 40, TypeOverflow))
	assert.Equal(t, GradeTimeout, cfg.grade(40, 40, TypeTimeout))
}

func TestSensorFlags_DeadSideSuppressed(t *testing.T) {
	th := repeatInt(35, 60)
	side := repeatInt(0, 60)
	thOk, sideOk := sensorFlags(th, side, 35, 0, 30, 45)
	assert.True(t, thOk)
	assert.False(t, sideOk)
}

func TestSensorFlags_DegenerateWaveformSuppressed(t *testing.T) {
	th := repeatInt(37, 10)
	side := repeatInt(37, 10)
	thOk, sideOk := sensorFlags(th, side, 37, 37, 30, 45)
	assert.False(t, thOk)
	assert.False(t, sideOk)
}
