package cycle

import (
	"fmt"
	"sort"
)

// validateWaveform implements the waveform sanity checks of §4.4.4. It returns
// (true, "") when the waveform is physically plausible, or (false, reason)
// naming the first rule that rejected it.
func validateWaveform(th, side []int, sampleCount int, durationMS int64, timestampsMS []int64) (bool, string) {
	if len(th) == 0 || len(side) == 0 {
		return false, "empty waveform"
	}
	if len(th) != len(side) {
		return false, "TH/Side length mismatch"
	}

	maxTH, minTH := minMax(th)
	maxSide, minSide := minMax(side)

	// Dead side sensor: TH clearly active, side essentially flat near zero.
	if maxTH >= 30 && maxSide <= 3 {
		nonzeroSide := 0
		for _, v := range side {
			if v > 5 {
				nonzeroSide++
			}
		}
		zeroRatio := float64(len(side)-nonzeroSide) / float64(len(side))
		if zeroRatio > 0.8 {
			return false, fmt.Sprintf(
				"Side sensor likely disconnected: TH=%d, Side max=%d, %.0f%% zeros",
				maxTH, maxSide, zeroRatio*100,
			)
		}
	}

	// Impossible jumps between consecutive samples.
	for i := 1; i < len(th); i++ {
		dth := abs(th[i] - th[i-1])
		dside := abs(side[i] - side[i-1])
		if dth > 40 || dside > 40 {
			return false, fmt.Sprintf("Impossible pressure jump: dTH=%d, dSide=%d at sample %d", dth, dside, i)
		}
		// 30 < delta <= 40 is allowed but notable; no diagnostic object is
		// returned here, callers may log it themselves from the waveform.
	}

	// Flatline: neither channel moves meaningfully across the whole cycle.
	if maxTH-minTH <= 1 && maxSide-minSide <= 1 && sampleCount > 3 {
		if maxTH == 0 && maxSide == 0 {
			return false, "Zero flatline - no cycle detected"
		}
		return false, "Flatline waveform - no pressure change"
	}

	// Density: the observed sample count must be plausible given the
	// measured (or assumed) inter-sample interval.
	medianIntervalMS := int64(100)
	if len(timestampsMS) > 1 {
		var diffs []int64
		for i := 1; i < len(timestampsMS); i++ {
			d := timestampsMS[i] - timestampsMS[i-1]
			if d > 0 {
				diffs = append(diffs, d)
			}
		}
		if len(diffs) > 0 {
			medianIntervalMS = medianInt64(diffs)
			if medianIntervalMS < 1 {
				medianIntervalMS = 1
			}
		}
	}
	expected := durationMS / medianIntervalMS
	if durationMS%medianIntervalMS*2 >= medianIntervalMS {
		expected++ // round to nearest, matching round(duration_ms/median)
	}
	if expected < 1 {
		expected = 1
	}
	if sampleCount < 1 || expected == 0 {
		return false, "Invalid duration or sample count"
	}
	if float64(sampleCount) < 0.15*float64(expected) {
		return false, fmt.Sprintf(
			"Too few samples: %d for %dms (expected ~%d, median_interval=%dms)",
			sampleCount, durationMS, expected, medianIntervalMS,
		)
	}

	// Negative readings should never happen; guard anyway.
	if minTH < 0 || minSide < 0 {
		return false, "Negative pressure reading"
	}

	return true, ""
}

func minMax(v []int) (max, min int) {
	max, min = v[0], v[0]
	for _, x := range v[1:] {
		if x > max {
			max = x
		}
		if x < min {
			min = x
		}
	}
	return max, min
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func medianInt64(v []int64) int64 {
	s := append([]int64(nil), v...)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
