package cycle

import "time"

// candidate is a (possibly sliced) run of samples awaiting the finalize
// pipeline: duration computation, waveform validation and grading.
type candidate struct {
	th   []int
	side []int
	t    []time.Time
	typ  Type
}

// hasZeroGap reports whether there is a run of at least minGap consecutive
// indices in [from, to] (inclusive) whose combined value is <= endThresh.
func hasZeroGap(combined []int, from, to, minGap, endThresh int) bool {
	if to < from {
		return false
	}
	run := 0
	for k := from; k <= to; k++ {
		if combined[k] <= endThresh {
			run++
			if run >= minGap {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

// cluster groups of peaks that belong to the same physical stroke: two
// consecutive peaks merge unless a qualifying zero-gap run separates them.
type cluster struct {
	firstPeak, lastPeak int // indices into the series
}

func clusterPeaks(combined []int, peaks []peak, minZeroGap, endThresh int) []cluster {
	var clusters []cluster
	for _, p := range peaks {
		if len(clusters) > 0 {
			last := &clusters[len(clusters)-1]
			if hasZeroGap(combined, last.lastPeak+1, p.index-1, minZeroGap, endThresh) {
				clusters = append(clusters, cluster{firstPeak: p.index, lastPeak: p.index})
				continue
			}
			last.lastPeak = p.index
			continue
		}
		clusters = append(clusters, cluster{firstPeak: p.index, lastPeak: p.index})
	}
	return clusters
}

// split attempts the multi-peak splitter of §4.4.2. It returns nil when no
// split should happen (fewer than two peaks survive, or every peak merges
// into a single cluster) — callers must then finalize the original
// candidate unchanged. Otherwise it returns one candidate per cluster,
// each clipped to that cluster's physical extent and tagged SPLIT.
func (e *Engine) split(th, side []int, t []time.Time) []candidate {
	combined := combinedMax(th, side)
	peaks := findPeaks(combined, e.cfg.StartThreshold, e.cfg.SplitPeakDistance)
	if len(peaks) <= 1 {
		return nil
	}
	clusters := clusterPeaks(combined, peaks, e.cfg.SplitMinZeroGap, e.cfg.EndThreshold)
	if len(clusters) <= 1 {
		return nil
	}

	candidates := make([]candidate, 0, len(clusters))
	for _, c := range clusters {
		left := c.firstPeak
		for left > 0 && combined[left-1] > e.cfg.EndThreshold {
			left--
		}
		right := c.lastPeak
		for right < len(combined)-1 && combined[right+1] > e.cfg.EndThreshold {
			right++
		}
		candidates = append(candidates, candidate{
			th:   th[left : right+1],
			side: side[left : right+1],
			t:    t[left : right+1],
			typ:  TypeSplit,
		})
	}
	return candidates
}
