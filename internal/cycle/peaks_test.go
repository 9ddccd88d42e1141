package cycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindPeaks_LeadingPlateauRegisters(t *testing.T) {
	series := []int{40, 40, 40, 0, 0, 0, 40, 40, 40}
	peaks := findPeaks(series, 1, 3)
	assert.Len(t, peaks, 2)
}

func TestFindPeaks_BelowHeightIgnored(t *testing.T) {
	series := []int{5, 5, 5, 0, 0, 0, 40, 40, 40}
	peaks := findPeaks(series, 10, 3)
	assert.Len(t, peaks, 1)
	assert.Equal(t, 40, peaks[0].value)
}

func TestFindPeaks_CloseCandidatesKeepTallest(t *testing.T) {
	series := []int{10, 20, 10, 15, 10}
	peaks := findPeaks(series, 1, 3)
	assert.Len(t, peaks, 1)
	assert.Equal(t, 20, peaks[0].value)
}

func TestClusterPeaks_MergesWithinGap(t *testing.T) {
	combined := []int{40, 40, 40, 0, 40, 40, 40}
	peaks := findPeaks(combined, 1, 1)
	clusters := clusterPeaks(combined, peaks, 3, 2)
	assert.Len(t, clusters, 1)
}

func TestClusterPeaks_SplitsOnWideGap(t *testing.T) {
	combined := []int{40, 40, 40, 0, 0, 0, 40, 40, 40}
	peaks := findPeaks(combined, 1, 1)
	clusters := clusterPeaks(combined, peaks, 3, 2)
	assert.Len(t, clusters, 2)
}
