package frequency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampMap_BelowThresholdIsZero(t *testing.T) {
	assert.Equal(t, 0.0, clampMap(0.5, 0.7))
}

func TestClampMap_AboveThresholdScalesLinearly(t *testing.T) {
	// (0.85-0.7)/(1-0.7) = 0.5
	assert.InDelta(t, 0.5, clampMap(0.85, 0.7), 1e-9)
}

func TestClampMap_ClampsAtOne(t *testing.T) {
	assert.Equal(t, 1.0, clampMap(1.0, 0.7))
}

func TestDeviation_NonPositiveStdIsZero(t *testing.T) {
	assert.Equal(t, 0.0, deviation(5, 1, 0))
	assert.Equal(t, 0.0, deviation(5, 1, -1))
}

func TestDeviation_ScalesWithDistanceFromMean(t *testing.T) {
	assert.InDelta(t, 2.0, deviation(9, 5, 2), 1e-9)
}

func TestMeanAbs2D_EmptyIsZero(t *testing.T) {
	assert.Equal(t, 0.0, meanAbs2D(nil))
}

func TestMeanAbs2D_AveragesAbsoluteValues(t *testing.T) {
	m := [][]float64{{-1, 1}, {2, -2}}
	assert.InDelta(t, 1.5, meanAbs2D(m), 1e-9)
}

func TestFFTShift_MovesZeroFrequencyToCenter(t *testing.T) {
	// A 4x4 spectrum where the DC term starts at [0][0]; after shift it
	// should land at the center index (h/2, w/2) = (2,2).
	spectrum := make([][]complex128, 4)
	for y := range spectrum {
		spectrum[y] = make([]complex128, 4)
	}
	spectrum[0][0] = complex(99, 0)
	fftShift(spectrum)
	assert.Equal(t, complex(99, 0), spectrum[2][2])
}

func TestMinInt(t *testing.T) {
	assert.Equal(t, 3, minInt(3, 5))
	assert.Equal(t, 3, minInt(5, 3))
}
