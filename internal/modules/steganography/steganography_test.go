package steganography

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func uniformGray(w, h int, v uint8) [][]uint8 {
	gray := make([][]uint8, h)
	for y := range gray {
		row := make([]uint8, w)
		for x := range row {
			row[x] = v
		}
		gray[y] = row
	}
	return gray
}

func TestLSBAnalysis_AllZeroBitsIsZeroRandomnessAndFlagged(t *testing.T) {
	gray := uniformGray(8, 8, 0x02) // lsb always 0
	randomness, onesRatio, patternDetected := lsbAnalysis(gray)
	assert.Equal(t, 0.0, randomness)
	assert.Equal(t, 0.0, onesRatio)
	assert.True(t, patternDetected)
}

func TestLSBAnalysis_EmptyImageIsZero(t *testing.T) {
	randomness, onesRatio, patternDetected := lsbAnalysis(nil)
	assert.Equal(t, 0.0, randomness)
	assert.Equal(t, 0.0, onesRatio)
	assert.False(t, patternDetected)
}

func TestLSBAnalysis_HalfOnesMaximizesEntropy(t *testing.T) {
	gray := make([][]uint8, 1)
	gray[0] = []uint8{0, 1, 0, 1}
	randomness, onesRatio, patternDetected := lsbAnalysis(gray)
	assert.InDelta(t, 1.0, randomness, 1e-9)
	assert.Equal(t, 0.5, onesRatio)
	assert.False(t, patternDetected)
}

func TestChiSquareTest_UniformHistogramIsNotSignificant(t *testing.T) {
	// A flat histogram (each value equally represented) keeps adjacent
	// pairs balanced, so chi-square is 0, far below df, and p is near 1.
	gray := make([][]uint8, 1)
	row := make([]uint8, 256)
	for i := range row {
		row[i] = uint8(i)
	}
	gray[0] = row
	_, isSignificant := chiSquareTest(gray)
	assert.False(t, isSignificant)
}

func TestSmoothness_MeasuresTotalVariation(t *testing.T) {
	assert.Equal(t, 0.0, smoothness([]int{5, 5, 5, 5}))
	assert.Equal(t, 6.0, smoothness([]int{0, 2, 4, 0}))
}

func TestRSAnalysis_TooShortReturnsZero(t *testing.T) {
	gray := [][]uint8{{1, 2, 3}}
	assert.Equal(t, 0.0, rsAnalysis(gray))
}

func TestSPAAnalysis_ConstantRowHasNoDiffs(t *testing.T) {
	gray := uniformGray(8, 1, 4)
	assert.Equal(t, 0.0, spaAnalysis(gray))
}

func TestSPAAnalysis_AlternatingParityMaximizesDiffRatio(t *testing.T) {
	gray := [][]uint8{{0, 1, 0, 1, 0}}
	assert.Equal(t, 1.0, spaAnalysis(gray))
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-1))
	assert.Equal(t, 1.0, clamp01(2))
	assert.Equal(t, 0.5, clamp01(0.5))
}
