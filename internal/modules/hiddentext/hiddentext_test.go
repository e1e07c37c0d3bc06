package hiddentext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateScore_NoHiddenTextNoMatchesNoEdges(t *testing.T) {
	assert.Equal(t, 0.0, calculateScore(false, 0, 0))
}

func TestCalculateScore_HiddenTextPresentAddsBase(t *testing.T) {
	assert.InDelta(t, 0.25, calculateScore(true, 0, 0), 1e-9)
}

func TestCalculateScore_EdgeContributionCapsAtPointOne(t *testing.T) {
	// 20 flagged cells * 0.02 = 0.4, capped at 0.10.
	assert.InDelta(t, 0.10, calculateScore(false, 0, 20), 1e-9)
}

func TestCalculateScore_ClampsAtOne(t *testing.T) {
	assert.Equal(t, 1.0, calculateScore(true, 10, 20))
}
