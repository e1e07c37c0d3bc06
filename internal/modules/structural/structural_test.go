package structural

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-0.5))
	assert.Equal(t, 1.0, clamp01(1.5))
	assert.Equal(t, 0.25, clamp01(0.25))
}

func TestMinInt(t *testing.T) {
	assert.Equal(t, 2, minInt(2, 9))
	assert.Equal(t, 2, minInt(9, 2))
}

func TestAbsInt(t *testing.T) {
	assert.Equal(t, 5, absInt(-5))
	assert.Equal(t, 5, absInt(5))
	assert.Equal(t, 0, absInt(0))
}
