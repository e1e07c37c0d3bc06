package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"imageguard/internal/core"
)

func ptr(v float64) *float64 { return &v }

func TestWeightedAverage_IgnoresNullScores(t *testing.T) {
	scores := map[string]*float64{
		"text_extraction":    ptr(0.8),
		"hidden_text":        nil,
		"frequency_analysis": ptr(0.2),
	}
	weights := map[string]float64{"text_extraction": 2.0, "frequency_analysis": 1.0}
	got := WeightedAverage(scores, weights)
	assert.InDelta(t, (2.0*0.8+1.0*0.2)/3.0, got, 1e-9)
}

func TestWeightedAverage_ZeroWhenNoContribution(t *testing.T) {
	scores := map[string]*float64{"text_extraction": nil}
	got := WeightedAverage(scores, nil)
	assert.Equal(t, 0.0, got)
}

func TestClassifyTiered_SafeFloorQuirk(t *testing.T) {
	th := core.Thresholds{Safe: 0.3, Suspicious: 0.6, Dangerous: 0.8}
	// risk >= safe but < suspicious: still SUSPICIOUS, never SAFE.
	assert.Equal(t, core.Suspicious, ClassifyTiered(0.4, th))
	assert.Equal(t, core.Safe, ClassifyTiered(0.1, th))
	assert.Equal(t, core.Suspicious, ClassifyTiered(0.65, th))
	assert.Equal(t, core.Dangerous, ClassifyTiered(0.9, th))
}

func TestClassifyOverride(t *testing.T) {
	cls, th := ClassifyOverride(0.95, 0.9)
	assert.Equal(t, core.Dangerous, cls)
	assert.Equal(t, 0.9, th.Safe)
	assert.Equal(t, 0.9, th.Suspicious)
	assert.Equal(t, 0.9, th.Dangerous)

	cls2, _ := ClassifyOverride(0.1, 0.9)
	assert.Equal(t, core.Safe, cls2)
}

func TestConfidence_VarianceMethodWhenNoCalibration(t *testing.T) {
	confidence, raw, method := Confidence(0.5, []float64{0.5, 0.5, 0.5}, nil)
	assert.Equal(t, core.ConfidenceVariance, method)
	assert.InDelta(t, 0.99, raw, 1e-9)
	assert.Equal(t, raw, confidence)
}

func TestConfidence_PlattMethodWhenCalibrationPresent(t *testing.T) {
	calib := &core.Calibration{A: -10, B: 2}
	confidence, _, method := Confidence(0.8, []float64{0.8, 0.2}, calib)
	assert.Equal(t, core.ConfidencePlatt, method)
	assert.GreaterOrEqual(t, confidence, 0.0)
	assert.LessOrEqual(t, confidence, 1.0)
}

func TestConfidence_FallbackWhenNoScores(t *testing.T) {
	_, raw, _ := Confidence(0.0, nil, nil)
	assert.Equal(t, 0.5, raw)
}
