package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.General.MaxImageSizeMB)
	assert.Equal(t, 1920, cfg.General.TargetResolution)
	assert.True(t, cfg.General.FailOpen)

	assert.Equal(t, 0.4, cfg.Scoring.Thresholds.Safe)
	assert.Equal(t, 0.6, cfg.Scoring.Thresholds.Suspicious)
	assert.Equal(t, 0.6, cfg.Scoring.Thresholds.Dangerous)

	assert.True(t, cfg.Modules.TextExtraction.Enabled)
	assert.Equal(t, 2.0, cfg.Modules.TextExtraction.Weight)
	assert.Equal(t, []string{"eng"}, cfg.Modules.TextExtraction.Languages)

	assert.Equal(t, []int{50, 100, 150, 200, 250}, cfg.Modules.HiddenText.ContrastThresholds)
	assert.Equal(t, "haar", cfg.Modules.FrequencyAnalysis.WaveletType)
	assert.True(t, cfg.Modules.Steganography.LSBAnalysis)
	assert.False(t, cfg.Modules.Steganography.SPAAnalysis)
	assert.True(t, cfg.Modules.Structural.DetectQR)

	assert.Equal(t, 10000, cfg.Output.MaxTextLength)
	assert.True(t, cfg.Output.IncludeExtractedText)
}
