package calibration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPlatt_BlankPathYieldsNil(t *testing.T) {
	assert.Nil(t, LoadPlatt(""))
}

func TestLoadPlatt_MissingFileYieldsNil(t *testing.T) {
	assert.Nil(t, LoadPlatt(filepath.Join(t.TempDir(), "does-not-exist.json")))
}

func TestLoadPlatt_CorruptFileYieldsNil(t *testing.T) {
	path := filepath.Join(t.TempDir(), "platt.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	assert.Nil(t, LoadPlatt(path))
}

func TestLoadPlatt_ValidFileParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "platt.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"platt_parameters":{"A":-4.5,"B":1.2}}`), 0o644))
	calib := LoadPlatt(path)
	require.NotNil(t, calib)
	assert.Equal(t, -4.5, calib.A)
	assert.Equal(t, 1.2, calib.B)
}

func TestLoadFrequencyBaseline_MissingFileYieldsNil(t *testing.T) {
	assert.Nil(t, LoadFrequencyBaseline(filepath.Join(t.TempDir(), "baseline.json")))
}

func TestLoadFrequencyBaseline_ValidFileParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"fft_high_freq_ratio_mean": 0.12,
		"fft_high_freq_ratio_std": 0.03,
		"dct_hf_lf_ratio_mean": 0.4,
		"dct_hf_lf_ratio_std": 0.05,
		"wavelet_detail_ratio_mean": 0.2,
		"wavelet_detail_ratio_std": 0.01
	}`), 0o644))
	baseline := LoadFrequencyBaseline(path)
	require.NotNil(t, baseline)
	assert.Equal(t, 0.12, baseline.FFTHighFreqRatioMean)
	assert.Equal(t, 0.03, baseline.FFTHighFreqRatioStd)
	assert.Equal(t, 0.4, baseline.DCTHFLFRatioMean)
	assert.Equal(t, 0.01, baseline.WaveletDetailRatioStd)
}
