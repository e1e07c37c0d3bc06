// Package calibration loads the optional Platt-scaling and frequency
// baseline JSON files referenced from configuration. Both are
// best-effort: a missing or corrupt file yields nil rather than an
// error, since calibration only refines scoring and never gates it.
package calibration

import (
	"encoding/json"
	"os"

	"imageguard/internal/core"
)

type plattFile struct {
	PlattParameters struct {
		A float64 `json:"A"`
		B float64 `json:"B"`
	} `json:"platt_parameters"`
}

// LoadPlatt reads the Platt-scaling parameters from path. A blank path,
// missing file, or malformed JSON all result in nil — calibration
// is optional, not an error condition.
func LoadPlatt(path string) *core.Calibration {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var parsed plattFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil
	}
	return &core.Calibration{A: parsed.PlattParameters.A, B: parsed.PlattParameters.B}
}

type baselineFile struct {
	FFTHighFreqRatioMean   float64 `json:"fft_high_freq_ratio_mean"`
	FFTHighFreqRatioStd    float64 `json:"fft_high_freq_ratio_std"`
	DCTHFLFRatioMean       float64 `json:"dct_hf_lf_ratio_mean"`
	DCTHFLFRatioStd        float64 `json:"dct_hf_lf_ratio_std"`
	WaveletDetailRatioMean float64 `json:"wavelet_detail_ratio_mean"`
	WaveletDetailRatioStd  float64 `json:"wavelet_detail_ratio_std"`
}

// LoadFrequencyBaseline reads the frequency module's optional baseline
// file. Same best-effort semantics as LoadPlatt.
func LoadFrequencyBaseline(path string) *core.FrequencyBaseline {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var parsed baselineFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil
	}
	return &core.FrequencyBaseline{
		FFTHighFreqRatioMean:   parsed.FFTHighFreqRatioMean,
		FFTHighFreqRatioStd:    parsed.FFTHighFreqRatioStd,
		DCTHFLFRatioMean:       parsed.DCTHFLFRatioMean,
		DCTHFLFRatioStd:        parsed.DCTHFLFRatioStd,
		WaveletDetailRatioMean: parsed.WaveletDetailRatioMean,
		WaveletDetailRatioStd:  parsed.WaveletDetailRatioStd,
	}
}
