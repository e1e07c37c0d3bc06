// Package config builds the immutable configuration record with viper:
// SetDefault, SetConfigName, AddConfigPath, AutomaticEnv, Unmarshal.
// Only the resulting struct is passed to the analysis packages; YAML
// parsing itself stays ambient wiring.
package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	General GeneralConfig `mapstructure:"general"`
	Scoring ScoringConfig `mapstructure:"scoring"`
	Modules ModulesConfig `mapstructure:"modules"`
	Output  OutputConfig  `mapstructure:"output"`
}

type GeneralConfig struct {
	MaxImageSizeMB   int  `mapstructure:"max_image_size_mb"`
	TargetResolution int  `mapstructure:"target_resolution"`
	TimeoutSeconds   int  `mapstructure:"timeout_seconds"`
	FailOpen         bool `mapstructure:"fail_open"`
}

type ScoringConfig struct {
	Thresholds      ThresholdsConfig `mapstructure:"thresholds"`
	CalibrationData string           `mapstructure:"calibration_data"`
}

type ThresholdsConfig struct {
	Safe       float64 `mapstructure:"safe"`
	Suspicious float64 `mapstructure:"suspicious"`
	Dangerous  float64 `mapstructure:"dangerous"`
}

type ModulesConfig struct {
	TextExtraction    TextExtractionConfig    `mapstructure:"text_extraction"`
	HiddenText        HiddenTextConfig        `mapstructure:"hidden_text"`
	FrequencyAnalysis FrequencyAnalysisConfig `mapstructure:"frequency_analysis"`
	Steganography     SteganographyConfig     `mapstructure:"steganography"`
	Structural        StructuralConfig        `mapstructure:"structural"`
}

type TextExtractionConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Weight       float64  `mapstructure:"weight"`
	Languages    []string `mapstructure:"languages"`
	PatternPath  string   `mapstructure:"pattern_path"`
	TesseractCmd string   `mapstructure:"tesseract_cmd"`
}

type HiddenTextConfig struct {
	Enabled              bool    `mapstructure:"enabled"`
	Weight               float64 `mapstructure:"weight"`
	ContrastThresholds   []int   `mapstructure:"contrast_thresholds"`
	EdgeDensityThreshold float64 `mapstructure:"edge_density_threshold"`
	EdgeGridSize         int     `mapstructure:"edge_grid_size"`
	AnalyzeCorners       bool    `mapstructure:"analyze_corners"`
	AnalyzeBorders       bool    `mapstructure:"analyze_borders"`
}

type FrequencyAnalysisConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	Weight           float64 `mapstructure:"weight"`
	FFTEnabled       bool    `mapstructure:"fft_enabled"`
	DCTEnabled       bool    `mapstructure:"dct_enabled"`
	WaveletEnabled   bool    `mapstructure:"wavelet_enabled"`
	FFTThreshold     float64 `mapstructure:"fft_threshold"`
	DCTThreshold     float64 `mapstructure:"dct_threshold"`
	WaveletThreshold float64 `mapstructure:"wavelet_threshold"`
	WaveletType      string  `mapstructure:"wavelet_type"`
	WaveletLevels    int     `mapstructure:"wavelet_levels"`
	BaselineModel    string  `mapstructure:"baseline_model"`
}

type SteganographyConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	Weight        float64 `mapstructure:"weight"`
	LSBAnalysis   bool    `mapstructure:"lsb_analysis"`
	ChiSquareTest bool    `mapstructure:"chi_square_test"`
	RSAnalysis    bool    `mapstructure:"rs_analysis"`
	SPAAnalysis   bool    `mapstructure:"spa_analysis"`
}

type StructuralConfig struct {
	Enabled               bool    `mapstructure:"enabled"`
	Weight                float64 `mapstructure:"weight"`
	DetectQR              bool    `mapstructure:"detect_qr"`
	DetectBarcodes        bool    `mapstructure:"detect_barcodes"`
	DetectScreenshots     bool    `mapstructure:"detect_screenshots"`
	AnalyzeDecodedContent bool    `mapstructure:"analyze_decoded_content"`
}

type OutputConfig struct {
	IncludeExtractedText bool `mapstructure:"include_extracted_text"`
	MaxTextLength        int  `mapstructure:"max_text_length"`
}

// Load builds the Config from defaults, an optional config file, and
// environment overrides.
func Load() (*Config, error) {
	viper.SetDefault("general.max_image_size_mb", 50)
	viper.SetDefault("general.target_resolution", 1920)
	viper.SetDefault("general.timeout_seconds", 30)
	viper.SetDefault("general.fail_open", true)

	viper.SetDefault("scoring.thresholds.safe", 0.4)
	viper.SetDefault("scoring.thresholds.suspicious", 0.6)
	viper.SetDefault("scoring.thresholds.dangerous", 0.6)
	viper.SetDefault("scoring.calibration_data", "")

	viper.SetDefault("modules.text_extraction.enabled", true)
	viper.SetDefault("modules.text_extraction.weight", 2.0)
	viper.SetDefault("modules.text_extraction.languages", []string{"eng"})
	viper.SetDefault("modules.text_extraction.pattern_path", "")
	viper.SetDefault("modules.text_extraction.tesseract_cmd", "")

	viper.SetDefault("modules.hidden_text.enabled", true)
	viper.SetDefault("modules.hidden_text.weight", 1.5)
	viper.SetDefault("modules.hidden_text.contrast_thresholds", []int{50, 100, 150, 200, 250})
	viper.SetDefault("modules.hidden_text.edge_density_threshold", 0.15)
	viper.SetDefault("modules.hidden_text.edge_grid_size", 4)
	viper.SetDefault("modules.hidden_text.analyze_corners", true)
	viper.SetDefault("modules.hidden_text.analyze_borders", true)

	viper.SetDefault("modules.frequency_analysis.enabled", true)
	viper.SetDefault("modules.frequency_analysis.weight", 1.0)
	viper.SetDefault("modules.frequency_analysis.fft_enabled", true)
	viper.SetDefault("modules.frequency_analysis.dct_enabled", true)
	viper.SetDefault("modules.frequency_analysis.wavelet_enabled", true)
	viper.SetDefault("modules.frequency_analysis.fft_threshold", 0.7)
	viper.SetDefault("modules.frequency_analysis.dct_threshold", 0.6)
	viper.SetDefault("modules.frequency_analysis.wavelet_threshold", 0.5)
	viper.SetDefault("modules.frequency_analysis.wavelet_type", "haar")
	viper.SetDefault("modules.frequency_analysis.wavelet_levels", 2)
	viper.SetDefault("modules.frequency_analysis.baseline_model", "")

	viper.SetDefault("modules.steganography.enabled", true)
	viper.SetDefault("modules.steganography.weight", 1.0)
	viper.SetDefault("modules.steganography.lsb_analysis", true)
	viper.SetDefault("modules.steganography.chi_square_test", true)
	viper.SetDefault("modules.steganography.rs_analysis", true)
	viper.SetDefault("modules.steganography.spa_analysis", false)

	viper.SetDefault("modules.structural.enabled", true)
	viper.SetDefault("modules.structural.weight", 1.0)
	viper.SetDefault("modules.structural.detect_qr", true)
	viper.SetDefault("modules.structural.detect_barcodes", true)
	viper.SetDefault("modules.structural.detect_screenshots", true)
	viper.SetDefault("modules.structural.analyze_decoded_content", true)

	viper.SetDefault("output.include_extracted_text", true)
	viper.SetDefault("output.max_text_length", 10000)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
