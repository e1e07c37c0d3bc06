// Package orchestrator implements the Analyzer: it preprocesses an
// image, schedules the enabled detection modules one after another
// under a soft per-module deadline and fail-open/closed policy, fuses
// their scores, classifies the result, and assembles the aggregate
// envelope.
//
// The "time the call, translate the outcome, build a response" shape
// schedules a deterministic, ordered set of in-process modules rather
// than a single external call; the circuit-breaker idea lives down in
// internal/ocr, wrapping the OCR collaborator specifically rather than
// the whole pipeline.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"imageguard/internal/calibration"
	"imageguard/internal/config"
	"imageguard/internal/core"
	"imageguard/internal/patterns"
	"imageguard/internal/registry"
	"imageguard/internal/scoring"
	"imageguard/internal/textdeobfuscator"
)

// Options configures a single Analyze call. IncludeText nil and
// MaxTextLength 0 fall back to the configured output defaults.
// ReturnMarked is accepted for wire compatibility; rendering a marked
// image for human review happens outside this pipeline, so
// MarkedImagePath stays empty here.
type Options struct {
	ReturnMarked  bool
	IncludeText   *bool
	MaxTextLength int
	Modules       []string
}

// Analyzer is the orchestrator: it owns the module registry and the
// shared read-only collaborators, and is safe for concurrent use across
// requests — no mutable cross-request state.
type Analyzer struct {
	registry          *registry.Registry
	patterns          core.PatternMatcher
	deobfuscator      core.Deobfuscator
	ocr               core.OCRAdapter
	barcodeDecoder    core.BarcodeDecoder
	calibration       *core.Calibration
	freqBaseline      *core.FrequencyBaseline
	thresholds        core.Thresholds
	thresholdOverride *float64
	failOpen          bool
	timeout           time.Duration
	languages         []string
	output            config.OutputConfig
	preprocess        PreprocessOptions
	log               *logrus.Logger
}

// PreprocessOptions mirrors preprocess.Options without importing the
// preprocess package's image-decoding machinery into this file's public
// surface; loadImage builds the real preprocess.Options from it.
type PreprocessOptions struct {
	MaxBytes      int64
	MaxDimension  int
	TargetRes     int
	ValidateMagic bool
}

// Collaborators bundles the external capability implementations the
// orchestrator schedules modules through. Callers (cmd/server) construct
// the concrete OCR/barcode adapters since those require process-level
// setup (tessdata directory, etc.); the orchestrator only consumes
// the capability interfaces.
type Collaborators struct {
	OCR            core.OCRAdapter
	BarcodeDecoder core.BarcodeDecoder
}

// New builds an Analyzer from configuration plus the threshold
// override, weight overrides, and OCR languages. moduleNames is checked
// against the registry (an unknown name is a ConfigError) but is not
// retained: each Analyze call runs Options.Modules, or the configured
// enabled set when that is empty. A nil logger defaults to a discarding
// one so the analyzer stays usable outside an HTTP server.
func New(cfg *config.Config, collab Collaborators, moduleNames []string, thresholdOverride *float64, weightOverrides map[string]float64, languages []string, log *logrus.Logger) (*Analyzer, error) {
	if log == nil {
		log = logrus.New()
		log.SetOutput(discardWriter{})
	}

	reg := registry.New()
	ps := patterns.NewStore(patterns.LoadPatterns(cfg.Modules.TextExtraction.PatternPath))
	deob := textdeobfuscator.New()

	reg.Register(registry.ModuleEntry{
		ID:       "text_extraction",
		Module:   textModule{},
		Enabled:  cfg.Modules.TextExtraction.Enabled,
		Priority: 0,
		Config: core.ModuleConfig{
			ID:        "text_extraction",
			Weight:    cfg.Modules.TextExtraction.Weight,
			Languages: cfg.Modules.TextExtraction.Languages,
		},
	})
	reg.Register(registry.ModuleEntry{
		ID:       "hidden_text",
		Module:   hiddenTextModule{},
		Enabled:  cfg.Modules.HiddenText.Enabled,
		Priority: 1,
		Config: core.ModuleConfig{
			ID:                   "hidden_text",
			Weight:               cfg.Modules.HiddenText.Weight,
			ContrastThresholds:   cfg.Modules.HiddenText.ContrastThresholds,
			EdgeDensityThreshold: cfg.Modules.HiddenText.EdgeDensityThreshold,
			EdgeGridSize:         cfg.Modules.HiddenText.EdgeGridSize,
			AnalyzeCorners:       cfg.Modules.HiddenText.AnalyzeCorners,
			AnalyzeBorders:       cfg.Modules.HiddenText.AnalyzeBorders,
		},
	})
	reg.Register(registry.ModuleEntry{
		ID:       "frequency_analysis",
		Module:   frequencyModule{},
		Enabled:  cfg.Modules.FrequencyAnalysis.Enabled,
		Priority: 2,
		Config: core.ModuleConfig{
			ID:               "frequency_analysis",
			Weight:           cfg.Modules.FrequencyAnalysis.Weight,
			FFTEnabled:       cfg.Modules.FrequencyAnalysis.FFTEnabled,
			DCTEnabled:       cfg.Modules.FrequencyAnalysis.DCTEnabled,
			WaveletEnabled:   cfg.Modules.FrequencyAnalysis.WaveletEnabled,
			FFTThreshold:     cfg.Modules.FrequencyAnalysis.FFTThreshold,
			DCTThreshold:     cfg.Modules.FrequencyAnalysis.DCTThreshold,
			WaveletThreshold: cfg.Modules.FrequencyAnalysis.WaveletThreshold,
			WaveletType:      cfg.Modules.FrequencyAnalysis.WaveletType,
			WaveletLevels:    cfg.Modules.FrequencyAnalysis.WaveletLevels,
		},
	})
	reg.Register(registry.ModuleEntry{
		ID:       "steganography",
		Module:   steganographyModule{},
		Enabled:  cfg.Modules.Steganography.Enabled,
		Priority: 3,
		Config: core.ModuleConfig{
			ID:            "steganography",
			Weight:        cfg.Modules.Steganography.Weight,
			LSBAnalysis:   cfg.Modules.Steganography.LSBAnalysis,
			ChiSquareTest: cfg.Modules.Steganography.ChiSquareTest,
			RSAnalysis:    cfg.Modules.Steganography.RSAnalysis,
			SPAAnalysis:   cfg.Modules.Steganography.SPAAnalysis,
		},
	})
	reg.Register(registry.ModuleEntry{
		ID:       "structural",
		Module:   structuralModule{},
		Enabled:  cfg.Modules.Structural.Enabled,
		Priority: 4,
		Config: core.ModuleConfig{
			ID:                    "structural",
			Weight:                cfg.Modules.Structural.Weight,
			DetectQR:              cfg.Modules.Structural.DetectQR,
			DetectBarcodes:        cfg.Modules.Structural.DetectBarcodes,
			DetectScreenshots:     cfg.Modules.Structural.DetectScreenshots,
			AnalyzeDecodedContent: cfg.Modules.Structural.AnalyzeDecodedContent,
		},
	})

	for id, w := range weightOverrides {
		canonical := registry.Resolve(id)
		if err := reg.SetWeight(canonical, w); err != nil {
			return nil, err
		}
	}

	// Validate the caller's requested module set so a typo surfaces at
	// construction time.
	if _, err := reg.ResolveRequested(moduleNames); err != nil {
		return nil, err
	}

	thresholds := core.Thresholds{
		Safe:       cfg.Scoring.Thresholds.Safe,
		Suspicious: cfg.Scoring.Thresholds.Suspicious,
		Dangerous:  cfg.Scoring.Thresholds.Dangerous,
	}

	return &Analyzer{
		registry:          reg,
		patterns:          ps,
		deobfuscator:      deob,
		ocr:               collab.OCR,
		barcodeDecoder:    collab.BarcodeDecoder,
		calibration:       calibration.LoadPlatt(cfg.Scoring.CalibrationData),
		freqBaseline:      calibration.LoadFrequencyBaseline(cfg.Modules.FrequencyAnalysis.BaselineModel),
		thresholds:        thresholds,
		thresholdOverride: thresholdOverride,
		failOpen:          cfg.General.FailOpen,
		timeout:           time.Duration(cfg.General.TimeoutSeconds) * time.Second,
		languages:         languages,
		output:            cfg.Output,
		preprocess: PreprocessOptions{
			MaxBytes:      int64(cfg.General.MaxImageSizeMB) * 1024 * 1024,
			MaxDimension:  maxDimensionFromTarget(cfg.General.TargetResolution),
			TargetRes:     cfg.General.TargetResolution,
			ValidateMagic: true,
		},
		log: log,
	}, nil
}

// maxDimensionFromTarget derives a generous upper bound on *input*
// dimensions from the configured target resolution, since configuration
// only exposes target_resolution directly; preprocessing still rejects
// images whose original dimensions are unreasonably large before ever
// resizing them down.
func maxDimensionFromTarget(target int) int {
	if target <= 0 {
		target = 1920
	}
	return target * 8
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Analyze runs the full pipeline for a single image: preprocess,
// schedule each enabled module under its deadline and fail policy, fuse
// scores, classify, compute confidence, and assemble the result. When
// the Analyzer was constructed with a threshold override, it replaces
// the tiered ladder with the single-threshold override path for every
// call.
//
// ProcessingTimeMS measures elapsed orchestrator time; per-module
// LatencyMS values are independent wall-clock measurements, so their
// sum may exceed the overall figure by boundary-work amounts.
func (a *Analyzer) Analyze(ctx context.Context, imagePath string, opts Options) (*core.AggregateResult, error) {
	start := time.Now()

	img, err := a.loadImage(imagePath)
	if err != nil {
		return nil, err
	}

	entries, err := a.registry.ResolveRequested(opts.Modules)
	if err != nil {
		return nil, err
	}

	includeText := a.output.IncludeExtractedText
	if opts.IncludeText != nil {
		includeText = *opts.IncludeText
	}
	maxTextLength := a.output.MaxTextLength
	if opts.MaxTextLength > 0 {
		maxTextLength = opts.MaxTextLength
	}

	shared := &core.SharedContext{
		Patterns:       a.patterns,
		Deobfuscator:   a.deobfuscator,
		OCR:            a.ocr,
		BarcodeDecoder: a.barcodeDecoder,
		Calibration:    a.calibration,
		FrequencyBase:  a.freqBaseline,
		Languages:      a.languages,
		IncludeText:    includeText,
		MaxTextLength:  maxTextLength,
	}

	moduleResults := make(map[string]*core.ModuleResult, len(entries))
	scores := make(map[string]*float64, len(entries))
	weights := make(map[string]float64, len(entries))

	for _, entry := range entries {
		// Cancellation is honored at module boundaries only: a running
		// module completes and its partial result is discarded.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		weights[entry.ID] = entry.Config.Weight

		moduleStart := time.Now()
		result, modErr := a.runModule(ctx, entry, img, shared)
		elapsed := time.Since(moduleStart)

		if modErr != nil {
			a.log.WithFields(logrus.Fields{"module": entry.ID, "error": modErr}).Warn("module failed")
			if !a.failOpen {
				return a.failClosedResult(start, imagePath, img, entry.ID, modErr.Error()), nil
			}
			moduleResults[entry.ID] = &core.ModuleResult{
				Status:    core.StatusError,
				LatencyMS: elapsed.Milliseconds(),
				Details:   map[string]any{"message": modErr.Error()},
			}
			scores[entry.ID] = nil
			continue
		}

		if a.timeout > 0 && elapsed > a.timeout {
			a.log.WithFields(logrus.Fields{"module": entry.ID, "elapsed_ms": elapsed.Milliseconds()}).Warn("module exceeded deadline")
			if !a.failOpen {
				return a.failClosedResult(start, imagePath, img, entry.ID, fmt.Sprintf("module %q exceeded deadline of %s", entry.ID, a.timeout)), nil
			}
			moduleResults[entry.ID] = &core.ModuleResult{
				Status:    core.StatusTimeout,
				LatencyMS: elapsed.Milliseconds(),
			}
			scores[entry.ID] = nil
			continue
		}

		result.Status = core.StatusOK
		result.LatencyMS = elapsed.Milliseconds()
		moduleResults[entry.ID] = result
		scores[entry.ID] = result.Score
	}

	risk := scoring.WeightedAverage(scores, weights)

	var classification core.Classification
	var thresholdsUsed core.Thresholds
	if a.thresholdOverride != nil {
		classification, thresholdsUsed = scoring.ClassifyOverride(risk, *a.thresholdOverride)
	} else {
		classification = scoring.ClassifyTiered(risk, a.thresholds)
		thresholdsUsed = a.thresholds
	}

	var nonNull []float64
	for _, entry := range entries {
		if s := scores[entry.ID]; s != nil {
			nonNull = append(nonNull, *s)
		}
	}
	confidence, confidenceRaw, confidenceMethod := scoring.Confidence(risk, nonNull, a.calibration)

	return &core.AggregateResult{
		RequestID:        uuid.NewString(),
		TimestampUTC:     time.Now().UTC(),
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		ImageInfo:        imageInfo(imagePath, img),
		Classification:   classification,
		RiskScore:        risk,
		Confidence:       confidence,
		ConfidenceRaw:    confidenceRaw,
		ConfidenceMethod: confidenceMethod,
		ThresholdsUsed:   thresholdsUsed,
		ModuleResults:    moduleResults,
	}, nil
}

// runModule invokes a single module, recovering a panic into an error so
// one misbehaving module can never take down a whole request (the fail
// policy below still decides whether that surfaces as fail-open or
// fail-closed).
func (a *Analyzer) runModule(ctx context.Context, entry *registry.ModuleEntry, img *core.Image, shared *core.SharedContext) (result *core.ModuleResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("module %q panicked: %v", entry.ID, r)
		}
	}()
	return entry.Module.Analyze(ctx, img, entry.Config, shared)
}

// failClosedResult builds the canonical fail-closed envelope:
// classification DANGEROUS, risk_score 1.0, confidence 1.0, a single
// synthetic error module entry carrying the triggering message.
func (a *Analyzer) failClosedResult(start time.Time, imagePath string, img *core.Image, failingModule, message string) *core.AggregateResult {
	return &core.AggregateResult{
		RequestID:        uuid.NewString(),
		TimestampUTC:     time.Now().UTC(),
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		ImageInfo:        imageInfo(imagePath, img),
		Classification:   core.Dangerous,
		RiskScore:        1.0,
		Confidence:       1.0,
		ConfidenceRaw:    1.0,
		ConfidenceMethod: core.ConfidenceVariance,
		ThresholdsUsed:   a.thresholds,
		ModuleResults: map[string]*core.ModuleResult{
			failingModule: {
				Status:  core.StatusError,
				Details: map[string]any{"message": message, "fail_closed": true},
			},
		},
	}
}
