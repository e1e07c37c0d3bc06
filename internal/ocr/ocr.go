// Package ocr wraps Tesseract (via github.com/otiai10/gosseract) behind
// the core.OCRAdapter capability interface, the page-segmentation-mode
// aware contract the text and hidden-text modules call through.
//
// GosseractAdapter wraps calls through a circuit breaker: repeated
// Tesseract failures (missing install, corrupt tessdata) open the
// breaker so a request fails fast instead of repeatedly paying the
// engine-init cost. This is additive resilience; it never changes a
// module's score math, only how quickly a failing OCR call surfaces as
// status=error.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/otiai10/gosseract/v2"

	"imageguard/internal/core"
)

func psmValue(mode core.PSM) gosseract.PageSegMode {
	switch mode {
	case core.PSMSparse:
		return gosseract.PSM_SPARSE_TEXT
	case core.PSMBlock:
		return gosseract.PSM_SINGLE_BLOCK
	default:
		return gosseract.PSM_AUTO
	}
}

// GosseractAdapter implements core.OCRAdapter against libtesseract.
// Each call spins a client with the requested languages/PSM; gosseract
// clients are not safe to share across concurrent PSM/language
// configurations, so one is created per call rather than pooled.
type GosseractAdapter struct {
	// TessdataPrefix overrides the tessdata directory when non-empty.
	// gosseract binds libtesseract directly, so there is no external
	// binary path to configure.
	TessdataPrefix string
	breaker        *CircuitBreaker
}

// NewGosseractAdapter builds an adapter, optionally pointing at a
// non-default tessdata directory.
func NewGosseractAdapter(tessdataPrefix string) *GosseractAdapter {
	return &GosseractAdapter{
		TessdataPrefix: tessdataPrefix,
		breaker: NewCircuitBreaker(CircuitBreakerConfig{
			Name:             "ocr",
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          3 * time.Second,
			MaxTimeout:       30 * time.Second,
		}),
	}
}

var _ core.OCRAdapter = (*GosseractAdapter)(nil)

// Recognize runs Tesseract over img with the given languages and PSM
// hint, returning the extracted text and the engine's mean word
// confidence, averaged over non-negative per-word values.
func (a *GosseractAdapter) Recognize(ctx context.Context, img image.Image, languages []string, mode core.PSM) (core.OCRResult, error) {
	var result core.OCRResult
	err := a.breaker.Call(func() error {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return fmt.Errorf("encode image for ocr: %w", err)
		}

		client := gosseract.NewClient()
		defer client.Close()
		if a.TessdataPrefix != "" {
			client.SetTessdataPrefix(a.TessdataPrefix)
		}
		if len(languages) > 0 {
			if err := client.SetLanguage(languages...); err != nil {
				return fmt.Errorf("set ocr languages: %w", err)
			}
		}
		if err := client.SetPageSegMode(psmValue(mode)); err != nil {
			return fmt.Errorf("set ocr psm: %w", err)
		}
		if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
			return fmt.Errorf("set ocr image: %w", err)
		}

		text, err := client.Text()
		if err != nil {
			return fmt.Errorf("run ocr: %w", err)
		}
		result = core.OCRResult{Text: text, Confidence: meanWordConfidence(client)}
		return nil
	})
	return result, err
}

// meanWordConfidence averages per-word confidences, skipping the
// negative sentinel values Tesseract reports for non-word boxes.
func meanWordConfidence(client *gosseract.Client) float64 {
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	var n int
	for _, box := range boxes {
		if box.Confidence >= 0 {
			sum += box.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
