// Package structural analyzes machine-readable and synthetic structure
// in an image: QR and barcode decoding, a screenshot heuristic, a
// text-overlay heuristic, and injection-pattern matching against
// decoded payloads. The 1D barcode path delegates to the injected
// core.BarcodeDecoder rather than duplicating decode logic here.
package structural

import (
	"context"
	"image"
	"math"

	"gocv.io/x/gocv"

	"imageguard/internal/core"
	"imageguard/internal/cvutil"
)

var commonAspectRatios = []float64{16.0 / 9.0, 9.0 / 16.0, 4.0 / 3.0, 3.0 / 4.0}

// Module implements core.Module for QR/barcode/screenshot analysis.
type Module struct{}

func New() Module { return Module{} }

func (Module) ID() string { return "structural" }

func (m Module) Analyze(ctx context.Context, img *core.Image, cfg core.ModuleConfig, shared *core.SharedContext) (*core.ModuleResult, error) {
	bgr, err := cvutil.RGBAToMat(img.RGB)
	if err != nil {
		return nil, err
	}
	defer bgr.Close()
	gray := cvutil.MatToGray(bgr)
	defer gray.Close()

	qrFound, qrDecoded, qrPoints := false, []string{}, 0
	if cfg.DetectQR {
		qrFound, qrDecoded, qrPoints = detectQR(bgr)
	}

	barcodesFound := false
	var barcodeResults []core.BarcodeResult
	barcodeStatus := "unavailable"
	if cfg.DetectBarcodes {
		if shared.BarcodeDecoder == nil {
			barcodeStatus = "unavailable"
		} else {
			barcodeStatus = "ok"
			results, berr := shared.BarcodeDecoder.Decode(img.RGB)
			if berr == nil {
				barcodeResults = results
				barcodesFound = len(results) > 0
			}
		}
	}

	var decodedPayloads []string
	decodedPayloads = append(decodedPayloads, qrDecoded...)
	for _, b := range barcodeResults {
		decodedPayloads = append(decodedPayloads, b.Content)
	}

	containsInjection := false
	if cfg.AnalyzeDecodedContent {
		for _, payload := range decodedPayloads {
			if len(shared.Patterns.FindMatches(payload)) > 0 {
				containsInjection = true
				break
			}
		}
	}

	isScreenshot, screenshotConfidence, uiElements := false, 0.0, []string{}
	if cfg.DetectScreenshots {
		isScreenshot, screenshotConfidence, uiElements = screenshotHeuristics(gray)
	}

	syntheticTextDetected, overlayCount := detectTextOverlay(gray)

	score := 0.0
	if qrFound || barcodesFound {
		score += 0.3
	}
	if containsInjection {
		score += 0.4
	}
	if isScreenshot {
		score += 0.3 * screenshotConfidence
	}
	if syntheticTextDetected {
		score += 0.2
	}
	score = clamp01(score)

	barcodeContent := make([]string, 0, len(barcodeResults))
	barcodeTypes := make([]string, 0, len(barcodeResults))
	for _, b := range barcodeResults {
		barcodeContent = append(barcodeContent, b.Content)
		barcodeTypes = append(barcodeTypes, b.Type)
	}

	details := map[string]any{
		"qr_codes": map[string]any{
			"found":              qrFound,
			"count":              len(qrDecoded),
			"decoded_content":    qrDecoded,
			"points":             qrPoints,
			"contains_injection": containsInjection && qrFound,
		},
		"barcodes": map[string]any{
			"found":           barcodesFound,
			"count":           len(barcodeResults),
			"types":           barcodeTypes,
			"decoded_content": barcodeContent,
			"status":          barcodeStatus,
		},
		"screenshot_analysis": map[string]any{
			"is_screenshot":        isScreenshot,
			"confidence":           screenshotConfidence,
			"detected_ui_elements": uiElements,
		},
		"text_overlay_analysis": map[string]any{
			"synthetic_text_detected": syntheticTextDetected,
			"overlay_region_count":    overlayCount,
		},
	}

	return &core.ModuleResult{Score: &score, Status: core.StatusOK, Details: details}, nil
}

// detectQR runs gocv's multi-QR detector, filtering empty payloads.
func detectQR(bgr gocv.Mat) (found bool, decoded []string, pointCount int) {
	detector := gocv.NewQRCodeDetector()
	defer detector.Close()

	var raw []string
	points := gocv.NewMat()
	defer points.Close()
	var codes []gocv.Mat
	defer func() {
		for _, c := range codes {
			c.Close()
		}
	}()

	detector.DetectAndDecodeMulti(bgr, &raw, &points, &codes)
	for _, d := range raw {
		if d != "" {
			decoded = append(decoded, d)
		}
	}
	return len(decoded) > 0, decoded, points.Rows()
}

// screenshotHeuristics accumulates a screenshot confidence from
// aspect-ratio match, Hough-line count, top/bottom UI bars, and
// rectangular-contour count.
func screenshotHeuristics(gray gocv.Mat) (isScreenshot bool, confidence float64, elements []string) {
	h, w := gray.Rows(), gray.Cols()
	if h == 0 || w == 0 {
		return false, 0, nil
	}

	aspect := float64(w) / float64(h)
	aspectMatch := false
	for _, r := range commonAspectRatios {
		if math.Abs(aspect-r) < 0.15 {
			aspectMatch = true
			break
		}
	}

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 50, 150)

	minLen := float32(minInt(w, h) / 4)
	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLinesPWithParams(edges, &lines, 1, math.Pi/180, 80, minLen, 10)

	lineCount := lines.Rows()
	topBar, bottomBar := false, false
	for i := 0; i < lineCount; i++ {
		v := lines.GetVeciAt(i, 0)
		x1, y1, x2, y2 := int(v[0]), int(v[1]), int(v[2]), int(v[3])
		_ = x1
		_ = x2
		if absInt(y1-y2) < 4 {
			if float64(y1) < float64(h)*0.1 {
				topBar = true
			}
			if float64(y1) > float64(h)*0.9 {
				bottomBar = true
			}
		}
	}

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.AdaptiveThreshold(gray, &thresh, 255, gocv.AdaptiveThresholdMean, gocv.ThresholdBinaryInv, 21, 10)

	contours := gocv.FindContours(thresh, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	rects := 0
	for i := 0; i < contours.Size(); i++ {
		rect := gocv.BoundingRect(contours.At(i))
		area := rect.Dx() * rect.Dy()
		if area < 200 {
			continue
		}
		rh := rect.Dy()
		if rh < 1 {
			rh = 1
		}
		ratio := float64(rect.Dx()) / float64(rh)
		if ratio > 2 && ratio < 20 {
			rects++
		}
	}

	confidence = 0.0
	if aspectMatch {
		elements = append(elements, "aspect_ratio_match")
		confidence += 0.2
	}
	if lineCount > 10 {
		elements = append(elements, "straight_lines")
		confidence += 0.2
	}
	if topBar {
		elements = append(elements, "top_bar")
		confidence += 0.2
	}
	if bottomBar {
		elements = append(elements, "bottom_bar")
		confidence += 0.1
	}
	if rects > 6 {
		elements = append(elements, "rectangular_ui_elements")
		confidence += 0.3
	}

	confidence = math.Min(1.0, confidence)
	return confidence >= 0.5, confidence, elements
}

// detectTextOverlay flags images with more than 6 overlay-shaped
// contours: wide, short, low-area regions typical of rendered text
// boxes.
func detectTextOverlay(gray gocv.Mat) (detected bool, count int) {
	h, w := gray.Rows(), gray.Cols()
	if h == 0 || w == 0 {
		return false, 0
	}

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 50, 150)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(edges, &dilated, kernel)

	contours := gocv.FindContours(dilated, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	imageArea := float64(h * w)
	regions := 0
	for i := 0; i < contours.Size(); i++ {
		rect := gocv.BoundingRect(contours.At(i))
		rw, rh := rect.Dx(), rect.Dy()
		if rw < 20 || rh < 8 {
			continue
		}
		denom := rh
		if denom < 1 {
			denom = 1
		}
		if float64(rw)/float64(denom) < 2 {
			continue
		}
		if float64(rw*rh) > imageArea*0.1 {
			continue
		}
		regions++
	}
	return regions > 6, regions
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
