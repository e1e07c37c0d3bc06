// Package hiddentext detects low-contrast and single-channel text:
// CLAHE-enhanced multi-threshold OCR, per-channel OCR, and Canny-based
// edge-density flagging over a configurable grid.
package hiddentext

import (
	"context"
	"image"
	"strings"

	"gocv.io/x/gocv"

	"imageguard/internal/core"
	"imageguard/internal/cvutil"
)

var defaultThresholds = []int{50, 100, 150, 200, 250}

// Module implements core.Module for hidden/low-contrast text detection.
type Module struct{}

func New() Module { return Module{} }

func (Module) ID() string { return "hidden_text" }

func (m Module) Analyze(ctx context.Context, img *core.Image, cfg core.ModuleConfig, shared *core.SharedContext) (*core.ModuleResult, error) {
	bgr, err := cvutil.RGBAToMat(img.RGB)
	if err != nil {
		return nil, err
	}
	defer bgr.Close()

	gray := cvutil.MatToGray(bgr)
	defer gray.Close()

	clahe := gocv.NewCLAHEWithParams(2.0, image.Pt(8, 8))
	defer clahe.Close()
	enhanced := gocv.NewMat()
	defer enhanced.Close()
	clahe.Apply(gray, &enhanced)

	languages := cfg.Languages
	if len(languages) == 0 {
		languages = shared.Languages
	}

	baselineResult, err := shared.OCR.Recognize(ctx, img.RGB, languages, core.PSMBlock)
	if err != nil {
		return nil, err
	}
	baselineText := strings.TrimSpace(baselineResult.Text)

	thresholds := cfg.ContrastThresholds
	if len(thresholds) == 0 {
		thresholds = defaultThresholds
	}

	hiddenTexts := make([]string, 0)
	thresholdsUsed := make([]int, 0)
	for _, t := range thresholds {
		binary := gocv.NewMat()
		gocv.Threshold(enhanced, &binary, float32(t), 255, gocv.ThresholdBinary)
		img2, convErr := cvutil.MatToImage(binary)
		binary.Close()
		if convErr != nil {
			continue
		}
		result, err := shared.OCR.Recognize(ctx, img2, languages, core.PSMSparse)
		if err != nil {
			continue
		}
		text := strings.TrimSpace(result.Text)
		if text != "" && !strings.Contains(baselineText, text) {
			hiddenTexts = append(hiddenTexts, text)
			thresholdsUsed = append(thresholdsUsed, t)
		}
	}

	for channel := 0; channel < 3; channel++ {
		chanMat, err := cvutil.ChannelToMat(img.RGB, channel)
		if err != nil {
			continue
		}
		chanImg, convErr := cvutil.MatToImage(chanMat)
		chanMat.Close()
		if convErr != nil {
			continue
		}
		result, err := shared.OCR.Recognize(ctx, chanImg, languages, core.PSMSparse)
		if err != nil {
			continue
		}
		text := strings.TrimSpace(result.Text)
		if text != "" && !strings.Contains(baselineText, text) {
			hiddenTexts = append(hiddenTexts, text)
		}
	}

	edgeThreshold := cfg.EdgeDensityThreshold
	if edgeThreshold <= 0 {
		edgeThreshold = 0.15
	}
	gridSize := cfg.EdgeGridSize
	if gridSize <= 0 {
		gridSize = 4
	}
	flaggedCells, regionsScanned := countFlaggedEdgeCells(enhanced, gridSize, edgeThreshold)

	hiddenPresent := len(hiddenTexts) > 0

	matchText := strings.Join(hiddenTexts, " ")
	if !hiddenPresent {
		matchText = baselineText
	}
	matches := shared.Patterns.FindMatches(matchText)

	score := calculateScore(hiddenPresent, len(matches), flaggedCells)

	details := map[string]any{
		"hidden_text_present": hiddenPresent,
		"hidden_texts":        hiddenTexts,
		"thresholds_used":     thresholdsUsed,
		"flagged_cells":       flaggedCells,
		"cells_scanned":       regionsScanned,
		"patterns_matched":    matchIDs(matches),
	}

	return &core.ModuleResult{Score: &score, Status: core.StatusOK, Details: details}, nil
}

// countFlaggedEdgeCells runs Canny(50,150) and counts grid cells whose
// nonzero ratio exceeds the edge-density threshold. Every cell of the
// grid is scanned.
func countFlaggedEdgeCells(gray gocv.Mat, gridSize int, threshold float64) (flagged, scanned int) {
	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 50, 150)

	rows, cols := edges.Rows(), edges.Cols()
	if rows == 0 || cols == 0 || gridSize <= 0 {
		return 0, 0
	}
	cellH := rows / gridSize
	cellW := cols / gridSize
	if cellH == 0 || cellW == 0 {
		return 0, 0
	}

	for r := 0; r < gridSize; r++ {
		for c := 0; c < gridSize; c++ {
			y0, x0 := r*cellH, c*cellW
			y1, x1 := y0+cellH, x0+cellW
			if r == gridSize-1 {
				y1 = rows
			}
			if c == gridSize-1 {
				x1 = cols
			}
			rect := image.Rect(x0, y0, x1, y1)
			cell := edges.Region(rect)
			nonZero := gocv.CountNonZero(cell)
			cell.Close()
			area := (x1 - x0) * (y1 - y0)
			scanned++
			if area > 0 && float64(nonZero)/float64(area) > threshold {
				flagged++
			}
		}
	}
	return flagged, scanned
}

// calculateScore combines the hidden-text, pattern-match, and
// edge-density contributions into the module score.
func calculateScore(hiddenPresent bool, matchCount int, flaggedCells int) float64 {
	score := 0.0
	if hiddenPresent {
		score += 0.25
	}
	score += 0.15 * float64(matchCount)

	edgeContribution := 0.02 * float64(flaggedCells)
	if edgeContribution > 0.10 {
		edgeContribution = 0.10
	}
	score += edgeContribution

	if score > 1 {
		score = 1
	}
	return score
}

func matchIDs(matches []core.PatternMatch) []string {
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ID)
	}
	return ids
}
