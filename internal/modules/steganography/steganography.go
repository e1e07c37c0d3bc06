// Package steganography estimates LSB embedding likelihood from the
// grayscale luminance array: LSB-plane entropy, the pair-wise
// chi-square test, RS analysis, and the optional SPA estimator.
package steganography

import (
	"context"
	"math"

	"imageguard/internal/core"
	"imageguard/internal/cvutil"
)

// Module implements core.Module for LSB steganography detection.
type Module struct{}

func New() Module { return Module{} }

func (Module) ID() string { return "steganography" }

func (m Module) Analyze(ctx context.Context, img *core.Image, cfg core.ModuleConfig, shared *core.SharedContext) (*core.ModuleResult, error) {
	gray, err := grayBytes(img)
	if err != nil {
		return nil, err
	}

	details := map[string]any{}
	var scores []float64

	if cfg.LSBAnalysis {
		randomness, onesRatio, patternDetected := lsbAnalysis(gray)
		details["lsb_analysis"] = map[string]any{
			"randomness_score": randomness,
			"pattern_detected": patternDetected,
			"ones_ratio":       onesRatio,
		}
		scores = append(scores, randomness)
	}

	if cfg.ChiSquareTest {
		pValue, significant := chiSquareTest(gray)
		details["chi_square_test"] = map[string]any{"p_value": pValue, "is_significant": significant}
		sub := 0.0
		if significant {
			sub = 1.0
		}
		scores = append(scores, sub)
	}

	if cfg.RSAnalysis {
		rsRatio := rsAnalysis(gray)
		sub := math.Max(0, 1-math.Min(1, math.Abs(rsRatio)/0.5))
		details["rs_analysis"] = map[string]any{"rs_ratio": rsRatio}
		scores = append(scores, sub)
	}

	if cfg.SPAAnalysis {
		diffRatio := spaAnalysis(gray)
		sub := clamp01((diffRatio - 0.25) / 0.25)
		details["spa_analysis"] = map[string]any{"estimated_embedding_rate": sub, "lsb_diff_ratio": diffRatio}
		scores = append(scores, sub)
	}

	score := 0.0
	if len(scores) > 0 {
		var sum float64
		for _, s := range scores {
			sum += s
		}
		score = clamp01(sum / float64(len(scores)))
	}

	return &core.ModuleResult{Score: &score, Status: core.StatusOK, Details: details}, nil
}

// grayBytes converts the normalized RGB buffer into a row-major 8-bit
// grayscale array.
func grayBytes(img *core.Image) ([][]uint8, error) {
	bgr, err := cvutil.RGBAToMat(img.RGB)
	if err != nil {
		return nil, err
	}
	defer bgr.Close()

	grayMat := cvutil.MatToGray(bgr)
	defer grayMat.Close()

	h, w := grayMat.Rows(), grayMat.Cols()
	gray := make([][]uint8, h)
	for y := 0; y < h; y++ {
		row := make([]uint8, w)
		for x := 0; x < w; x++ {
			row[x] = grayMat.GetUCharAt(y, x)
		}
		gray[y] = row
	}
	return gray, nil
}

// lsbAnalysis computes the LSB-plane binary entropy and the pattern
// flag. The raw entropy is the module-level contribution as-is, so
// naturally noisy images score as suspicious too.
func lsbAnalysis(gray [][]uint8) (randomness, onesRatio float64, patternDetected bool) {
	var ones, total int
	for _, row := range gray {
		for _, v := range row {
			total++
			if v&1 == 1 {
				ones++
			}
		}
	}
	if total == 0 {
		return 0, 0, false
	}
	p := float64(ones) / float64(total)
	var entropy float64
	if p > 0 && p < 1 {
		entropy = -p*math.Log2(p) - (1-p)*math.Log2(1-p)
	}
	randomness = clamp01(entropy)
	patternDetected = randomness < 0.7 || p < 0.1 || p > 0.9
	return randomness, p, patternDetected
}

// chiSquareTest runs the 256-bin histogram chi-square test on adjacent
// value pairs, approximating significance via a normal approximation to
// the chi-square distribution at df=127.
func chiSquareTest(gray [][]uint8) (pValue float64, isSignificant bool) {
	var hist [256]int
	for _, row := range gray {
		for _, v := range row {
			hist[v]++
		}
	}
	var chiSq float64
	for i := 0; i < 256; i += 2 {
		observed := float64(hist[i])
		expected := float64(hist[i]+hist[i+1]) / 2.0
		if expected > 0 {
			d := observed - expected
			chiSq += d * d / expected
		}
	}
	const df = 127.0
	z := (chiSq - df) / math.Sqrt(2*df)
	pValue = 0.5 * math.Erfc(z/math.Sqrt2)
	isSignificant = pValue < 0.05
	return pValue, isSignificant
}

// rsAnalysis groups the flattened pixel stream into runs of 4 and
// compares smoothness before/after an LSB flip, returning the
// regular/singular ratio (RS analysis).
func rsAnalysis(gray [][]uint8) float64 {
	const groupSize = 4
	var flat []int
	for _, row := range gray {
		for _, v := range row {
			flat = append(flat, int(v))
		}
	}
	usable := len(flat) - len(flat)%groupSize
	if usable < groupSize {
		return 0
	}

	var regular, singular int
	group := make([]int, groupSize)
	flipped := make([]int, groupSize)
	for i := 0; i < usable; i += groupSize {
		copy(group, flat[i:i+groupSize])
		for j, v := range group {
			flipped[j] = v ^ 1
		}
		fOrig := smoothness(group)
		fFlip := smoothness(flipped)
		switch {
		case fFlip > fOrig:
			regular++
		case fFlip < fOrig:
			singular++
		}
	}
	total := regular + singular
	if total == 0 {
		return 0
	}
	return float64(regular-singular) / float64(total)
}

func smoothness(group []int) float64 {
	var sum int
	for i := 1; i < len(group); i++ {
		d := group[i] - group[i-1]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return float64(sum)
}

// spaAnalysis estimates the embedding rate from horizontally adjacent
// LSB mismatches (sample pair analysis).
func spaAnalysis(gray [][]uint8) float64 {
	var diffs, total int
	for _, row := range gray {
		for x := 1; x < len(row); x++ {
			total++
			if (row[x] & 1) != (row[x-1] & 1) {
				diffs++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(diffs) / float64(total)
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
