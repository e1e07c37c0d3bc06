// Package frequency scores frequency-domain anomalies: FFT, DCT, and
// wavelet energy ratios plus an optional baseline deviation sub-score.
// The 2D FFT is composed from gonum's 1D complex transform, per-block
// DCT energy uses gocv.DCT, and the Haar decomposition is computed
// directly.
package frequency

import (
	"context"
	"math"
	"math/cmplx"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	"imageguard/internal/core"
	"imageguard/internal/cvutil"
)

const epsilon = 1e-8

// Module implements core.Module for frequency-domain anomaly detection.
type Module struct{}

func New() Module { return Module{} }

func (Module) ID() string { return "frequency_analysis" }

func (m Module) Analyze(ctx context.Context, img *core.Image, cfg core.ModuleConfig, shared *core.SharedContext) (*core.ModuleResult, error) {
	gray, h, w, err := grayFloat(img)
	if err != nil {
		return nil, err
	}

	details := map[string]any{}
	var scores []float64

	if cfg.FFTEnabled {
		threshold := cfg.FFTThreshold
		if threshold <= 0 {
			threshold = 0.7
		}
		score, ratio := fftAnomaly(gray, h, w, threshold)
		details["fft"] = map[string]any{"score": score, "high_freq_ratio": ratio}
		scores = append(scores, score)
	}

	var dctRatio float64
	if cfg.DCTEnabled {
		threshold := cfg.DCTThreshold
		if threshold <= 0 {
			threshold = 0.6
		}
		var score float64
		score, dctRatio = dctAnomaly(gray, h, w, threshold)
		details["dct"] = map[string]any{"score": score, "hf_lf_ratio": dctRatio}
		scores = append(scores, score)
	}

	waveletType := cfg.WaveletType
	if waveletType == "" {
		waveletType = "haar"
	}
	levels := cfg.WaveletLevels
	if levels <= 0 {
		levels = 1
	}
	var waveletRatio float64
	if cfg.WaveletEnabled {
		threshold := cfg.WaveletThreshold
		if threshold <= 0 {
			threshold = 0.5
		}
		var score float64
		score, waveletRatio = waveletAnomaly(gray, h, w, levels, threshold)
		details["wavelet"] = map[string]any{
			"score":        score,
			"detail_ratio": waveletRatio,
			"wavelet_type": waveletType,
			"levels":       levels,
		}
		scores = append(scores, score)
	}

	baselineScore := 0.0
	if shared.FrequencyBase != nil {
		var fftRatio float64
		if fft, ok := details["fft"].(map[string]any); ok {
			fftRatio, _ = fft["high_freq_ratio"].(float64)
		}
		fftDev := deviation(fftRatio, shared.FrequencyBase.FFTHighFreqRatioMean, shared.FrequencyBase.FFTHighFreqRatioStd)
		dctDev := deviation(dctRatio, shared.FrequencyBase.DCTHFLFRatioMean, shared.FrequencyBase.DCTHFLFRatioStd)
		waveDev := deviation(waveletRatio, shared.FrequencyBase.WaveletDetailRatioMean, shared.FrequencyBase.WaveletDetailRatioStd)
		baselineScore = clamp01((fftDev + dctDev + waveDev) / 3.0)
		details["baseline_score"] = baselineScore
		scores = append(scores, baselineScore)
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

// grayFloat converts the normalized RGB buffer into a single-channel
// float64 matrix in [0,1].
func grayFloat(img *core.Image) (gray [][]float64, h, w int, err error) {
	bgr, err := cvutil.RGBAToMat(img.RGB)
	if err != nil {
		return nil, 0, 0, err
	}
	defer bgr.Close()

	grayMat := cvutil.MatToGray(bgr)
	defer grayMat.Close()

	h, w = grayMat.Rows(), grayMat.Cols()
	gray = make([][]float64, h)
	for y := 0; y < h; y++ {
		row := make([]float64, w)
		for x := 0; x < w; x++ {
			row[x] = float64(grayMat.GetUCharAt(y, x)) / 255.0
		}
		gray[y] = row
	}
	return gray, h, w, nil
}

// fftAnomaly computes the FFT high-frequency-energy ratio and maps it to
// a score via a soft threshold: the low region is a disk of
// radius min(h,w)/8 around the shifted spectrum's center.
func fftAnomaly(gray [][]float64, h, w int, threshold float64) (score, ratio float64) {
	spectrum := fft2D(gray, h, w)
	fftShift(spectrum)

	centerY, centerX := h/2, w/2
	radius := minInt(h, w) / 8

	var inside, outside float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dy, dx := y-centerY, x-centerX
			mag := cmplx.Abs(spectrum[y][x])
			if dy*dy+dx*dx <= radius*radius {
				inside += mag
			} else {
				outside += mag
			}
		}
	}
	inside += epsilon
	outside += epsilon
	ratio = outside / (outside + inside)
	score = clampMap(ratio, threshold)
	return score, ratio
}

// fft2D computes a full 2D complex DFT by composing row-wise and
// column-wise 1D complex FFTs (gonum's fourier.CmplxFFT).
func fft2D(gray [][]float64, h, w int) [][]complex128 {
	rowTransform := fourier.NewCmplxFFT(w)
	rowResult := make([][]complex128, h)
	for y := 0; y < h; y++ {
		seq := make([]complex128, w)
		for x := 0; x < w; x++ {
			seq[x] = complex(gray[y][x], 0)
		}
		rowResult[y] = rowTransform.Coefficients(nil, seq)
	}

	colTransform := fourier.NewCmplxFFT(h)
	result := make([][]complex128, h)
	for y := 0; y < h; y++ {
		result[y] = make([]complex128, w)
	}
	seq := make([]complex128, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			seq[y] = rowResult[y][x]
		}
		col := colTransform.Coefficients(nil, seq)
		for y := 0; y < h; y++ {
			result[y][x] = col[y]
		}
	}
	return result
}

// fftShift swaps quadrants in place so the zero-frequency term sits at
// the spectrum's center.
func fftShift(spectrum [][]complex128) {
	h := len(spectrum)
	if h == 0 {
		return
	}
	w := len(spectrum[0])
	halfH, halfW := h/2, w/2
	shifted := make([][]complex128, h)
	for y := 0; y < h; y++ {
		shifted[y] = make([]complex128, w)
		for x := 0; x < w; x++ {
			sy := (y + halfH) % h
			sx := (x + halfW) % w
			shifted[y][x] = spectrum[sy][sx]
		}
	}
	for y := 0; y < h; y++ {
		copy(spectrum[y], shifted[y])
	}
}

// dctAnomaly tiles the image into 8x8 blocks, computing each block's
// low-frequency (top-left 2x2) and high-frequency (rows/cols >= 2) mean
// absolute coefficient via gocv.DCT, then the aggregate hf/lf ratio
//.
func dctAnomaly(gray [][]float64, h, w int, threshold float64) (score, ratio float64) {
	h8 := h - h%8
	w8 := w - w%8
	if h8 == 0 || w8 == 0 {
		return 0, 0
	}

	var lfMeans, hfMeans []float64
	block := gocv.NewMatWithSize(8, 8, gocv.MatTypeCV32F)
	defer block.Close()
	dctOut := gocv.NewMat()
	defer dctOut.Close()

	for by := 0; by < h8; by += 8 {
		for bx := 0; bx < w8; bx += 8 {
			for yy := 0; yy < 8; yy++ {
				for xx := 0; xx < 8; xx++ {
					block.SetFloatAt(yy, xx, float32(gray[by+yy][bx+xx]))
				}
			}
			gocv.DCT(block, &dctOut, 0)

			var lfSum, hfSum float64
			var lfCount, hfCount int
			for yy := 0; yy < 8; yy++ {
				for xx := 0; xx < 8; xx++ {
					v := math.Abs(float64(dctOut.GetFloatAt(yy, xx)))
					switch {
					case yy < 2 && xx < 2:
						lfSum += v
						lfCount++
					case yy >= 2 && xx >= 2:
						hfSum += v
						hfCount++
					}
				}
			}
			if lfCount > 0 {
				lfMeans = append(lfMeans, lfSum/float64(lfCount))
			}
			if hfCount > 0 {
				hfMeans = append(hfMeans, hfSum/float64(hfCount))
			}
		}
	}

	if len(lfMeans) == 0 {
		return 0, 0
	}
	lfMean := stat.Mean(lfMeans, nil) + 1e-6
	hfMean := stat.Mean(hfMeans, nil)
	ratio = hfMean / (hfMean + lfMean)
	score = clampMap(ratio, threshold)
	return score, ratio
}

// waveletAnomaly runs a multi-level 2D Haar decomposition and scores the
// ratio of aggregate detail energy to approximation energy.
func waveletAnomaly(gray [][]float64, h, w, levels int, threshold float64) (score, ratio float64) {
	approx := make([][]float64, h)
	for y := range gray {
		approx[y] = append([]float64(nil), gray[y]...)
	}

	var detailSum float64
	curH, curW := h, w
	for lvl := 0; lvl < levels && curH >= 2 && curW >= 2; lvl++ {
		halfH, halfW := curH/2, curW/2

		rowLow := make([][]float64, curH)
		rowHigh := make([][]float64, curH)
		for y := 0; y < curH; y++ {
			rowLow[y] = make([]float64, halfW)
			rowHigh[y] = make([]float64, halfW)
			for x := 0; x < halfW; x++ {
				a, b := approx[y][2*x], approx[y][2*x+1]
				rowLow[y][x] = (a + b) / math.Sqrt2
				rowHigh[y][x] = (a - b) / math.Sqrt2
			}
		}

		ll := make([][]float64, halfH)
		lh := make([][]float64, halfH)
		hl := make([][]float64, halfH)
		hh := make([][]float64, halfH)
		for y := 0; y < halfH; y++ {
			ll[y] = make([]float64, halfW)
			lh[y] = make([]float64, halfW)
			hl[y] = make([]float64, halfW)
			hh[y] = make([]float64, halfW)
			for x := 0; x < halfW; x++ {
				a1, b1 := rowLow[2*y][x], rowLow[2*y+1][x]
				a2, b2 := rowHigh[2*y][x], rowHigh[2*y+1][x]
				ll[y][x] = (a1 + b1) / math.Sqrt2
				lh[y][x] = (a1 - b1) / math.Sqrt2
				hl[y][x] = (a2 + b2) / math.Sqrt2
				hh[y][x] = (a2 - b2) / math.Sqrt2
			}
		}

		detailSum += meanAbs2D(lh) + meanAbs2D(hl) + meanAbs2D(hh)
		approx = ll
		curH, curW = halfH, halfW
	}

	approxMean := meanAbs2D(approx) + 1e-6
	ratio = detailSum / (detailSum + approxMean)
	score = clampMap(ratio, threshold)
	return score, ratio
}

func meanAbs2D(m [][]float64) float64 {
	var sum float64
	count := 0
	for _, row := range m {
		for _, v := range row {
			sum += math.Abs(v)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// deviation is the baseline z-score-like heuristic: a non-positive std
// maps to zero deviation rather than dividing by it.
func deviation(value, mean, std float64) float64 {
	if std <= 0 {
		return 0
	}
	return math.Abs(value-mean) / std
}

// clampMap maps a ratio through the soft threshold used by all three
// sub-analyses: clamp((ratio-threshold)/(1-threshold), 0, 1).
func clampMap(ratio, threshold float64) float64 {
	denom := 1 - threshold
	if denom < 1e-6 {
		denom = 1e-6
	}
	v := (ratio - threshold) / denom
	return clamp01(v)
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
