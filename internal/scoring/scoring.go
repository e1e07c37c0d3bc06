// Package scoring implements score fusion, tiered classification, and
// confidence calibration.
package scoring

import (
	"math"
	"sort"

	"imageguard/internal/core"
)

// WeightedAverage computes risk = sum(w_m * s_m) / sum(w_m) over modules
// with a non-null score, returning 0 when no module contributed. The sum
// runs in sorted module order so results are reproducible down to float
// rounding.
func WeightedAverage(scores map[string]*float64, weights map[string]float64) float64 {
	modules := make([]string, 0, len(scores))
	for module := range scores {
		modules = append(modules, module)
	}
	sort.Strings(modules)

	var totalScore, totalWeight float64
	for _, module := range modules {
		score := scores[module]
		if score == nil {
			continue
		}
		w := 1.0
		if v, ok := weights[module]; ok {
			w = v
		}
		totalScore += w * *score
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0.0
	}
	return totalScore / totalWeight
}

// ClassifyTiered implements the monotone ladder with a documented
// SAFE-floor quirk: once risk >= safe, the result is never SAFE again,
// even if risk < suspicious.
func ClassifyTiered(risk float64, thresholds core.Thresholds) core.Classification {
	if risk >= thresholds.Dangerous {
		return core.Dangerous
	}
	if risk >= thresholds.Suspicious {
		return core.Suspicious
	}
	if risk >= thresholds.Safe {
		return core.Suspicious
	}
	return core.Safe
}

// ClassifyOverride implements the single-threshold override path:
// risk >= override iff classification is DANGEROUS. The override value
// is recorded in all three threshold slots so callers see a consistent
// envelope.
func ClassifyOverride(risk, override float64) (core.Classification, core.Thresholds) {
	classification := core.Safe
	if risk >= override {
		classification = core.Dangerous
	}
	return classification, core.Thresholds{Safe: override, Suspicious: override, Dangerous: override}
}

// Confidence computes the raw variance-based confidence and, when a
// calibration record is present, the Platt-scaled confidence.
// nonNullScores must already exclude null module scores.
func Confidence(risk float64, nonNullScores []float64, calib *core.Calibration) (confidence, raw float64, method core.ConfidenceMethod) {
	raw = rawConfidence(risk, nonNullScores)
	if calib != nil {
		p := plattConfidence(risk, *calib)
		return clamp01(p), raw, core.ConfidencePlatt
	}
	return raw, raw, core.ConfidenceVariance
}

// rawConfidence computes variance of scores around risk directly
// (population mean-squared-deviation with risk as the fixed center,
// not the sample mean of the scores) — "around risk", not "around their
// own mean".
func rawConfidence(risk float64, scores []float64) float64 {
	if len(scores) == 0 {
		return 0.5
	}
	var sumSq float64
	for _, s := range scores {
		d := s - risk
		sumSq += d * d
	}
	variance := sumSq / float64(len(scores))
	return clamp(1-variance, 0.5, 0.99)
}

// plattConfidence implements sigma(A*risk + B) = 1/(1+exp(A*risk+B)).
// Note the sign convention: there is no negation in front of A*risk+B,
// so fitted parameters typically carry a negative A.
func plattConfidence(risk float64, calib core.Calibration) float64 {
	return 1.0 / (1.0 + math.Exp(calib.A*risk+calib.B))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}
