// Package text detects visible injection text: OCR at two
// page-segmentation modes, cleaning and segmentation, pattern matching
// over the raw and deobfuscated forms, and the
// density/imperative/obfuscation scoring formula.
package text

import (
	"context"
	"regexp"
	"strings"

	"imageguard/internal/core"
)

const densityThreshold = 5e-4

var imperativePattern = regexp.MustCompile(`(?i)\bignore\b|\bdisregard\b|\bforget\b|\bfrom now on\b|\byou must\b|\byou will\b|\bdo not\b|\bjust output\b|\bwhen asked\b|\balways (say|respond|output)\b`)

// noiseRun matches runs of pipe/tilde/underscore-like OCR noise characters.
var noiseRun = regexp.MustCompile(`[|~_]{2,}`)
var whitespaceRun = regexp.MustCompile(`\s+`)
var isolatedLetter = regexp.MustCompile(`(?:^|\s)[A-Za-z](?:\s|$)`)

// Module implements core.Module for visible-text detection.
type Module struct{}

func New() Module { return Module{} }

func (Module) ID() string { return "text_extraction" }

func (m Module) Analyze(ctx context.Context, img *core.Image, cfg core.ModuleConfig, shared *core.SharedContext) (*core.ModuleResult, error) {
	languages := cfg.Languages
	if len(languages) == 0 {
		languages = shared.Languages
	}

	extracted, confidence, err := runOCR(ctx, img, languages, shared)
	if err != nil {
		return nil, err
	}

	cleaned := cleanText(extracted)
	segments := segment(cleaned)

	// Pattern ids are de-duplicated in first-seen order so the reported
	// list is stable across runs.
	seen := map[string]bool{}
	ids := []string{}
	record := func(matches []core.PatternMatch) {
		for _, mm := range matches {
			if !seen[mm.ID] {
				seen[mm.ID] = true
				ids = append(ids, mm.ID)
			}
		}
	}

	record(shared.Patterns.FindMatches(cleaned))
	for _, seg := range segments {
		record(shared.Patterns.FindMatches(seg))
	}

	var obfuscation *core.DeobfuscationResult
	if shared.Deobfuscator != nil {
		result := shared.Deobfuscator.Deobfuscate(cleaned)
		obfuscation = &result
		if result.Detected {
			for _, decoded := range []string{result.HomoglyphNormalized, result.LeetspeakDecoded, result.ROT13Decoded} {
				if decoded == "" {
					continue
				}
				record(shared.Patterns.FindMatches(decoded))
			}
		}
	}

	obfuscationScore := 0.0
	if obfuscation != nil {
		obfuscationScore = obfuscation.Score
	}

	// The imperative test also consults the deobfuscated forms, so a
	// homoglyph-masked "ignore" still counts as an imperative.
	imperative := imperativePattern.MatchString(cleaned)
	if !imperative && obfuscation != nil && obfuscation.Detected {
		for _, decoded := range []string{obfuscation.HomoglyphNormalized, obfuscation.LeetspeakDecoded, obfuscation.ROT13Decoded} {
			if decoded != "" && imperativePattern.MatchString(decoded) {
				imperative = true
				break
			}
		}
	}

	score := calculateScore(cleaned, len(ids), img.Area(), imperative, obfuscationScore)

	displayText := cleaned
	if !shared.IncludeText {
		displayText = ""
	} else if shared.MaxTextLength > 0 && len(displayText) > shared.MaxTextLength {
		displayText = displayText[:shared.MaxTextLength] + "..."
	}

	details := map[string]any{
		"text_found":       cleaned != "",
		"extracted_text":   displayText,
		"patterns_matched": ids,
		"confidence":       confidence,
	}
	if obfuscation != nil && obfuscation.Detected {
		block := map[string]any{
			"score":                obfuscation.Score,
			"homoglyph_normalized": obfuscation.HomoglyphNormalized,
			"mixed_scripts":        obfuscation.MixedScripts,
			"scripts_observed":     obfuscation.ScriptsObserved,
		}
		if obfuscation.LeetspeakTriggered {
			block["leetspeak_decoded"] = obfuscation.LeetspeakDecoded
		}
		if obfuscation.ROT13Triggered {
			block["rot13_decoded"] = obfuscation.ROT13Decoded
		}
		details["obfuscation"] = block
	}

	return &core.ModuleResult{Score: &score, Status: core.StatusOK, Details: details}, nil
}

// runOCR runs PSM block then sparse, keeping the longer extraction, and
// stops early once confidence exceeds 70 on non-empty text.
func runOCR(ctx context.Context, img *core.Image, languages []string, shared *core.SharedContext) (string, float64, error) {
	var best string
	var bestConf float64
	for _, mode := range []core.PSM{core.PSMBlock, core.PSMSparse} {
		result, err := shared.OCR.Recognize(ctx, img.RGB, languages, mode)
		if err != nil {
			return "", 0, err
		}
		if len(strings.TrimSpace(result.Text)) > len(strings.TrimSpace(best)) {
			best, bestConf = result.Text, result.Confidence
		}
		if result.Confidence > 70 && strings.TrimSpace(result.Text) != "" {
			break
		}
	}
	return strings.TrimSpace(best), bestConf, nil
}

// cleanText strips OCR noise runs, collapses whitespace, and drops
// isolated single-letter tokens.
func cleanText(text string) string {
	cleaned := noiseRun.ReplaceAllString(text, " ")
	cleaned = isolatedLetter.ReplaceAllString(cleaned, " ")
	cleaned = whitespaceRun.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// segment splits cleaned text into sentence-like chunks on "|" or
// newlines, keeping only segments with at least 3 multi-character words.
func segment(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool { return r == '|' || r == '\n' })
	var segments []string
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		multichar := 0
		for _, word := range strings.Fields(s) {
			if len(word) > 1 {
				multichar++
			}
		}
		if multichar >= 3 {
			segments = append(segments, s)
		}
	}
	return segments
}

// calculateScore combines the pattern, density, imperative, and
// obfuscation contributions into the module score.
func calculateScore(cleanedText string, matchCount int, imageArea int, imperative bool, obfuscationScore float64) float64 {
	score := 0.25 * float64(matchCount)

	if imageArea > 0 {
		density := float64(len(cleanedText)) / float64(imageArea)
		if density > densityThreshold {
			score += 0.1 * (density / densityThreshold)
		}
	}

	if imperative {
		score += 0.15
	}

	score += 0.2 * obfuscationScore

	if score > 1 {
		score = 1
	}
	return score
}
