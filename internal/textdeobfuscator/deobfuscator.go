// Package textdeobfuscator normalizes obfuscated text before pattern
// matching: Unicode homoglyphs, leetspeak, and ROT13. Each transform
// decodes, and the decoded forms are rescanned by the caller, so an
// encoding never hides a payload from the pattern table.
package textdeobfuscator

import (
	"sort"
	"strings"
	"unicode"

	"imageguard/internal/core"
)

// confusables maps a non-ASCII code point to its ASCII equivalent.
// Zero-width code points map to the empty string. Covers Cyrillic,
// Greek, fullwidth Latin, zero-width marks, typographic punctuation,
// dotless i/j, small-caps, and a handful of Roman numerals.
var confusables = map[rune]string{
	// Cyrillic lookalikes
	'А': "A", 'В': "B", 'С': "C", 'Е': "E", 'Н': "H",
	'К': "K", 'М': "M", 'О': "O", 'Р': "P", 'Т': "T",
	'Х': "X", 'а': "a", 'е': "e", 'о': "o", 'р': "p",
	'с': "c", 'у': "y", 'х': "x", 'і': "i", 'ј': "j",
	'Ѕ': "S", 'ѕ': "s",
	// Greek lookalikes
	'Α': "A", 'Β': "B", 'Ε': "E", 'Η': "H", 'Ι': "I",
	'Κ': "K", 'Μ': "M", 'Ν': "N", 'Ο': "O", 'Ρ': "P",
	'Τ': "T", 'Υ': "Y", 'Χ': "X", 'α': "a", 'ο': "o",
	// Fullwidth Latin (U+FF21-FF3A, U+FF41-FF5A)
	'Ａ': "A", 'Ｂ': "B", 'Ｃ': "C", 'Ｄ': "D", 'Ｅ': "E",
	'Ｆ': "F", 'Ｇ': "G", 'Ｈ': "H", 'Ｉ': "I", 'Ｊ': "J",
	'Ｋ': "K", 'Ｌ': "L", 'Ｍ': "M", 'Ｎ': "N", 'Ｏ': "O",
	'Ｐ': "P", 'Ｑ': "Q", 'Ｒ': "R", 'Ｓ': "S", 'Ｔ': "T",
	'Ｕ': "U", 'Ｖ': "V", 'Ｗ': "W", 'Ｘ': "X", 'Ｙ': "Y", 'Ｚ': "Z",
	'ａ': "a", 'ｂ': "b", 'ｃ': "c", 'ｄ': "d", 'ｅ': "e",
	'ｆ': "f", 'ｇ': "g", 'ｈ': "h", 'ｉ': "i", 'ｊ': "j",
	'ｋ': "k", 'ｌ': "l", 'ｍ': "m", 'ｎ': "n", 'ｏ': "o",
	'ｐ': "p", 'ｑ': "q", 'ｒ': "r", 'ｓ': "s", 'ｔ': "t",
	'ｕ': "u", 'ｖ': "v", 'ｗ': "w", 'ｘ': "x", 'ｙ': "y", 'ｚ': "z",
	// Small caps
	'ᴀ': "a", 'ᴄ': "c", 'ᴇ': "e", 'ɴ': "n", 'ᴏ': "o",
	// Zero-width marks
	'​': "", '‌': "", '‍': "", '\ufeff': "",
	// Typographic punctuation
	'–': "-", '—': "-", '‘': "'", '’': "'",
	'“': "\"", '”': "\"",
	// Dotless i/j, selected Roman numerals
	'ı': "i", 'ȷ': "j", 'Ⅰ': "I", 'Ⅴ': "V", 'Ⅹ': "X",
}

var leetTable = map[rune]rune{
	'4': 'a', '@': 'a', '3': 'e', '0': 'o', '1': 'i', '!': 'i',
	'5': 's', '$': 's', '7': 't', '+': 't', '8': 'b', '9': 'g',
}

var rot13Keywords = []string{
	"ignore", "system", "prompt", "instruction", "bypass",
	"forget", "disregard", "pretend", "role", "jailbreak",
}

// Deobfuscator implements core.Deobfuscator.
type Deobfuscator struct{}

func New() *Deobfuscator { return &Deobfuscator{} }

var _ core.Deobfuscator = (*Deobfuscator)(nil)

// Deobfuscate runs all three transforms and reports the obfuscation score
// as the max of the per-transform scores.
func (d *Deobfuscator) Deobfuscate(text string) core.DeobfuscationResult {
	normalized, findings, total, mixedScripts, scripts := normalizeHomoglyphs(text)
	hgScore := homoglyphScore(findings, total, mixedScripts, normalized)

	leetDecoded, leetTriggered := decodeLeetspeak(text)
	leetScore := 0.0
	if leetTriggered {
		leetScore = leetspeakScore(text)
	}

	rot13Decoded, rot13Triggered := decodeROT13(text)
	rot13Sc := 0.0
	if rot13Triggered {
		rot13Sc = rot13Score(text, rot13Decoded)
	}

	score := hgScore
	if leetScore > score {
		score = leetScore
	}
	if rot13Sc > score {
		score = rot13Sc
	}

	detected := findings > 0 || leetTriggered || rot13Triggered

	return core.DeobfuscationResult{
		Detected:            detected,
		Score:               score,
		HomoglyphNormalized: normalized,
		MixedScripts:        mixedScripts,
		ScriptsObserved:     scripts,
		LeetspeakDecoded:    leetDecoded,
		LeetspeakTriggered:  leetTriggered,
		ROT13Decoded:        rot13Decoded,
		ROT13Triggered:      rot13Triggered,
	}
}

// normalizeHomoglyphs replaces every confusable code point with its ASCII
// equivalent and reports the set of scripts seen among alphabetic runes.
func normalizeHomoglyphs(text string) (normalized string, findingCount, totalRunes int, mixedScripts bool, scripts []string) {
	var b strings.Builder
	seen := map[string]bool{}
	for _, r := range text {
		totalRunes++
		if unicode.IsLetter(r) {
			seen[scriptOf(r)] = true
		}
		if repl, ok := confusables[r]; ok {
			b.WriteString(repl)
			findingCount++
			continue
		}
		b.WriteRune(r)
	}
	for s := range seen {
		scripts = append(scripts, s)
	}
	sort.Strings(scripts)
	mixedScripts = len(scripts) > 1
	return b.String(), findingCount, totalRunes, mixedScripts, scripts
}

// scriptOf buckets an alphabetic rune. Fullwidth forms are classified
// before the Unicode script tables, since fullwidth Latin letters also
// belong to the Latin script.
func scriptOf(r rune) string {
	switch {
	case r >= '＀' && r <= '￯':
		return "fullwidth"
	case unicode.Is(unicode.Latin, r):
		return "latin"
	case unicode.Is(unicode.Cyrillic, r):
		return "cyrillic"
	case unicode.Is(unicode.Greek, r):
		return "greek"
	case unicode.IsLetter(r):
		return "common"
	default:
		return "other"
	}
}

func homoglyphScore(findingCount, totalRunes int, mixedScripts bool, normalized string) float64 {
	density := 0.0
	if totalRunes > 0 {
		density = float64(findingCount) / float64(totalRunes)
	}
	score := min1(0.4, density*2)
	if mixedScripts {
		score += 0.3
	}
	keywordHits := countKeywords(strings.ToLower(normalized))
	score += min1(0.3, float64(keywordHits)*0.1)
	return min1(1.0, score)
}

// decodeLeetspeak case-folds and longest-match replaces leet characters,
// but only reports a decode when the density+run trigger condition holds
//: >=10% of alpha+leet characters are leet, and at least one
// [alpha]*[leet]+[alpha]* run exists.
func decodeLeetspeak(text string) (decoded string, triggered bool) {
	lower := strings.ToLower(text)
	var b strings.Builder
	alphaOrLeet := 0
	leetCount := 0
	hasRun := false
	for _, r := range lower {
		if repl, ok := leetTable[r]; ok {
			b.WriteRune(repl)
			alphaOrLeet++
			leetCount++
			// With zero-or-more letters allowed on either side, any leet
			// character forms an [alpha]*[leet]+[alpha]* run.
			hasRun = true
			continue
		}
		b.WriteRune(r)
		if unicode.IsLetter(r) {
			alphaOrLeet++
		}
	}
	if alphaOrLeet == 0 {
		return lower, false
	}
	ratio := float64(leetCount) / float64(alphaOrLeet)
	triggered = ratio >= 0.10 && hasRun
	return b.String(), triggered
}

func leetspeakScore(text string) float64 {
	lower := strings.ToLower(text)
	alphaOrLeet := 0
	leetCount := 0
	for _, r := range lower {
		if _, ok := leetTable[r]; ok {
			alphaOrLeet++
			leetCount++
			continue
		}
		if unicode.IsLetter(r) {
			alphaOrLeet++
		}
	}
	if alphaOrLeet == 0 {
		return 0
	}
	ratio := float64(leetCount) / float64(alphaOrLeet)
	return min1(1.0, ratio*2)
}

// decodeROT13 applies Caesar-13 to ASCII letters.
func decodeROT13(text string) (decoded string, triggered bool) {
	decoded = rot13(text)
	alphaCount := 0
	for _, r := range text {
		if unicode.IsLetter(r) && r < unicode.MaxASCII {
			alphaCount++
		}
	}
	if alphaCount <= 10 {
		return decoded, false
	}
	originalHits := countKeywords(strings.ToLower(text))
	decodedHits := countKeywords(strings.ToLower(decoded))
	triggered = decodedHits > originalHits
	return decoded, triggered
}

func rot13Score(original, decoded string) float64 {
	hits := countKeywords(strings.ToLower(decoded))
	return min1(1.0, float64(hits)*0.25)
}

func countKeywords(lower string) int {
	count := 0
	for _, kw := range rot13Keywords {
		if strings.Contains(lower, kw) {
			count++
		}
	}
	return count
}

func rot13(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return 'a' + (r-'a'+13)%26
		case r >= 'A' && r <= 'Z':
			return 'A' + (r-'A'+13)%26
		default:
			return r
		}
	}, s)
}

func min1(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
