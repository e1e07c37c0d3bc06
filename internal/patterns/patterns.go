// Package patterns holds the compiled regex/keyword injection-pattern
// table and the matcher the detection modules share read-only.
package patterns

import (
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"imageguard/internal/core"
)

// Pattern is a compiled detector: matches when Regex hits the raw text
// or any Keyword appears as a substring of the lowercased text. Severity
// is advisory metadata; current scoring treats every match uniformly —
// it is retained for downstream tuning and surfaced in PatternMatch,
// never multiplied into a module score.
type Pattern struct {
	ID       string
	Regex    *regexp.Regexp
	Keywords []string
	Severity float64
}

func (p Pattern) match(text, lower string) bool {
	if p.Regex != nil && p.Regex.MatchString(text) {
		return true
	}
	for _, kw := range p.Keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func mustCompile(expr string) *regexp.Regexp {
	return regexp.MustCompile("(?i)" + expr)
}

func lowerAll(words ...string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToLower(w)
	}
	return out
}

// DefaultPatterns is the built-in pattern set covering instruction
// override, role/delimiter injection, encoding-based evasion, and
// system-prompt extraction attempts.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			ID:       "ignore_instructions",
			Regex:    mustCompile(`(ignore|disregard|forget)\s+(all\s+)?(previous|prior|above|your)\s+(instructions?|prompts?|rules?)`),
			Severity: 0.9,
		},
		{
			ID:       "role_manipulation",
			Regex:    mustCompile(`(you\s+are\s+now|pretend\s+(to\s+be|you\s+are)|act\s+as|your\s+new\s+role)`),
			Severity: 0.85,
		},
		{
			ID:       "system_prompt_reference",
			Regex:    mustCompile(`(system\s+prompt|end\s+of\s+(system|instructions)|<\|system\|>|\[INST\])`),
			Severity: 0.8,
		},
		{
			ID:       "jailbreak_keywords",
			Keywords: lowerAll("dan", "developer mode", "jailbreak", "no restrictions", "bypass", "unlock"),
			Severity: 0.95,
		},
		{
			ID:       "encoded_base64",
			Regex:    mustCompile(`(?:[A-Za-z0-9+/]{4}){10,}(?:[A-Za-z0-9+/]{2}==|[A-Za-z0-9+/]{3}=)?`),
			Severity: 0.7,
		},
		{
			ID:       "output_manipulation",
			Regex:    mustCompile(`(just\s+)?(output|respond|reply|answer|say)\s+['"]?\w+['"]?`),
			Severity: 0.85,
		},
		{
			ID:       "conditional_injection",
			Regex:    mustCompile(`when\s+(asked|prompted|questioned)\s+(about|for|regarding)`),
			Severity: 0.8,
		},
		{
			ID:       "response_override",
			Regex:    mustCompile(`(always|only|must)\s+(respond|output|say|reply)\s+(with|as)`),
			Severity: 0.9,
		},
		{
			ID:       "task_hijacking",
			Keywords: lowerAll("instead of", "rather than", "not the", "override", "replace with"),
			Severity: 0.75,
		},
		{
			ID:       "sorry_injection",
			Regex:    mustCompile(`(output|say|respond|reply)\s+['"]?sorry['"]?`),
			Severity: 0.85,
		},
	}
}

// Store holds a compiled pattern set and implements core.PatternMatcher.
// It is built once at startup and shared read-only across requests.
type Store struct {
	patterns []Pattern
}

// NewStore builds a Store from the given patterns, or the default set
// when patterns is empty.
func NewStore(custom []Pattern) *Store {
	if len(custom) == 0 {
		custom = DefaultPatterns()
	}
	return &Store{patterns: custom}
}

// FindMatches returns, in pattern-table order, every pattern whose regex
// matches text or one of whose keywords is a substring of the
// lowercased text.
func (s *Store) FindMatches(text string) []core.PatternMatch {
	lower := strings.ToLower(text)
	var out []core.PatternMatch
	for _, p := range s.patterns {
		if p.match(text, lower) {
			out = append(out, core.PatternMatch{ID: p.ID, Severity: p.Severity})
		}
	}
	return out
}

var _ core.PatternMatcher = (*Store)(nil)

type patternFile struct {
	Patterns []struct {
		ID       string   `yaml:"id"`
		Regex    string   `yaml:"regex"`
		Keywords []string `yaml:"keywords"`
		Severity float64  `yaml:"severity"`
	} `yaml:"patterns"`
}

// LoadPatterns reads the YAML pattern overrides referenced by
// modules.text_extraction.pattern_path, falling back to
// DefaultPatterns on a blank path, missing file, or malformed/empty
// document. Loading is best-effort: a bad override never blocks
// startup.
func LoadPatterns(path string) []Pattern {
	if path == "" {
		return DefaultPatterns()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultPatterns()
	}
	var parsed patternFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return DefaultPatterns()
	}
	if len(parsed.Patterns) == 0 {
		return DefaultPatterns()
	}

	out := make([]Pattern, 0, len(parsed.Patterns))
	for _, entry := range parsed.Patterns {
		severity := entry.Severity
		if severity == 0 {
			severity = 0.5
		}
		p := Pattern{ID: entry.ID, Keywords: lowerAll(entry.Keywords...), Severity: severity}
		if entry.Regex != "" {
			re, err := regexp.Compile("(?i)" + entry.Regex)
			if err != nil {
				continue
			}
			p.Regex = re
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return DefaultPatterns()
	}
	return out
}
