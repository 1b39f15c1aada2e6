package detect

import (
	"regexp"
	"sort"
	"strings"

	"github.com/edgedesk/scanforge/internal/models"
)

// Term matching is a deliberately loose heuristic: it tolerates reordering
// and paraphrase but produces false positives/negatives on adversarial input.
// Treat scores as approximate classification, not exact parsing.

var identifierPattern = regexp.MustCompile(`[a-z_][a-z0-9_]*`)

// comparison operators mapped to synthetic tokens. Two-character operators
// are consumed first so ">" inside ">=" is not double counted.
var operatorTokens = []struct {
	symbol string
	token  string
}{
	{">=", "gte"},
	{"<=", "lte"},
	{"==", "eq"},
	{">", "gt"},
	{"<", "lt"},
}

var indicatorKeywords = []string{"atr", "ema", "slope", "volume", "gap"}

// normalizeCondition lowercases and strips all whitespace so conditions that
// differ only in case or spacing produce identical term sets.
func normalizeCondition(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch r {
		case ' ', '\t', '\n', '\r':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// termSet extracts the match terms of a condition string: identifier-like
// tokens, a synthetic token per comparison operator present, and a synthetic
// token per indicator keyword present.
func termSet(condition string) map[string]struct{} {
	normalized := normalizeCondition(condition)
	terms := make(map[string]struct{})

	for _, id := range identifierPattern.FindAllString(normalized, -1) {
		terms[id] = struct{}{}
	}

	rest := normalized
	for _, op := range operatorTokens {
		if strings.Contains(rest, op.symbol) {
			terms[op.token] = struct{}{}
			rest = strings.ReplaceAll(rest, op.symbol, " ")
		}
	}

	for _, kw := range indicatorKeywords {
		if strings.Contains(normalized, kw) {
			terms[kw] = struct{}{}
		}
	}

	return terms
}

// termsMatch reports whether the input term set covers enough of the pattern
// condition's terms: at least overlap (a fraction) of them, but never fewer
// than minTerms overlapping terms.
func termsMatch(input map[string]struct{}, patternTerms map[string]struct{}, overlap float64, minTerms int) bool {
	if len(patternTerms) == 0 {
		return false
	}

	found := 0
	for term := range patternTerms {
		if _, ok := input[term]; ok {
			found++
		}
	}

	required := overlap * float64(len(patternTerms))
	if floor := float64(minTerms); floor > required {
		required = floor
	}
	return float64(found) >= required
}

// PatternScore is the outcome of scoring one pattern against extracted input
// conditions.
type PatternScore struct {
	Score   float64
	Matched []string
}

// ScorePattern computes matched/total for a pattern's condition map. A
// condition description counts as matched when any single extracted condition
// term-matches its canonical form. Scoring is pure and deterministic.
func ScorePattern(extracted []string, pattern models.ScannerPattern, overlap float64, minTerms int) PatternScore {
	if len(pattern.Conditions) == 0 {
		return PatternScore{}
	}

	inputSets := make([]map[string]struct{}, 0, len(extracted))
	for _, cond := range extracted {
		inputSets = append(inputSets, termSet(cond))
	}

	matched := make([]string, 0, len(pattern.Conditions))
	for description, canonical := range pattern.Conditions {
		patternTerms := termSet(canonical)
		for _, input := range inputSets {
			if termsMatch(input, patternTerms, overlap, minTerms) {
				matched = append(matched, description)
				break
			}
		}
	}
	sort.Strings(matched)

	return PatternScore{
		Score:   float64(len(matched)) / float64(len(pattern.Conditions)),
		Matched: matched,
	}
}
