package detect

import (
	"regexp"
	"sort"
)

// conditionShapes is the fixed set of lexical shapes recognised as threshold
// comparisons on known indicator families. Each shape is applied
// independently; matches collapse via set semantics.
var conditionShapes = []*regexp.Regexp{
	// slope comparisons: slope5d >= 1.5
	regexp.MustCompile(`(?i)\bslope\w*\s*(?:>=|<=|==|>|<)\s*-?\d+(?:\.\d+)?`),
	// ATR ratio/multiple comparisons: atr_ratio > 0.9
	regexp.MustCompile(`(?i)\b\w*atr\w*\s*(?:>=|<=|==|>|<)\s*-?\d+(?:\.\d+)?`),
	// EMA threshold comparisons: ema9 < 42.5
	regexp.MustCompile(`(?i)\bema\w*\s*(?:>=|<=|==|>|<)\s*-?\d+(?:\.\d+)?`),
	// price relative to an EMA: close > ema9
	regexp.MustCompile(`(?i)\b(?:close|open|price)\w*\s*(?:>=|<=|>|<)\s*ema\w*`),
	// EMA relative to EMA: ema9 > ema20
	regexp.MustCompile(`(?i)\bema\w*\s*(?:>=|<=|>|<)\s*ema\w*`),
	// volume comparisons: volume >= 500000, vol > avg_volume * 2
	regexp.MustCompile(`(?i)\b(?:vol|volume|dollar_volume|avg_volume)\w*\s*(?:>=|<=|==|>|<)\s*\w+(?:\s*\*\s*-?\d+(?:\.\d+)?)?`),
	// gap comparisons: gap_pct >= 2.0
	regexp.MustCompile(`(?i)\bgap\w*\s*(?:>=|<=|==|>|<)\s*-?\d+(?:\.\d+)?`),
	// high/low measured against ATR: high >= prior_high + atr * 0.5
	regexp.MustCompile(`(?i)\b(?:high|low)\w*\s*(?:>=|<=|>|<)\s*\w+(?:\s*[+\-]\s*\w*atr\w*(?:\s*\*\s*-?\d+(?:\.\d+)?)?)?`),
	// range measured against ATR: range < atr * 0.6
	regexp.MustCompile(`(?i)\brange\w*\s*(?:>=|<=|>|<)\s*\w*atr\w*(?:\s*\*\s*-?\d+(?:\.\d+)?)?`),
}

// ExtractConditions pulls distinct threshold-comparison substrings out of raw
// text. Empty input or text with no recognisable shape yields an empty slice,
// never an error. The result is sorted only to keep behaviour reproducible;
// the scorer treats it as a bag.
func ExtractConditions(text string) []string {
	if text == "" {
		return nil
	}

	seen := make(map[string]struct{})
	for _, shape := range conditionShapes {
		for _, match := range shape.FindAllString(text, -1) {
			seen[match] = struct{}{}
		}
	}

	conditions := make([]string, 0, len(seen))
	for c := range seen {
		conditions = append(conditions, c)
	}
	sort.Strings(conditions)
	return conditions
}
