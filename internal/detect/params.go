package detect

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/edgedesk/scanforge/internal/models"
)

// assignmentPattern matches `name = value` and `name: value` where value is a
// decimal number or boolean literal. Scan order is left-to-right, top-to-
// bottom, so a repeated name takes its last value.
var assignmentPattern = regexp.MustCompile(`(?i)\b([a-z_][a-z0-9_]*)\s*[:=]\s*(-?\d+(?:\.\d+)?|true|false)\b`)

// ExtractParameters scans text for assignment-like substrings and returns the
// pattern's full parameter mapping: every declared parameter is present,
// taking either the coerced value found in the text or the static default.
// Undeclared names in the text are ignored.
func ExtractParameters(text string, pattern models.ScannerPattern) map[string]any {
	values := make(map[string]any, len(pattern.Parameters))
	for name, def := range pattern.Parameters {
		values[name] = def
	}

	for _, m := range assignmentPattern.FindAllStringSubmatch(text, -1) {
		name, raw := m[1], m[2]
		if _, declared := pattern.Parameters[name]; !declared {
			continue
		}
		values[name] = coerceValue(raw)
	}

	return values
}

// coerceValue applies the fixed coercion rule: boolean literals become bool,
// values containing "." become float64, everything else becomes int.
func coerceValue(raw string) any {
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}
	if strings.Contains(raw, ".") {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return raw
		}
		return f
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return raw
	}
	return n
}
