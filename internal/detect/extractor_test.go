package detect

import "testing"

func TestExtractConditionsEmptyInput(t *testing.T) {
	if got := ExtractConditions(""); len(got) != 0 {
		t.Fatalf("expected no conditions for empty input, got %v", got)
	}
	if got := ExtractConditions("buy low sell high"); len(got) != 0 {
		t.Fatalf("expected no conditions for unrecognisable text, got %v", got)
	}
}

func TestExtractConditionsShapes(t *testing.T) {
	text := `
slope5d >= 1.5
atr_ratio >= 0.9
close > ema9
volume >= 500000
gap_pct >= 2.0
range < atr * 0.6
high >= prior_high + atr * 0.5
`
	got := ExtractConditions(text)
	want := []string{
		"atr_ratio >= 0.9",
		"close > ema9",
		"gap_pct >= 2.0",
		"high >= prior_high + atr * 0.5",
		"range < atr * 0.6",
		"slope5d >= 1.5",
		"volume >= 500000",
	}
	for _, w := range want {
		if !containsString(got, w) {
			t.Fatalf("expected condition %q in %v", w, got)
		}
	}
}

func TestExtractConditionsCaseInsensitiveAndDeduped(t *testing.T) {
	text := "SLOPE5D >= 1.5\nslope5d >= 1.5\nSlope5d >= 2.0"
	got := ExtractConditions(text)

	upper := 0
	for _, c := range got {
		if c == "SLOPE5D >= 1.5" {
			upper++
		}
	}
	if upper != 1 {
		t.Fatalf("expected exactly one upper-case match, got %v", got)
	}
	if !containsString(got, "slope5d >= 1.5") || !containsString(got, "Slope5d >= 2.0") {
		t.Fatalf("expected distinct substrings preserved, got %v", got)
	}
}

func TestExtractConditionsIgnoresAssignments(t *testing.T) {
	got := ExtractConditions("slope5d_min = 3.0\natr_mult: 0.9")
	if len(got) != 0 {
		t.Fatalf("assignments must not extract as conditions, got %v", got)
	}
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
