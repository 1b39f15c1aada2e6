package detect

import (
	"testing"

	"github.com/edgedesk/scanforge/internal/models"
)

func TestNormalizationEquivalence(t *testing.T) {
	variants := []string{
		"close > ema9",
		"Close > EMA9",
		"close>ema9",
		"CLOSE   >   EMA9",
		"close\t>\nema9",
	}
	base := termSet(variants[0])
	for _, v := range variants[1:] {
		got := termSet(v)
		if len(got) != len(base) {
			t.Fatalf("term set size mismatch for %q: %v vs %v", v, got, base)
		}
		for term := range base {
			if _, ok := got[term]; !ok {
				t.Fatalf("variant %q missing term %q", v, term)
			}
		}
	}
}

func TestTermSetSyntheticTokens(t *testing.T) {
	terms := termSet("slope5d >= slope5d_min")
	for _, want := range []string{"slope5d", "slope5d_min", "gte", "slope"} {
		if _, ok := terms[want]; !ok {
			t.Fatalf("expected term %q in %v", want, terms)
		}
	}
	if _, ok := terms["gt"]; ok {
		t.Fatalf(">= must not also produce gt: %v", terms)
	}
}

func TestTermsMatchFloor(t *testing.T) {
	pattern := termSet("volume >= volume_min")
	// Single overlapping term is never enough, even at 100% of a tiny set.
	input := map[string]struct{}{"volume": {}}
	if termsMatch(input, map[string]struct{}{"volume": {}}, 0.6, 2) {
		t.Fatalf("one overlapping term must not match")
	}
	// Two overlapping terms of three clears max(2, 1.8).
	input = map[string]struct{}{"volume": {}, "gte": {}}
	if !termsMatch(input, pattern, 0.6, 2) {
		t.Fatalf("expected two of %d terms to match", len(pattern))
	}
}

func TestScorePatternFraction(t *testing.T) {
	pattern := models.ScannerPattern{
		Name: "test",
		Conditions: map[string]string{
			"volume above floor": "volume >= volume_min",
			"gap above minimum":  "gap_pct >= gap_min",
		},
	}
	score := ScorePattern([]string{"volume >= 100000"}, pattern, 0.6, 2)
	if score.Score != 0.5 {
		t.Fatalf("expected score 0.5, got %f", score.Score)
	}
	if len(score.Matched) != 1 || score.Matched[0] != "volume above floor" {
		t.Fatalf("unexpected matched set: %v", score.Matched)
	}
}

func TestScorePatternDeterministic(t *testing.T) {
	pattern := BuiltinLibrary()[0]
	extracted := ExtractConditions("slope5d >= 1.5\natr_ratio >= 0.9\nclose > ema9")

	first := ScorePattern(extracted, pattern, 0.6, 2)
	for i := 0; i < 25; i++ {
		again := ScorePattern(extracted, pattern, 0.6, 2)
		if again.Score != first.Score || len(again.Matched) != len(first.Matched) {
			t.Fatalf("scoring is not deterministic: %v vs %v", again, first)
		}
		for j := range again.Matched {
			if again.Matched[j] != first.Matched[j] {
				t.Fatalf("matched order unstable: %v vs %v", again.Matched, first.Matched)
			}
		}
	}
}
