package codegen

import (
	"strings"
	"testing"

	"github.com/edgedesk/scanforge/internal/detect"
	"github.com/edgedesk/scanforge/internal/models"
)

func TestGenerateDeterministic(t *testing.T) {
	gen := NewGenerator()
	pattern := detect.BuiltinLibrary()[0]
	params := map[string]any{
		"slope5d_min": 3.0,
		"atr_mult":    0.9,
		"ema_len":     9,
	}

	first, err := gen.Generate(pattern, params)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := gen.Generate(pattern, params)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if again != first {
			t.Fatalf("output not deterministic:\n%s\n---\n%s", again, first)
		}
	}

	if !strings.Contains(first, `slope5d_min = 3.0`) {
		t.Fatalf("expected rendered parameter assignment, got:\n%s", first)
	}
	if !strings.Contains(first, `candidates.eval("slope5d >= slope5d_min")`) {
		t.Fatalf("expected canonical condition in body, got:\n%s", first)
	}
	if !strings.Contains(first, "# scanner: backside_momentum") {
		t.Fatalf("expected scanner header, got:\n%s", first)
	}
}

func TestGenerateExtractRoundTrip(t *testing.T) {
	gen := NewGenerator()
	pattern := detect.BuiltinLibrary()[0]
	params := map[string]any{
		"slope5d_min": 3.0,
		"atr_mult":    0.9,
		"ema_len":     9,
	}

	code, err := gen.Generate(pattern, params)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	// Re-running extraction over the rendered parameter block reproduces the
	// same values: floats stay floats, ints stay ints.
	again := detect.ExtractParameters(code, pattern)
	for name, want := range params {
		if got := again[name]; got != want {
			t.Fatalf("parameter %s: got %T %v, want %T %v", name, got, got, want, want)
		}
	}
	if len(again) != len(params) {
		t.Fatalf("expected %d parameters, got %d", len(params), len(again))
	}
}

func TestPyLiteral(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{3.0, "3.0"},
		{0.125, "0.125"},
		{7, "7"},
		{true, "True"},
		{false, "False"},
		{"premarket", `"premarket"`},
	}
	for _, tc := range cases {
		if got := pyLiteral(tc.in); got != tc.want {
			t.Fatalf("pyLiteral(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestScaffoldPreservesInput(t *testing.T) {
	gen := NewGenerator()
	out, err := gen.Scaffold("find gappers\nwith heavy volume")
	if err != nil {
		t.Fatalf("scaffold: %v", err)
	}
	if !strings.Contains(out, "# find gappers") || !strings.Contains(out, "# with heavy volume") {
		t.Fatalf("expected original lines preserved, got:\n%s", out)
	}
	if !strings.Contains(out, "def scan(daily):") {
		t.Fatalf("expected runnable skeleton, got:\n%s", out)
	}
}

func TestGenerateRejectsAnonymousPattern(t *testing.T) {
	gen := NewGenerator()
	if _, err := gen.Generate(models.ScannerPattern{}, nil); err == nil {
		t.Fatalf("expected error for pattern without a name")
	}
}
