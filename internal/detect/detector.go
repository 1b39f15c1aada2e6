package detect

import (
	"log/slog"
	"sort"

	"github.com/edgedesk/scanforge/internal/models"
)

// Default detection thresholds.
const (
	DefaultMinConfidence  = 0.3
	DefaultTermOverlap    = 0.6
	DefaultMinTermMatches = 2
)

// Options tunes the detector thresholds. Zero values fall back to defaults.
type Options struct {
	// MinConfidence is the hard floor: a best score at or below it leaves
	// ScannerType empty.
	MinConfidence float64
	// TermOverlap is the fraction of a condition's terms that must appear in
	// an extracted condition for it to count as matched.
	TermOverlap float64
	// MinTermMatches is the minimum absolute number of overlapping terms.
	MinTermMatches int
}

// Detector classifies free-text scanner descriptions against a fixed,
// ordered pattern library. It is a fuzzy classifier over lexical terms, not a
// parser.
type Detector struct {
	logger         *slog.Logger
	library        []models.ScannerPattern
	minConfidence  float64
	termOverlap    float64
	minTermMatches int
}

// NewDetector constructs a Detector over the given library. Library order is
// the tie-break: when two patterns score equally, the first registered wins.
func NewDetector(logger *slog.Logger, library []models.ScannerPattern, opts Options) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = DefaultMinConfidence
	}
	if opts.TermOverlap <= 0 {
		opts.TermOverlap = DefaultTermOverlap
	}
	if opts.MinTermMatches <= 0 {
		opts.MinTermMatches = DefaultMinTermMatches
	}
	return &Detector{
		logger:         logger,
		library:        library,
		minConfidence:  opts.MinConfidence,
		termOverlap:    opts.TermOverlap,
		minTermMatches: opts.MinTermMatches,
	}
}

// Library returns the registered patterns in registration order.
func (d *Detector) Library() []models.ScannerPattern {
	return d.library
}

// PatternByName looks up a registered pattern.
func (d *Detector) PatternByName(name string) (models.ScannerPattern, bool) {
	for _, p := range d.library {
		if p.Name == name {
			return p, true
		}
	}
	return models.ScannerPattern{}, false
}

// Detect scores every registered pattern and reports the best one. Absence of
// a confident match is a normal, representable result: ScannerType stays
// empty and no parameters are suggested, but the best score and its matched
// conditions are still reported for display.
func (d *Detector) Detect(text string) models.DetectionResult {
	extracted := ExtractConditions(text)

	var (
		best      PatternScore
		bestIndex = -1
	)
	for i, pattern := range d.library {
		score := ScorePattern(extracted, pattern, d.termOverlap, d.minTermMatches)
		// Strictly greater keeps registration order as the tie-break.
		if bestIndex == -1 || score.Score > best.Score {
			best = score
			bestIndex = i
		}
	}

	result := models.DetectionResult{
		Confidence:        best.Score,
		MatchedConditions: []string{},
		MissingConditions: []string{},
	}
	if bestIndex == -1 {
		return result
	}

	winner := d.library[bestIndex]
	result.MatchedConditions = best.Matched
	result.MissingConditions = missingConditions(winner, best.Matched)

	if best.Score <= d.minConfidence {
		d.logger.Debug("detection below confidence floor",
			slog.String("best_pattern", winner.Name),
			slog.Float64("score", best.Score))
		return result
	}

	result.ScannerType = winner.Name
	result.SuggestedParameters = ExtractParameters(text, winner)
	return result
}

func missingConditions(pattern models.ScannerPattern, matched []string) []string {
	matchedSet := make(map[string]struct{}, len(matched))
	for _, m := range matched {
		matchedSet[m] = struct{}{}
	}
	missing := make([]string, 0, len(pattern.Conditions))
	for description := range pattern.Conditions {
		if _, ok := matchedSet[description]; !ok {
			missing = append(missing, description)
		}
	}
	sort.Strings(missing)
	return missing
}
