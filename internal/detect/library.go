package detect

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/edgedesk/scanforge/internal/models"
)

// BuiltinLibrary returns the static scanner pattern library in registration
// order. Order matters: it is the tie-break for equal detection scores.
func BuiltinLibrary() []models.ScannerPattern {
	return []models.ScannerPattern{
		{
			Name:        "backside_momentum",
			Description: "Extended movers rolling over after a multi-day run",
			Conditions: map[string]string{
				"5-day slope above minimum":    "slope5d >= slope5d_min",
				"ATR ratio above multiple":     "atr_ratio >= atr_mult",
				"close holding above fast EMA": "close > ema9",
			},
			Parameters: map[string]any{
				"slope5d_min": 1.0,
				"atr_mult":    1.0,
				"ema_len":     9,
			},
		},
		{
			Name:        "gap_and_go",
			Description: "Large opening gaps continuing through the open",
			Conditions: map[string]string{
				"opening gap above threshold":   "gap_pct >= gap_min",
				"premarket volume above floor":  "volume >= volume_min",
				"open trading above prior high": "open > prior_high",
			},
			Parameters: map[string]any{
				"gap_min":           2.0,
				"volume_min":        500000,
				"require_premarket": true,
			},
		},
		{
			Name:        "ema_pullback",
			Description: "Trend continuation entries on a controlled pullback",
			Conditions: map[string]string{
				"close dipped below fast EMA": "close < ema9",
				"fast EMA above slow EMA":     "ema9 > ema20",
				"pullback shallow versus ATR": "pullback <= atr * pullback_atr_max",
			},
			Parameters: map[string]any{
				"ema_fast":         9,
				"ema_slow":         20,
				"pullback_atr_max": 1.5,
			},
		},
		{
			Name:        "range_compression",
			Description: "Quiet consolidation ahead of expansion",
			Conditions: map[string]string{
				"daily range below ATR fraction": "range < atr * range_atr_max",
				"volume below average":           "volume < avg_volume",
			},
			Parameters: map[string]any{
				"range_atr_max": 0.6,
				"lookback":      20,
			},
		},
		{
			Name:        "high_vol_breakout",
			Description: "Volume-confirmed breaks of prior highs",
			Conditions: map[string]string{
				"high clears prior high plus ATR": "high >= prior_high + atr * breakout_atr_mult",
				"volume above average multiple":   "volume >= avg_volume * volume_mult",
				"5-day slope non-negative":        "slope5d >= 0",
			},
			Parameters: map[string]any{
				"breakout_atr_mult": 0.5,
				"volume_mult":       2.0,
			},
		},
	}
}

// patternPackFile is the YAML root for an optional extra pattern pack.
type patternPackFile struct {
	Patterns []models.ScannerPattern `yaml:"patterns"`
}

// LoadPatternPack reads additional patterns from a YAML file and appends them
// after the built-ins, preserving registration order. An empty or missing
// path yields just the built-in library.
func LoadPatternPack(path string, logger *slog.Logger) ([]models.ScannerPattern, error) {
	library := BuiltinLibrary()
	if path == "" {
		return library, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return library, nil
		}
		return nil, fmt.Errorf("read pattern pack: %w", err)
	}
	var pack patternPackFile
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("parse pattern pack: %w", err)
	}
	for _, p := range pack.Patterns {
		if p.Name == "" || len(p.Conditions) == 0 {
			return nil, fmt.Errorf("pattern pack entry missing name or conditions")
		}
	}
	if logger != nil && len(pack.Patterns) > 0 {
		logger.Info("loaded pattern pack", slog.String("path", path), slog.Int("patterns", len(pack.Patterns)))
	}
	return append(library, pack.Patterns...), nil
}
