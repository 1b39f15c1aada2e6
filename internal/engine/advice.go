package engine

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/edgedesk/scanforge/internal/models"
)

// AdviceEngine maps scan failures and weak detections to operator-facing
// suggestions. Rules load from a YAML pack layered over built-in defaults.
type AdviceEngine struct {
	rules  []AdviceRule
	logger *slog.Logger
}

// AdviceRule is a single suggestion rule.
type AdviceRule struct {
	ID          string      `yaml:"id"`
	Match       AdviceMatch `yaml:"match"`
	Suggestions []string    `yaml:"suggestions"`
}

// AdviceMatch defines optional attributes for rule matching. Empty fields
// match everything.
type AdviceMatch struct {
	State           string `yaml:"state"`
	MessageContains string `yaml:"message_contains"`
}

type adviceConfigFile struct {
	Rules []AdviceRule `yaml:"rules"`
}

// NewAdviceEngine loads rules from the provided path layered over the
// defaults. A missing or empty path keeps the defaults only.
func NewAdviceEngine(path string, logger *slog.Logger) (*AdviceEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rules := defaultAdviceRules()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		if err == nil {
			var cfg adviceConfigFile
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, err
			}
			rules = append(rules, cfg.Rules...)
		}
	}
	return &AdviceEngine{rules: rules, logger: logger}, nil
}

// Advise produces suggestions for a job's current state and message.
func (e *AdviceEngine) Advise(state models.ScanState, message string) []string {
	if e == nil {
		return nil
	}

	haystack := strings.ToLower(message)
	matched := make([]string, 0)
	for _, rule := range e.rules {
		if rule.Match.State != "" && !strings.EqualFold(rule.Match.State, string(state)) {
			continue
		}
		if rule.Match.MessageContains != "" && !strings.Contains(haystack, strings.ToLower(rule.Match.MessageContains)) {
			continue
		}
		matched = appendUnique(matched, rule.Suggestions...)
	}
	return matched
}

func defaultAdviceRules() []AdviceRule {
	return []AdviceRule{
		{
			ID:    "backend-unreachable",
			Match: AdviceMatch{MessageContains: "unreachable"},
			Suggestions: []string{
				"Check that the execution backend is running and reachable.",
			},
		},
		{
			ID:    "timeout",
			Match: AdviceMatch{State: string(models.ScanFailed), MessageContains: "timed out"},
			Suggestions: []string{
				"Narrow the date range or raise the scan timeout.",
			},
		},
		{
			ID:    "syntax",
			Match: AdviceMatch{State: string(models.ScanFailed), MessageContains: "syntax"},
			Suggestions: []string{
				"Re-run the format step; the submitted code did not parse.",
			},
		},
	}
}

func appendUnique(existing []string, additions ...string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, item := range existing {
		seen[item] = struct{}{}
	}
	for _, item := range additions {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		existing = append(existing, item)
		seen[item] = struct{}{}
	}
	return existing
}
