package models

// ScannerPattern is a statically registered scanner template used to classify
// free-text scanner descriptions and to regenerate canonical scanner code.
type ScannerPattern struct {
	// Name is the scanner type reported on a confident detection.
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Conditions maps a stable human-readable condition description to the
	// canonical condition expression. The description is the match unit for
	// scoring; canonical expressions feed the term-overlap heuristic and the
	// generated code body.
	Conditions map[string]string `yaml:"conditions" json:"conditions"`

	// Parameters maps parameter names to their default values. Defaults must
	// be type-consistent with later coercion (number, bool, or string).
	Parameters map[string]any `yaml:"parameters" json:"parameters"`
}

// DetectionResult is the outcome of classifying input text against the
// pattern library. ScannerType is empty when no pattern cleared the
// confidence floor; that is a normal result, not an error.
type DetectionResult struct {
	ScannerType         string         `json:"scanner_type,omitempty"`
	Confidence          float64        `json:"confidence"`
	MatchedConditions   []string       `json:"matched_conditions"`
	MissingConditions   []string       `json:"missing_conditions"`
	SuggestedParameters map[string]any `json:"suggested_parameters,omitempty"`
}
