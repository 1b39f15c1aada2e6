package models

import "time"

// ScannerTypeAll is the wildcard entry in a scanner_types list; a definition
// carrying it applies to every scanner type.
const ScannerTypeAll = "*"

// ParameterDefinition describes a user-tunable scanner parameter surfaced by
// the UI. Definitions live in a registry seeded from static defaults.
type ParameterDefinition struct {
	ID           string    `json:"id"`
	Label        string    `json:"label"`
	Group        string    `json:"group,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	Type         string    `json:"type"`
	Default      any       `json:"default,omitempty"`
	ScannerTypes []string  `json:"scanner_types"`
	DisplayOrder int       `json:"display_order"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ColumnDefinition describes a result column rendered for scan output.
type ColumnDefinition struct {
	ID           string    `json:"id"`
	Label        string    `json:"label"`
	Type         string    `json:"type"`
	Format       string    `json:"format,omitempty"`
	Visible      bool      `json:"visible"`
	ScannerTypes []string  `json:"scanner_types"`
	DisplayOrder int       `json:"display_order"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ScanSession records one authored-and-executed scan so parameters and
// results can be revisited. Sessions are pruned by the maintenance loop.
type ScanSession struct {
	ID          string         `json:"id"`
	ScannerType string         `json:"scanner_type,omitempty"`
	Code        string         `json:"code,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	ScanID      string         `json:"scan_id,omitempty"`
	State       ScanState      `json:"state"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// AppliesTo reports whether a scanner_types list covers the given type.
// An empty list behaves like the wildcard.
func AppliesTo(scannerTypes []string, scannerType string) bool {
	if scannerType == "" || len(scannerTypes) == 0 {
		return true
	}
	for _, st := range scannerTypes {
		if st == ScannerTypeAll || st == scannerType {
			return true
		}
	}
	return false
}
