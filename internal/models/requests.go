package models

// FormatRequest asks the format pipeline to turn pasted or described scanner
// text into canonical scanner code.
type FormatRequest struct {
	Text  string `json:"text"`
	UseAI bool   `json:"use_ai"`
}

// FormatSource identifies which path produced the formatted code.
type FormatSource string

const (
	// FormatSourceAI marks output parsed from the AI generation backend.
	FormatSourceAI FormatSource = "ai"
	// FormatSourceTemplate marks the deterministic template fallback.
	FormatSourceTemplate FormatSource = "template"
)

// FormatResult carries the formatted code plus the detection that drove it.
type FormatResult struct {
	Code      string          `json:"code"`
	Source    FormatSource    `json:"source"`
	Detection DetectionResult `json:"detection"`
}

// ScanRequest submits scanner code for remote execution over a D0 date range.
// When Code is empty, Text is run through the format pipeline first.
type ScanRequest struct {
	Code           string         `json:"code,omitempty"`
	Text           string         `json:"text,omitempty"`
	StartDate      string         `json:"start_date"`
	EndDate        string         `json:"end_date"`
	ScannerType    string         `json:"scanner_type,omitempty"`
	Filters        map[string]any `json:"filters,omitempty"`
	TimeoutSeconds int            `json:"timeout_seconds,omitempty"`
}
