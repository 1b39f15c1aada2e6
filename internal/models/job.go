package models

import "time"

// ScanState is the local vocabulary for tracked scan jobs. Remote backend
// statuses are mapped into these values at the client boundary.
type ScanState string

const (
	ScanQueued    ScanState = "queued"
	ScanRunning   ScanState = "running"
	ScanComplete  ScanState = "complete"
	ScanFailed    ScanState = "failed"
	ScanCancelled ScanState = "cancelled"
)

// Terminal reports whether a job in this state will never change again.
func (s ScanState) Terminal() bool {
	switch s {
	case ScanComplete, ScanFailed, ScanCancelled:
		return true
	}
	return false
}

// ScanJob is a snapshot of a tracked remote execution.
type ScanJob struct {
	ID          string           `json:"id"`
	ScannerType string           `json:"scanner_type,omitempty"`
	State       ScanState        `json:"state"`
	Progress    float64          `json:"progress"`
	Message     string           `json:"message,omitempty"`
	Error       string           `json:"error,omitempty"`
	Results     []map[string]any `json:"results,omitempty"`
	TotalFound  int              `json:"total_found"`
	SubmittedAt time.Time        `json:"submitted_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
