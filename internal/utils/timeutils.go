package utils

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for scan date windows (D0 range bounds).
const DateLayout = "2006-01-02"

// ParseDate returns the day parsed from a YYYY-MM-DD string or an error.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date value")
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date: %w", err)
	}
	return t, nil
}

// ValidateDateRange checks that both bounds parse and start does not follow end.
func ValidateDateRange(start, end string) error {
	s, err := ParseDate(start)
	if err != nil {
		return fmt.Errorf("start_date: %w", err)
	}
	e, err := ParseDate(end)
	if err != nil {
		return fmt.Errorf("end_date: %w", err)
	}
	if s.After(e) {
		return fmt.Errorf("start_date %s is after end_date %s", start, end)
	}
	return nil
}
