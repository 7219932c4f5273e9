package models

import "time"

// Per-item outcome statuses for one monitoring cycle.
const (
	StatusUpdated = "updated" // fresh snapshot written
	StatusFailed  = "failed"  // retry budget exhausted, fallback row written
	StatusSkipped = "skipped" // previous snapshot still fresh, row untouched
	StatusInvalid = "invalid" // malformed input row, no check and no write
)

// ItemOutcome records what one cycle did with one tracked item.
type ItemOutcome struct {
	Label    string `json:"label"`
	Row      int    `json:"row"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts,omitempty"`
	Error    string `json:"error,omitempty"`
}

// RunSummary aggregates one full pass over the tracked list.
type RunSummary struct {
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`

	// Total is every input row seen, valid or not.
	Total   int `json:"total"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Invalid int `json:"invalid"`

	Outcomes []ItemOutcome `json:"outcomes,omitempty"`
}

// Record appends an outcome and bumps the matching counter.
func (s *RunSummary) Record(o ItemOutcome) {
	s.Total++
	switch o.Status {
	case StatusUpdated:
		s.Updated++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	case StatusInvalid:
		s.Invalid++
	}
	s.Outcomes = append(s.Outcomes, o)
}
