package models

import (
	"strconv"
	"strings"
	"time"
)

// DefaultInterval is the refresh interval applied when an item's
// interval cell is blank or not numeric.
const DefaultInterval = 60 * time.Minute

// TrackedItem is one listing under watch: a display label, the listing
// URL, how often it should be re-checked, and the output row it owns.
type TrackedItem struct {
	// Label is the operator-facing product name (also the source of the
	// brand fallback).
	Label string `json:"label"`

	// URL is the listing page to fetch.
	URL string `json:"url"`

	// Interval is the minimum age of the previous snapshot before the
	// item is due again.
	Interval time.Duration `json:"interval"`

	// Row is the 1-based output row this item owns. Row 1 is the header,
	// so the first item lives at row 2. Bound once when the item list is
	// loaded and never recomputed, including for invalid items, so that
	// a blank row in the input never shifts its neighbours.
	Row int `json:"row"`
}

// Valid reports whether the item carries enough to be scheduled: a
// non-blank label and URL. Invalid items are skipped without a due
// check or a write.
func (it TrackedItem) Valid() bool {
	return strings.TrimSpace(it.Label) != "" && strings.TrimSpace(it.URL) != ""
}

// ParseInterval converts an interval-minutes cell to a duration.
// Blank or non-numeric values fall back to DefaultInterval.
func ParseInterval(cell string) time.Duration {
	n, err := strconv.Atoi(strings.TrimSpace(cell))
	if err != nil || n <= 0 {
		return DefaultInterval
	}
	return time.Duration(n) * time.Minute
}
