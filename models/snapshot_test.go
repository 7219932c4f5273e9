package models

import (
	"testing"
	"time"
)

func TestBuildRow(t *testing.T) {
	item := TrackedItem{
		Label: "JBL Flip 6",
		URL:   "https://example.com/dp/1",
		Row:   2,
	}
	snap := Snapshot{
		ObservedAt: time.Date(2025, 3, 14, 12, 30, 45, 0, time.Local),
		Title:      "JBL Flip 6 Portable Speaker",
		Price:      "9999.00",
		Seller:     "RetailNet",
		Quantity:   "30+",
		Brand:      "JBL",
		OfferCount: 4,
	}

	got := BuildRow(item, snap, "₹")
	want := Row{
		"2025-03-14 12:30:45",
		"JBL Flip 6",
		"JBL Flip 6 Portable Speaker",
		"₹9999.00",
		"https://example.com/dp/1",
		"RetailNet - 30+",
		"JBL",
		"4",
	}
	if got != want {
		t.Errorf("BuildRow() = %v, want %v", got, want)
	}
}

func TestFallbackRow(t *testing.T) {
	item := TrackedItem{
		Label: "JBL Flip 6",
		URL:   "https://example.com/dp/1",
		Row:   2,
	}
	now := time.Date(2025, 3, 14, 12, 30, 45, 0, time.Local)

	got := FallbackRow(item, now, "₹")
	want := Row{
		"2025-03-14 12:30:45",
		"JBL Flip 6",
		"Error",
		"₹500",
		"https://example.com/dp/1",
		"Unknown - Unknown",
		"BRAND",
		"0",
	}
	if got != want {
		t.Errorf("FallbackRow() = %v, want %v", got, want)
	}
}

func TestRow_ObservedAt(t *testing.T) {
	stamp := time.Date(2025, 3, 14, 12, 30, 45, 0, time.Local)
	r := Row{stamp.Format(TimeLayout)}

	got, err := r.ObservedAt()
	if err != nil {
		t.Fatalf("ObservedAt() error: %v", err)
	}
	if !got.Equal(stamp) {
		t.Errorf("ObservedAt() = %v, want %v", got, stamp)
	}

	if _, err := (Row{"yesterday"}).ObservedAt(); err == nil {
		t.Error("expected parse error for garbage timestamp")
	}
}

func TestTrackedItem_Valid(t *testing.T) {
	tests := []struct {
		name string
		item TrackedItem
		want bool
	}{
		{"label and url", TrackedItem{Label: "JBL Flip 6", URL: "https://example.com/dp/1"}, true},
		{"missing url", TrackedItem{Label: "JBL Flip 6"}, false},
		{"missing label", TrackedItem{URL: "https://example.com/dp/1"}, false},
		{"whitespace only", TrackedItem{Label: "  ", URL: "\t"}, false},
		{"empty", TrackedItem{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		name string
		cell string
		want time.Duration
	}{
		{"plain minutes", "30", 30 * time.Minute},
		{"padded", " 45 ", 45 * time.Minute},
		{"blank falls back", "", DefaultInterval},
		{"words fall back", "hourly", DefaultInterval},
		{"zero falls back", "0", DefaultInterval},
		{"negative falls back", "-15", DefaultInterval},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseInterval(tt.cell); got != tt.want {
				t.Errorf("ParseInterval(%q) = %v, want %v", tt.cell, got, tt.want)
			}
		})
	}
}

func TestRunSummary_Record(t *testing.T) {
	var s RunSummary
	s.Record(ItemOutcome{Label: "a", Row: 2, Status: StatusUpdated})
	s.Record(ItemOutcome{Label: "b", Row: 3, Status: StatusSkipped})
	s.Record(ItemOutcome{Label: "c", Row: 4, Status: StatusFailed, Attempts: 3})
	s.Record(ItemOutcome{Label: "", Row: 5, Status: StatusInvalid})

	if s.Total != 4 {
		t.Errorf("Total = %d, want 4", s.Total)
	}
	if s.Updated != 1 || s.Skipped != 1 || s.Failed != 1 || s.Invalid != 1 {
		t.Errorf("counters = updated %d skipped %d failed %d invalid %d, want 1 each",
			s.Updated, s.Skipped, s.Failed, s.Invalid)
	}
	if len(s.Outcomes) != 4 {
		t.Errorf("len(Outcomes) = %d, want 4", len(s.Outcomes))
	}
}
