package history

import (
	"testing"
	"time"

	"github.com/use-agent/pricewatch/models"
)

func summaryAt(minute int, outcomes ...models.ItemOutcome) models.RunSummary {
	s := models.RunSummary{
		Started: time.Date(2025, 3, 14, 12, minute, 0, 0, time.Local),
	}
	for _, o := range outcomes {
		s.Record(o)
	}
	return s
}

func TestHistory_Record_EvictsOldest(t *testing.T) {
	h := New(3)
	for minute := 0; minute < 5; minute++ {
		h.Record(summaryAt(minute))
	}

	if h.Runs() != 3 {
		t.Fatalf("Runs() = %d, want 3", h.Runs())
	}
	last := h.Last()
	if last == nil {
		t.Fatal("Last() = nil")
	}
	if last.Started.Minute() != 4 {
		t.Errorf("Last().Started minute = %d, want 4", last.Started.Minute())
	}

	recent := h.Recent(10)
	if len(recent) != 3 {
		t.Fatalf("len(Recent(10)) = %d, want 3", len(recent))
	}
	// Most recent first; minutes 0 and 1 were evicted.
	for i, wantMinute := range []int{4, 3, 2} {
		if got := recent[i].Started.Minute(); got != wantMinute {
			t.Errorf("Recent()[%d] minute = %d, want %d", i, got, wantMinute)
		}
	}
}

func TestHistory_Last_EmptyIsNil(t *testing.T) {
	h := New(5)
	if h.Last() != nil {
		t.Error("Last() on empty history should be nil")
	}
	if h.Recent(3) != nil {
		t.Error("Recent() on empty history should be nil")
	}
}

func TestHistory_Recent_Window(t *testing.T) {
	h := New(10)
	for minute := 0; minute < 4; minute++ {
		h.Record(summaryAt(minute))
	}

	recent := h.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("len(Recent(2)) = %d, want 2", len(recent))
	}
	if recent[0].Started.Minute() != 3 || recent[1].Started.Minute() != 2 {
		t.Errorf("Recent(2) minutes = %d,%d, want 3,2",
			recent[0].Started.Minute(), recent[1].Started.Minute())
	}

	if got := h.Recent(0); got != nil {
		t.Errorf("Recent(0) = %v, want nil", got)
	}
}

func TestHistory_Outcome_TracksLatestPerRow(t *testing.T) {
	h := New(5)
	h.Record(summaryAt(0,
		models.ItemOutcome{Label: "a", Row: 2, Status: models.StatusUpdated, Attempts: 1},
		models.ItemOutcome{Label: "b", Row: 3, Status: models.StatusFailed, Attempts: 3},
	))
	h.Record(summaryAt(1,
		models.ItemOutcome{Label: "a", Row: 2, Status: models.StatusSkipped},
	))

	got, ok := h.Outcome(2)
	if !ok {
		t.Fatal("Outcome(2) missing")
	}
	// The later skip replaces the earlier update.
	if got.Status != models.StatusSkipped {
		t.Errorf("Outcome(2).Status = %q, want %q", got.Status, models.StatusSkipped)
	}

	got, ok = h.Outcome(3)
	if !ok || got.Status != models.StatusFailed {
		t.Errorf("Outcome(3) = %+v ok %v, want failed outcome", got, ok)
	}

	if _, ok := h.Outcome(99); ok {
		t.Error("Outcome(99) should be absent")
	}
}

func TestNew_ClampsCapacity(t *testing.T) {
	h := New(0)
	h.Record(summaryAt(0))
	h.Record(summaryAt(1))

	if h.Runs() != 1 {
		t.Errorf("Runs() = %d, want 1", h.Runs())
	}
	if h.Last().Started.Minute() != 1 {
		t.Errorf("Last() minute = %d, want 1", h.Last().Started.Minute())
	}
}
