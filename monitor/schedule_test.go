package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/use-agent/pricewatch/models"
)

// stubCells implements store.RowStore over a cell map. Only Cell is
// exercised by the scheduler.
type stubCells struct {
	cells map[[2]int]string
	err   error
}

func (s *stubCells) Items(ctx context.Context) ([]models.TrackedItem, error) {
	return nil, nil
}

func (s *stubCells) Cell(ctx context.Context, row, col int) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.cells[[2]int{row, col}], nil
}

func (s *stubCells) WriteRow(ctx context.Context, row int, r models.Row) error {
	return nil
}

func (s *stubCells) Close() error { return nil }

func TestScheduler_IsDue(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.Local)
	item := models.TrackedItem{Label: "Kindle", URL: "https://example.com/dp/1", Interval: 60 * time.Minute, Row: 2}

	tests := []struct {
		name string
		cell string
		want bool
	}{
		{"blank cell is due", "", true},
		{"whitespace cell is due", "   ", true},
		{"fresh snapshot is not due", now.Add(-30 * time.Minute).Format(models.TimeLayout), false},
		{"exactly one interval old is due", now.Add(-60 * time.Minute).Format(models.TimeLayout), true},
		{"stale snapshot is due", now.Add(-3 * time.Hour).Format(models.TimeLayout), true},
		{"garbage timestamp is due", "last tuesday", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &stubCells{cells: map[[2]int]string{
				{item.Row, models.ColObservedAt}: tt.cell,
			}}
			s := NewScheduler(st)
			s.now = func() time.Time { return now }

			if got := s.IsDue(context.Background(), item); got != tt.want {
				t.Errorf("IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScheduler_StoreErrorFailsOpen(t *testing.T) {
	st := &stubCells{err: errors.New("backend offline")}
	s := NewScheduler(st)
	item := models.TrackedItem{Label: "Kindle", URL: "https://example.com/dp/1", Interval: time.Hour, Row: 2}

	if !s.IsDue(context.Background(), item) {
		t.Error("IsDue() = false on store error, want true")
	}
}
