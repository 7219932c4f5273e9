package monitor

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/pricewatch/models"
	"github.com/use-agent/pricewatch/store"
)

// Scheduler decides whether an item's snapshot is stale. It reads the
// observed-at cell of the item's own row and compares its age against
// the item's interval.
//
// The check fails open: a missing, unreadable or unparseable timestamp
// means "due". A row that has never been written gets its first
// snapshot, and a corrupted cell gets repaired by the next write
// instead of wedging the item forever.
type Scheduler struct {
	store store.RowStore
	now   func() time.Time
}

// NewScheduler creates a Scheduler reading from st.
func NewScheduler(st store.RowStore) *Scheduler {
	return &Scheduler{store: st, now: time.Now}
}

// IsDue reports whether the item should be refreshed this cycle. The
// boundary is inclusive: a snapshot exactly one interval old is due.
func (s *Scheduler) IsDue(ctx context.Context, item models.TrackedItem) bool {
	cell, err := s.store.Cell(ctx, item.Row, models.ColObservedAt)
	if err != nil {
		slog.Warn("due check: cannot read previous timestamp, treating as due",
			"row", item.Row, "error", err)
		return true
	}
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return true
	}
	prev, err := time.ParseInLocation(models.TimeLayout, cell, time.Local)
	if err != nil {
		slog.Warn("due check: unparseable previous timestamp, treating as due",
			"row", item.Row, "value", cell)
		return true
	}
	return s.now().Sub(prev) >= item.Interval
}
