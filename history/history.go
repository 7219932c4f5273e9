// Package history keeps a bounded in-memory record of completed refresh
// cycles. It backs the status API: the last run, a window of recent runs,
// and the most recent outcome per tracked row.
package history

import (
	"sync"

	"github.com/use-agent/pricewatch/models"
)

// History is a fixed-capacity ring of run summaries plus the latest outcome
// seen for each row index. It is safe for concurrent use.
type History struct {
	mu       sync.RWMutex
	runs     []models.RunSummary
	maxRuns  int
	outcomes map[int]models.ItemOutcome
}

// New creates a History retaining at most maxRuns summaries.
func New(maxRuns int) *History {
	if maxRuns < 1 {
		maxRuns = 1
	}
	return &History{
		maxRuns:  maxRuns,
		outcomes: make(map[int]models.ItemOutcome),
	}
}

// Record stores a completed run, evicting the oldest summary when the ring
// is full, and refreshes the per-row outcome index. Skipped outcomes still
// overwrite: "skipped just now" is more current than "updated an hour ago".
func (h *History) Record(s models.RunSummary) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.runs = append(h.runs, s)
	if len(h.runs) > h.maxRuns {
		h.runs = h.runs[1:]
	}
	for _, o := range s.Outcomes {
		h.outcomes[o.Row] = o
	}
}

// Last returns the most recent run summary, or nil when no cycle has
// completed yet.
func (h *History) Last() *models.RunSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.runs) == 0 {
		return nil
	}
	last := h.runs[len(h.runs)-1]
	return &last
}

// Recent returns up to n summaries, most recent first.
func (h *History) Recent(n int) []models.RunSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || len(h.runs) == 0 {
		return nil
	}
	if n > len(h.runs) {
		n = len(h.runs)
	}
	out := make([]models.RunSummary, 0, n)
	for i := len(h.runs) - 1; i >= len(h.runs)-n; i-- {
		out = append(out, h.runs[i])
	}
	return out
}

// Outcome returns the latest recorded outcome for a row index.
func (h *History) Outcome(row int) (models.ItemOutcome, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	o, ok := h.outcomes[row]
	return o, ok
}

// Runs reports how many summaries are currently retained.
func (h *History) Runs() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.runs)
}
