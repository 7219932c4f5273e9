package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/pricewatch/models"
)

// AttemptFunc performs one complete extraction attempt: fetch the
// page, extract, return the snapshot.
type AttemptFunc func(ctx context.Context) (models.Snapshot, error)

// Retrier drives an AttemptFunc through a fixed budget of attempts
// with a fixed pause between them. Every failure kind — navigation,
// timeout, missing field — consumes the budget the same way; transient
// and permanent only differ in whether the budget runs out.
type Retrier struct {
	maxAttempts int
	delay       time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewRetrier creates a Retrier. maxAttempts below 1 is clamped to 1.
func NewRetrier(maxAttempts int, delay time.Duration) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retrier{maxAttempts: maxAttempts, delay: delay, sleep: sleepCtx}
}

// Run attempts fn until it succeeds or the budget is spent. It returns
// the snapshot, the number of attempts consumed, and the last error
// when all attempts failed. The pause happens between attempts only —
// never after the last — and is cut short by context cancellation.
func (r *Retrier) Run(ctx context.Context, label string, fn AttemptFunc) (models.Snapshot, int, error) {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		snap, err := fn(ctx)
		if err == nil {
			return snap, attempt, nil
		}
		lastErr = err
		slog.Warn("refresh attempt failed",
			"listing", label,
			"attempt", attempt,
			"max", r.maxAttempts,
			"error", err,
		)
		if attempt < r.maxAttempts {
			if sleepErr := r.sleep(ctx, r.delay); sleepErr != nil {
				return models.Snapshot{}, attempt, sleepErr
			}
		}
	}
	return models.Snapshot{}, r.maxAttempts, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
