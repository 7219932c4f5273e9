// Package monitor is the pipeline: decide which tracked items are due,
// fetch and extract each one with bounded retries, and land exactly one
// row per due item in the store — a fresh snapshot or the deterministic
// failure placeholder.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/use-agent/pricewatch/archive"
	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/engine"
	"github.com/use-agent/pricewatch/extract"
	"github.com/use-agent/pricewatch/models"
	"github.com/use-agent/pricewatch/store"
)

// ErrCycleActive is returned by Run when a cycle is already in flight.
var ErrCycleActive = errors.New("a refresh cycle is already running")

// Driver owns one monitoring cycle end to end. It holds the session
// handle (the engine) explicitly — nothing here reaches for globals —
// so two Drivers over disjoint stores can coexist in one process.
type Driver struct {
	cfg       *config.Config
	store     store.RowStore
	engine    engine.Engine
	extractor *extract.Extractor
	scheduler *Scheduler
	retrier   *Retrier
	limiter   *rate.Limiter
	archiver  *archive.Archiver
	running   atomic.Bool
}

// NewDriver wires a Driver from its collaborators. archiver may be nil
// to disable evidence archiving.
func NewDriver(cfg *config.Config, st store.RowStore, eng engine.Engine, xt *extract.Extractor, archiver *archive.Archiver) *Driver {
	// RateRPS <= 0 disables pacing; a literal zero limit would block forever.
	limit := rate.Inf
	if cfg.Monitor.RateRPS > 0 {
		limit = rate.Limit(cfg.Monitor.RateRPS)
	}
	burst := cfg.Monitor.RateBurst
	if burst < 1 {
		burst = 1
	}
	return &Driver{
		cfg:       cfg,
		store:     st,
		engine:    eng,
		extractor: xt,
		scheduler: NewScheduler(st),
		retrier:   NewRetrier(cfg.Monitor.MaxAttempts, cfg.Monitor.RetryDelay),
		limiter:   rate.NewLimiter(limit, burst),
		archiver:  archiver,
	}
}

// Running reports whether a cycle is in flight.
func (d *Driver) Running() bool {
	return d.running.Load()
}

// Run executes one full cycle over the tracked list. Item failures
// never abort the run; only a failed item load or context cancellation
// does. At most one cycle runs at a time.
func (d *Driver) Run(ctx context.Context) (models.RunSummary, error) {
	if !d.running.CompareAndSwap(false, true) {
		return models.RunSummary{}, ErrCycleActive
	}
	defer d.running.Store(false)

	summary := models.RunSummary{Started: time.Now()}

	items, err := d.store.Items(ctx)
	if err != nil {
		return summary, fmt.Errorf("load tracked items: %w", err)
	}

	workers := d.cfg.Monitor.Workers
	if workers < 1 {
		workers = 1
	}
	slog.Info("cycle started", "items", len(items), "workers", workers)

	var runErr error
	if workers == 1 {
		runErr = d.runSequential(ctx, items, &summary)
	} else {
		runErr = d.runPooled(ctx, items, &summary, workers)
	}

	summary.Duration = time.Since(summary.Started)
	slog.Info("cycle complete",
		"updated", summary.Updated,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"invalid", summary.Invalid,
		"duration", summary.Duration.Round(time.Millisecond),
	)
	return summary, runErr
}

// runSequential processes items strictly in input order — the default,
// and the mode that keeps one item's retries from interleaving with
// another's fetches.
func (d *Driver) runSequential(ctx context.Context, items []models.TrackedItem, summary *models.RunSummary) error {
	for _, item := range items {
		outcome, err := d.processItem(ctx, item)
		if err != nil {
			return err
		}
		summary.Record(outcome)
	}
	return nil
}

// runPooled fans items out to a bounded worker pool. Every item owns a
// distinct row index, so concurrent writes never touch the same row;
// the shared limiter still paces all page fetches; each item's retries
// stay sequential inside its worker.
func (d *Driver) runPooled(ctx context.Context, items []models.TrackedItem, summary *models.RunSummary, workers int) error {
	type itemResult struct {
		outcome models.ItemOutcome
		err     error
	}

	jobs := make(chan models.TrackedItem)
	results := make(chan itemResult)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				outcome, err := d.processItem(ctx, item)
				results <- itemResult{outcome: outcome, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, item := range items {
			select {
			case jobs <- item:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var runErr error
	for res := range results {
		if res.err != nil {
			if runErr == nil {
				runErr = res.err
			}
			continue
		}
		summary.Record(res.outcome)
	}
	return runErr
}

// processItem takes one item through the whole ladder: validity,
// due check, paced fetch + extract under retry, exactly one write.
// The returned error is non-nil only when the run itself must stop
// (context cancelled); per-item failures come back in the outcome.
func (d *Driver) processItem(ctx context.Context, item models.TrackedItem) (models.ItemOutcome, error) {
	if err := ctx.Err(); err != nil {
		return models.ItemOutcome{}, err
	}

	log := slog.With("listing", item.Label, "row", item.Row)

	if !item.Valid() {
		log.Warn("skipping malformed input row")
		return models.ItemOutcome{Label: item.Label, Row: item.Row, Status: models.StatusInvalid}, nil
	}

	if !d.scheduler.IsDue(ctx, item) {
		log.Debug("snapshot still fresh, skipping")
		return models.ItemOutcome{Label: item.Label, Row: item.Row, Status: models.StatusSkipped}, nil
	}

	// Read before the write so a change this cycle is detectable.
	prevPrice, _ := d.store.Cell(ctx, item.Row, models.ColPrice)

	var lastHTML string
	snap, attempts, err := d.retrier.Run(ctx, item.Label, func(attemptCtx context.Context) (models.Snapshot, error) {
		if waitErr := d.limiter.Wait(attemptCtx); waitErr != nil {
			return models.Snapshot{}, waitErr
		}
		page, renderErr := d.engine.Render(attemptCtx, item.URL)
		if renderErr != nil {
			return models.Snapshot{}, renderErr
		}
		defer page.Close()

		s, exErr := d.extractor.Extract(attemptCtx, page, item.Label)
		if exErr != nil {
			// Keep the page source: it is the evidence of what the
			// listing looked like when extraction gave up.
			if html, htmlErr := page.HTML(); htmlErr == nil {
				lastHTML = html
			}
			return models.Snapshot{}, exErr
		}
		return s, nil
	})

	if err != nil {
		if ctx.Err() != nil {
			// Shutdown, not a dead listing: leave the row alone.
			return models.ItemOutcome{}, ctx.Err()
		}
		log.Error("all attempts failed, writing fallback row", "attempts", attempts, "error", err)
		fallback := models.FallbackRow(item, time.Now(), d.cfg.Extract.Currency)
		if werr := d.store.WriteRow(ctx, item.Row, fallback); werr != nil {
			log.Error("fallback row write failed", "error", werr)
			return failedOutcome(item, attempts, werr), nil
		}
		d.maybeArchive(item, archive.TriggerFailure, lastHTML)
		return failedOutcome(item, attempts, err), nil
	}

	row := models.BuildRow(item, snap, d.cfg.Extract.Currency)
	if werr := d.store.WriteRow(ctx, item.Row, row); werr != nil {
		log.Error("snapshot row write failed", "error", werr)
		return failedOutcome(item, attempts, werr), nil
	}

	newPrice := row[models.ColPrice-1]
	if prevPrice != "" && prevPrice != newPrice {
		log.Info("price changed", "from", prevPrice, "to", newPrice)
		d.maybeArchive(item, archive.TriggerPriceChange, snap.RawHTML)
	}

	log.Info("snapshot updated", "price", snap.Price, "quantity", snap.Quantity, "attempts", attempts)
	return models.ItemOutcome{
		Label:    item.Label,
		Row:      item.Row,
		Status:   models.StatusUpdated,
		Attempts: attempts,
	}, nil
}

func (d *Driver) maybeArchive(item models.TrackedItem, trigger string, html string) {
	if d.archiver == nil || html == "" {
		return
	}
	switch trigger {
	case archive.TriggerFailure:
		if !d.cfg.Archive.OnFailure {
			return
		}
	case archive.TriggerPriceChange:
		if !d.cfg.Archive.OnChange {
			return
		}
	}
	if err := d.archiver.Save(item.Label, item.URL, trigger, html); err != nil {
		slog.Warn("evidence archive failed", "listing", item.Label, "trigger", trigger, "error", err)
	}
}

func failedOutcome(item models.TrackedItem, attempts int, err error) models.ItemOutcome {
	return models.ItemOutcome{
		Label:    item.Label,
		Row:      item.Row,
		Status:   models.StatusFailed,
		Attempts: attempts,
		Error:    err.Error(),
	}
}
