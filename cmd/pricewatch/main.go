package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/use-agent/pricewatch/api"
	"github.com/use-agent/pricewatch/archive"
	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/engine"
	"github.com/use-agent/pricewatch/extract"
	"github.com/use-agent/pricewatch/history"
	"github.com/use-agent/pricewatch/models"
	"github.com/use-agent/pricewatch/monitor"
	"github.com/use-agent/pricewatch/notify"
	"github.com/use-agent/pricewatch/store"
)

func main() {
	app := &cli.App{
		Name:  "pricewatch",
		Usage: "schedule-gated price and stock monitor for tracked listings",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Usage: "override log level (debug, info, warn, error)"},
			&cli.StringFlag{Name: "log-format", Usage: "override log format (json, text)"},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "refresh every due listing once and exit",
				Action: runAction,
			},
			{
				Name:   "watch",
				Usage:  "refresh listings on a timer and serve the status API",
				Action: watchAction,
			},
			{
				Name:   "items",
				Usage:  "list the tracked listings and exit",
				Action: itemsAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// collaborators bundles everything a refresh cycle needs.
type collaborators struct {
	cfg    *config.Config
	store  store.RowStore
	engine engine.Engine
	driver *monitor.Driver
}

func (co *collaborators) close() {
	co.engine.Close()
	if err := co.store.Close(); err != nil {
		slog.Warn("store close failed", "error", err)
	}
}

// setup wires the store, fetch engine, extractor, and driver. Any failure
// here is fatal: a monitor that cannot reach its collaborators has nothing
// useful to do.
func setup(c *cli.Context) (*collaborators, error) {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	slog.Info("pricewatch starting",
		"backend", cfg.Store.Backend,
		"fetchMode", cfg.Fetch.Mode,
		"workers", cfg.Monitor.Workers,
	)

	// ── 2. Open the row store ───────────────────────────────────────
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	// ── 3. Build the fetch engine (may launch a browser) ────────────
	eng, err := buildEngine(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	// ── 4. Evidence archiver (optional) ─────────────────────────────
	var arch *archive.Archiver
	if cfg.Archive.Dir != "" {
		arch, err = archive.New(cfg.Archive)
		if err != nil {
			eng.Close()
			st.Close()
			return nil, err
		}
	}

	// ── 5. Assemble the driver ──────────────────────────────────────
	driver := monitor.NewDriver(cfg, st, eng, extract.New(cfg.Extract), arch)

	return &collaborators{cfg: cfg, store: st, engine: eng, driver: driver}, nil
}

// loadConfig reads env config, applies CLI log overrides, initialises
// logging, and validates.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Load()
	if v := c.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := c.String("log-format"); v != "" {
		cfg.Log.Format = v
	}
	initLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildEngine assembles the fetch substrate for the configured mode:
//
//	browser  Rod-driven Chrome only
//	static   plain HTTP + TLS fingerprint only
//	auto     static first with browser escalation and per-domain memory
func buildEngine(cfg *config.Config) (engine.Engine, error) {
	switch cfg.Fetch.Mode {
	case "browser":
		return engine.NewBrowserEngine(cfg.Browser, cfg.Fetch, cfg.PoolSize())
	case "static":
		return engine.NewStaticEngine(cfg.Browser, cfg.Fetch, cfg.Extract.Selectors.Title), nil
	default: // "auto"
		browser, err := engine.NewBrowserEngine(cfg.Browser, cfg.Fetch, cfg.PoolSize())
		if err != nil {
			return nil, err
		}
		static := engine.NewStaticEngine(cfg.Browser, cfg.Fetch, cfg.Extract.Selectors.Title)
		memo := engine.NewEngineMemo(cfg.Fetch.MemoryTTL)
		return engine.NewDispatcher([]engine.Engine{static, browser}, memo), nil
	}
}

// runAction performs a single refresh cycle and prints the outcome.
func runAction(c *cli.Context) error {
	co, err := setup(c)
	if err != nil {
		return err
	}
	defer co.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := co.driver.Run(ctx)
	if err != nil {
		return fmt.Errorf("refresh cycle: %w", err)
	}
	printSummary(summary)
	return nil
}

// watchAction runs cycles on a timer and serves the status API until
// SIGINT/SIGTERM.
func watchAction(c *cli.Context) error {
	co, err := setup(c)
	if err != nil {
		return err
	}
	defer co.close()

	cfg := co.cfg
	hist := history.New(cfg.History.MaxRuns)
	notifier := notify.New(cfg.Notify)
	startTime := time.Now()

	// Cycle context: cancelled on shutdown so an in-flight item aborts at
	// its next suspension point instead of writing rows for a dying process.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runCycle := func() {
		summary, err := co.driver.Run(ctx)
		if err != nil {
			switch {
			case errors.Is(err, monitor.ErrCycleActive):
				slog.Warn("refresh cycle already running, skipping trigger")
			case ctx.Err() != nil:
				// Shutting down.
			default:
				slog.Error("refresh cycle failed", "error", err)
			}
			return
		}
		hist.Record(summary)
		notifier.DeliverAsync(notify.NewRunCompleted(summary))
	}

	// ── 1. Status API ───────────────────────────────────────────────
	launch := func() { go runCycle() }
	router := api.NewRouter(co.driver, co.store, co.engine, hist, launch, cfg, true, startTime)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 2. Watch loop ───────────────────────────────────────────────
	slog.Info("watch loop started", "cycleInterval", cfg.Monitor.CycleInterval.String())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Monitor.CycleInterval)
	defer ticker.Stop()

	// First cycle immediately; later ones on the ticker. The per-item
	// scheduler decides what is actually due each time.
	runCycle()

	for {
		select {
		case <-ticker.C:
			runCycle()

		case sig := <-quit:
			// ── 3. Graceful shutdown ────────────────────────────
			slog.Info("shutdown signal received", "signal", sig.String())
			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("HTTP server forced shutdown", "error", err)
			} else {
				slog.Info("HTTP server drained gracefully")
			}

			// co.close() runs via defer — drains the page pool and kills Chrome.
			slog.Info("pricewatch stopped")
			return nil
		}
	}
}

// itemsAction prints the tracked listings without fetching anything.
func itemsAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	items, err := st.Items(ctx)
	if err != nil {
		return fmt.Errorf("load tracked items: %w", err)
	}

	if len(items) == 0 {
		fmt.Println("no tracked listings")
		return nil
	}
	for _, it := range items {
		note := ""
		if !it.Valid() {
			note = "  [malformed: skipped by cycles]"
		}
		fmt.Printf("row %-3d every %-8s %s  %s%s\n", it.Row, it.Interval, it.Label, it.URL, note)
	}
	fmt.Printf("%d listing(s) tracked\n", len(items))
	return nil
}

func printSummary(s models.RunSummary) {
	fmt.Printf("cycle finished in %s: %d tracked, %d updated, %d failed, %d skipped, %d invalid\n",
		s.Duration.Round(time.Millisecond), s.Total, s.Updated, s.Failed, s.Skipped, s.Invalid)
	for _, o := range s.Outcomes {
		line := fmt.Sprintf("  row %-3d %-8s %s", o.Row, o.Status, o.Label)
		if o.Error != "" {
			line += "  (" + o.Error + ")"
		}
		fmt.Println(line)
	}
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
