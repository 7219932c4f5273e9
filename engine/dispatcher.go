package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/use-agent/pricewatch/models"
)

// Dispatcher escalates through engines in order, cheapest first. Unlike
// a racing dispatcher it never runs two engines at once: a monitor is
// latency-insensitive, and doubling the hits on a listing just to win a
// race is exactly the traffic shape bot detection looks for.
//
// A domain's winning engine is remembered, so after one escalation a
// browser-only shop goes straight to the browser for the memory TTL.
type Dispatcher struct {
	engines []Engine
	memory  *EngineMemo
}

// NewDispatcher creates a Dispatcher over the given engines, ordered
// cheapest to heaviest.
func NewDispatcher(engines []Engine, memory *EngineMemo) *Dispatcher {
	return &Dispatcher{engines: engines, memory: memory}
}

func (d *Dispatcher) Name() string { return "auto" }

// Render tries the remembered engine for the listing's domain first,
// then escalates through the remaining engines in order. The first
// page wins; the last error is returned when everything fails.
func (d *Dispatcher) Render(ctx context.Context, targetURL string) (Page, error) {
	domain := hostOf(targetURL)

	if remembered := d.memory.Get(domain); remembered != "" {
		for _, eng := range d.engines {
			if eng.Name() != remembered {
				continue
			}
			slog.Debug("engine memory hit", "domain", domain, "engine", remembered)
			page, err := eng.Render(ctx, targetURL)
			if err == nil {
				return page, nil
			}
			// The remembered engine stopped working for this domain;
			// forget it and walk the full ladder below.
			slog.Info("remembered engine failed, escalating from the bottom",
				"domain", domain, "engine", remembered, "error", err)
			d.memory.Forget(domain)
			break
		}
	}

	var lastErr error
	for _, eng := range d.engines {
		page, err := eng.Render(ctx, targetURL)
		if err == nil {
			d.memory.Set(domain, eng.Name())
			return page, nil
		}
		lastErr = err
		slog.Debug("engine failed, escalating", "engine", eng.Name(), "url", targetURL, "error", err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("dispatcher: no engines configured for %s", targetURL)
	}
	return nil, lastErr
}

// Stats reports the browser pool when a browser engine is in the
// ladder, zero stats otherwise.
func (d *Dispatcher) Stats() models.PoolStats {
	for _, eng := range d.engines {
		if ps, ok := eng.(PoolStater); ok {
			return ps.Stats()
		}
	}
	return models.PoolStats{}
}

// Close shuts down every engine and the memory's prune loop.
func (d *Dispatcher) Close() {
	for _, eng := range d.engines {
		eng.Close()
	}
	d.memory.Stop()
}

// hostOf parses the hostname from a URL string.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
