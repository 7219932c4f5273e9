// Package engine provides the page-fetch substrate: open one session
// per process, render a listing URL, and hand back a queryable page.
// Two engines implement it — a headless browser and a static fetcher —
// plus a dispatcher that escalates from the cheap one to the heavy one.
package engine

import (
	"context"

	"github.com/use-agent/pricewatch/models"
)

// Engine is the interface all fetch engines implement.
type Engine interface {
	// Name returns the engine identifier (e.g. "static", "browser").
	Name() string

	// Render fetches url and returns the realized page. The caller must
	// Close the page when done with it.
	Render(ctx context.Context, url string) (Page, error)

	// Close releases the engine's resources (browser process, pages).
	Close()
}

// Page is one rendered listing. Lookups are scoped by CSS selectors;
// which ones is the extractor's business, not the engine's.
type Page interface {
	// Element waits up to the field timeout for the first match and
	// fails if none appears. Use for fields the page must have.
	Element(selector string) (Element, error)

	// FindWithText scans current matches for the first one whose text
	// contains substr. No waiting; absence is not an error.
	FindWithText(selector, substr string) (Element, bool)

	// Elements returns all current matches, possibly none.
	Elements(selector string) ([]Element, error)

	// HTML returns the page source as currently rendered.
	HTML() (string, error)

	// Close releases the page. On pooled engines this returns the tab
	// for reuse rather than destroying it.
	Close()
}

// Element is one matched node.
type Element interface {
	Text() (string, error)

	// Click presses the element. A no-op on static pages.
	Click() error

	// Next returns the element's next sibling.
	Next() (Element, error)
}

// PoolStater is implemented by engines that expose browser pool state
// for the health endpoint.
type PoolStater interface {
	Stats() models.PoolStats
}
