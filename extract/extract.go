// Package extract turns one rendered listing page into one typed
// snapshot. Only the title and price are load-bearing; every other
// field degrades to a placeholder instead of failing the item.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/engine"
	"github.com/use-agent/pricewatch/models"
)

// Extractor reads the configured selector set off a page.
type Extractor struct {
	cfg config.ExtractConfig
	now func() time.Time
}

// New creates an Extractor. The selector set is assumed validated at
// config load.
func New(cfg config.ExtractConfig) *Extractor {
	return &Extractor{cfg: cfg, now: time.Now}
}

// Extract reads all product facts off the page.
//
// Field order and failure policy:
//
//  1. Interstitial – dismiss-and-pause, best-effort, never an error
//  2. Title        – required; missing fails the attempt
//  3. Price        – required; missing or non-numeric fails the attempt
//  4. Seller       – profile element, else merchant line, else "Unknown"
//  5. Quantity     – max numeric menu option, saturated at "30+", else "Unknown"
//  6. Brand        – details-table cell, else leading caps of the label, else "BRAND"
//  7. Offers       – count of offer elements, else offers-link text, else 0
//
// Fields 4-7 are deliberately non-throwing: a listing without a seller
// line is still a perfectly good price observation.
func (x *Extractor) Extract(ctx context.Context, page engine.Page, label string) (models.Snapshot, error) {
	sel := x.cfg.Selectors

	// ── 1. Interstitial ─────────────────────────────────────────────
	if btn, ok := page.FindWithText(sel.InterstitialButton, sel.InterstitialText); ok {
		slog.Debug("interstitial detected, dismissing", "listing", label)
		if err := btn.Click(); err != nil {
			slog.Debug("interstitial click failed, continuing", "error", err)
		} else {
			x.pause(ctx)
		}
	}

	// ── 2. Title (required) ─────────────────────────────────────────
	title, err := requiredText(page, sel.Title)
	if err != nil {
		return models.Snapshot{}, models.NewMonitorError(
			models.ErrCodeFieldMissing, "listing title not found", err)
	}

	// ── 3. Price (required) ─────────────────────────────────────────
	rawPrice, err := requiredText(page, sel.Price)
	if err != nil {
		return models.Snapshot{}, models.NewMonitorError(
			models.ErrCodeFieldMissing, "listing price not found", err)
	}
	price := CleanPrice(rawPrice, x.cfg.Currency)
	if price == "" {
		return models.Snapshot{}, models.NewMonitorError(
			models.ErrCodeFieldMissing, "listing price has no numeric text", nil)
	}

	snap := models.Snapshot{
		ObservedAt: x.now(),
		Title:      title,
		Price:      price,
		Seller:     x.seller(page),
		Quantity:   x.quantity(page),
		Brand:      x.brand(page, label),
		OfferCount: x.offers(page),
	}

	// Carried for evidence archiving; never persisted.
	snap.RawHTML, _ = page.HTML()

	return snap, nil
}

// seller prefers the dedicated profile element over the free-text
// merchant line.
func (x *Extractor) seller(page engine.Page) string {
	sel := x.cfg.Selectors

	if txt, err := requiredText(page, sel.SellerProfile); err == nil {
		return txt
	}
	if txt, err := requiredText(page, sel.MerchantInfo); err == nil {
		if name, ok := ParseSellerLine(txt); ok {
			return name
		}
	}
	return models.Unknown
}

func (x *Extractor) quantity(page engine.Page) string {
	els, err := page.Elements(x.cfg.Selectors.QuantityOption)
	if err != nil {
		return models.Unknown
	}
	options := make([]string, 0, len(els))
	for _, el := range els {
		if txt, textErr := el.Text(); textErr == nil {
			options = append(options, txt)
		}
	}
	return MaxQuantity(options)
}

// brand reads the details-table row whose header cell names the brand,
// falling back to the label's leading capital run.
func (x *Extractor) brand(page engine.Page, label string) string {
	sel := x.cfg.Selectors

	if th, ok := page.FindWithText(sel.BrandHeader, sel.BrandHeaderText); ok {
		if td, err := th.Next(); err == nil {
			if txt, textErr := td.Text(); textErr == nil {
				if v := strings.TrimSpace(txt); v != "" {
					return strings.ToUpper(v)
				}
			}
		}
	}
	if caps, ok := LeadingCapsRun(label); ok {
		return caps
	}
	return models.FallbackBrand
}

// offers counts rendered offer elements; pages that only render the
// offers link get its text parsed instead. Neither present means no
// competing offers.
func (x *Extractor) offers(page engine.Page) int {
	sel := x.cfg.Selectors

	if els, err := page.Elements(sel.OfferItem); err == nil && len(els) > 0 {
		return len(els)
	}
	if links, err := page.Elements(sel.OffersLink); err == nil && len(links) > 0 {
		if txt, textErr := links[0].Text(); textErr == nil {
			if n, ok := CountFromLinkText(txt); ok {
				return n
			}
		}
	}
	return 0
}

// requiredText looks up the selector's first element and returns its
// trimmed text, erroring on absence or blankness.
func requiredText(page engine.Page, selector string) (string, error) {
	el, err := page.Element(selector)
	if err != nil {
		return "", err
	}
	txt, err := el.Text()
	if err != nil {
		return "", err
	}
	txt = strings.TrimSpace(txt)
	if txt == "" {
		return "", fmt.Errorf("element %q: empty text", selector)
	}
	return txt, nil
}

func (x *Extractor) pause(ctx context.Context) {
	select {
	case <-time.After(x.cfg.InterstitialPause):
	case <-ctx.Done():
	}
}
