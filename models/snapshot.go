package models

import (
	"fmt"
	"time"
)

// TimeLayout is the canonical observed-at format. The scheduler parses
// the same layout back, so writer and reader must never diverge.
const TimeLayout = "2006-01-02 15:04:05"

// Unknown is the placeholder for fields whose source element was absent.
const Unknown = "Unknown"

// FallbackBrand is the brand cell when neither the details table nor
// the label yields one.
const FallbackBrand = "BRAND"

// FallbackPrice is the numeric price text written on permanent failure,
// kept deliberately implausible so a human scanning the sheet spots it.
const FallbackPrice = "500"

// FallbackTitle marks a row whose refresh permanently failed.
const FallbackTitle = "Error"

// Output columns, 1-based to match row addressing (column A = 1).
const (
	ColObservedAt = 1
	ColLabel      = 2
	ColTitle      = 3
	ColPrice      = 4
	ColURL        = 5
	ColSellerQty  = 6
	ColBrand      = 7
	ColOffers     = 8

	// RowWidth is the number of cells in an output row.
	RowWidth = 8
)

// Snapshot is the result of one successful extraction pass over a
// listing page.
type Snapshot struct {
	// ObservedAt is when the extraction finished.
	ObservedAt time.Time `json:"observed_at"`

	// Title is the listing title. Required; extraction fails without it.
	Title string `json:"title"`

	// Price is the numeric price text with currency glyph and thousands
	// separators stripped, e.g. "1299.00". Required.
	Price string `json:"price"`

	// Seller is the merchant name, or "Unknown".
	Seller string `json:"seller"`

	// Quantity is the largest orderable quantity: "N", the saturated
	// marker "30+", or "Unknown" when the page exposes no quantity menu.
	Quantity string `json:"quantity"`

	// Brand is the upper-cased brand, falling back to the leading
	// capital-letter run of the item label, then "BRAND".
	Brand string `json:"brand"`

	// OfferCount is the number of competing offers; 0 when the page
	// shows none.
	OfferCount int `json:"offer_count"`

	// RawHTML is the rendered page source, carried for evidence
	// archiving only. Never persisted to the store.
	RawHTML string `json:"-"`
}

// Row is one flat output record, columns A..H.
type Row [RowWidth]string

// BuildRow flattens a snapshot into the item's output row. The currency
// glyph is re-applied for display; Snapshot.Price stays numeric.
func BuildRow(it TrackedItem, snap Snapshot, currency string) Row {
	return Row{
		snap.ObservedAt.Format(TimeLayout),
		it.Label,
		snap.Title,
		currency + snap.Price,
		it.URL,
		fmt.Sprintf("%s - %s", snap.Seller, snap.Quantity),
		snap.Brand,
		fmt.Sprintf("%d", snap.OfferCount),
	}
}

// FallbackRow is the deterministic placeholder written when every
// attempt at an item failed. It keeps the label and URL so the row
// stays identifiable, and a fresh timestamp so the scheduler does not
// hammer a dead listing on every cycle.
func FallbackRow(it TrackedItem, now time.Time, currency string) Row {
	return Row{
		now.Format(TimeLayout),
		it.Label,
		FallbackTitle,
		currency + FallbackPrice,
		it.URL,
		Unknown + " - " + Unknown,
		FallbackBrand,
		"0",
	}
}

// ObservedAt reports the row's timestamp cell parsed with TimeLayout.
func (r Row) ObservedAt() (time.Time, error) {
	return time.ParseInLocation(TimeLayout, r[ColObservedAt-1], time.Local)
}
