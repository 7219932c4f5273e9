package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/engine"
	"github.com/use-agent/pricewatch/models"
)

// fakeElement implements engine.Element over canned values.
type fakeElement struct {
	text    string
	next    *fakeElement
	clicked *int
}

func (e *fakeElement) Text() (string, error) { return e.text, nil }

func (e *fakeElement) Click() error {
	if e.clicked != nil {
		*e.clicked++
	}
	return nil
}

func (e *fakeElement) Next() (engine.Element, error) {
	if e.next == nil {
		return nil, errors.New("no next sibling")
	}
	return e.next, nil
}

// fakePage implements engine.Page over a selector → elements map.
type fakePage struct {
	els  map[string][]*fakeElement
	html string
}

func (p *fakePage) Element(selector string) (engine.Element, error) {
	matches := p.els[selector]
	if len(matches) == 0 {
		return nil, fmt.Errorf("element %q: not found", selector)
	}
	return matches[0], nil
}

func (p *fakePage) FindWithText(selector, substr string) (engine.Element, bool) {
	for _, el := range p.els[selector] {
		if strings.Contains(el.text, substr) {
			return el, true
		}
	}
	return nil, false
}

func (p *fakePage) Elements(selector string) ([]engine.Element, error) {
	matches := p.els[selector]
	out := make([]engine.Element, len(matches))
	for i, el := range matches {
		out[i] = el
	}
	return out, nil
}

func (p *fakePage) HTML() (string, error) { return p.html, nil }

func (p *fakePage) Close() {}

func testConfig() config.ExtractConfig {
	return config.ExtractConfig{
		Currency:          "₹",
		InterstitialPause: time.Millisecond,
		Selectors: config.SelectorConfig{
			InterstitialButton: "button",
			InterstitialText:   "Continue shopping",
			Title:              "#productTitle",
			Price:              "span.a-price > span.a-offscreen",
			SellerProfile:      "#sellerProfileTriggerId",
			MerchantInfo:       "#merchant-info",
			QuantityOption:     "#quantity option",
			BrandHeader:        "th",
			BrandHeaderText:    "Brand",
			OfferItem:          ".olpOffer",
			OffersLink:         "#olp_feature_div a",
		},
	}
}

func TestExtract_FullListing(t *testing.T) {
	cfg := testConfig()
	page := &fakePage{
		els: map[string][]*fakeElement{
			cfg.Selectors.Title:         {{text: "  Samsung Galaxy M34 5G (Midnight Blue)  "}},
			cfg.Selectors.Price:         {{text: "₹1,299.00"}},
			cfg.Selectors.SellerProfile: {{text: "RetailNet"}},
			cfg.Selectors.QuantityOption: {
				{text: "1"}, {text: "2"}, {text: "3"},
			},
			cfg.Selectors.BrandHeader: {
				{text: "Colour"},
				{text: "Brand", next: &fakeElement{text: "Samsung"}},
			},
			cfg.Selectors.OfferItem: {{text: "offer A"}, {text: "offer B"}},
		},
		html: "<html>listing</html>",
	}

	x := New(cfg)
	observed := time.Date(2025, 3, 14, 9, 30, 0, 0, time.Local)
	x.now = func() time.Time { return observed }

	snap, err := x.Extract(context.Background(), page, "Samsung Galaxy M34 5G")
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	if snap.Title != "Samsung Galaxy M34 5G (Midnight Blue)" {
		t.Errorf("Title = %q", snap.Title)
	}
	if snap.Price != "1299.00" {
		t.Errorf("Price = %q, want %q", snap.Price, "1299.00")
	}
	if snap.Seller != "RetailNet" {
		t.Errorf("Seller = %q, want %q", snap.Seller, "RetailNet")
	}
	if snap.Quantity != "3" {
		t.Errorf("Quantity = %q, want %q", snap.Quantity, "3")
	}
	if snap.Brand != "SAMSUNG" {
		t.Errorf("Brand = %q, want %q", snap.Brand, "SAMSUNG")
	}
	if snap.OfferCount != 2 {
		t.Errorf("OfferCount = %d, want 2", snap.OfferCount)
	}
	if !snap.ObservedAt.Equal(observed) {
		t.Errorf("ObservedAt = %v, want %v", snap.ObservedAt, observed)
	}
	if snap.RawHTML != "<html>listing</html>" {
		t.Errorf("RawHTML = %q", snap.RawHTML)
	}
}

func TestExtract_TitleMissing(t *testing.T) {
	cfg := testConfig()
	page := &fakePage{
		els: map[string][]*fakeElement{
			cfg.Selectors.Price: {{text: "₹499"}},
		},
	}

	_, err := New(cfg).Extract(context.Background(), page, "Some Item")
	if err == nil {
		t.Fatal("expected error when title is missing")
	}
	if code := models.CodeOf(err); code != models.ErrCodeFieldMissing {
		t.Errorf("error code = %q, want %q", code, models.ErrCodeFieldMissing)
	}
}

func TestExtract_PriceNotNumeric(t *testing.T) {
	cfg := testConfig()
	page := &fakePage{
		els: map[string][]*fakeElement{
			cfg.Selectors.Title: {{text: "Some Item"}},
			cfg.Selectors.Price: {{text: "Currently unavailable"}},
		},
	}

	_, err := New(cfg).Extract(context.Background(), page, "Some Item")
	if err == nil {
		t.Fatal("expected error when price has no numeric text")
	}
	if code := models.CodeOf(err); code != models.ErrCodeFieldMissing {
		t.Errorf("error code = %q, want %q", code, models.ErrCodeFieldMissing)
	}
}

func TestExtract_SellerFromMerchantLine(t *testing.T) {
	cfg := testConfig()
	page := &fakePage{
		els: map[string][]*fakeElement{
			cfg.Selectors.Title:        {{text: "Some Item"}},
			cfg.Selectors.Price:        {{text: "₹499"}},
			cfg.Selectors.MerchantInfo: {{text: "Ships from warehouse. Sold by Cloudtail India. Gift options available."}},
		},
	}

	snap, err := New(cfg).Extract(context.Background(), page, "Some Item")
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if snap.Seller != "Cloudtail India" {
		t.Errorf("Seller = %q, want %q", snap.Seller, "Cloudtail India")
	}
}

func TestExtract_DegradedFields(t *testing.T) {
	// Only title and price present: everything else must fall back
	// without failing the attempt.
	cfg := testConfig()
	page := &fakePage{
		els: map[string][]*fakeElement{
			cfg.Selectors.Title: {{text: "boAt Airdopes 141"}},
			cfg.Selectors.Price: {{text: "₹1,049"}},
		},
	}

	snap, err := New(cfg).Extract(context.Background(), page, "boAt Airdopes 141")
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if snap.Seller != models.Unknown {
		t.Errorf("Seller = %q, want %q", snap.Seller, models.Unknown)
	}
	if snap.Quantity != models.Unknown {
		t.Errorf("Quantity = %q, want %q", snap.Quantity, models.Unknown)
	}
	// Label starts lowercase, so even the label fallback fails.
	if snap.Brand != models.FallbackBrand {
		t.Errorf("Brand = %q, want %q", snap.Brand, models.FallbackBrand)
	}
	if snap.OfferCount != 0 {
		t.Errorf("OfferCount = %d, want 0", snap.OfferCount)
	}
}

func TestExtract_BrandFromLabel(t *testing.T) {
	cfg := testConfig()
	page := &fakePage{
		els: map[string][]*fakeElement{
			cfg.Selectors.Title: {{text: "HP Pavilion 15"}},
			cfg.Selectors.Price: {{text: "₹58,990"}},
		},
	}

	snap, err := New(cfg).Extract(context.Background(), page, "HP Pavilion 15")
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if snap.Brand != "HP" {
		t.Errorf("Brand = %q, want %q", snap.Brand, "HP")
	}
}

func TestExtract_InterstitialDismissed(t *testing.T) {
	cfg := testConfig()
	clicks := 0
	page := &fakePage{
		els: map[string][]*fakeElement{
			cfg.Selectors.InterstitialButton: {
				{text: "Go to cart"},
				{text: "Continue shopping", clicked: &clicks},
			},
			cfg.Selectors.Title: {{text: "Some Item"}},
			cfg.Selectors.Price: {{text: "₹499"}},
		},
	}

	if _, err := New(cfg).Extract(context.Background(), page, "Some Item"); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if clicks != 1 {
		t.Errorf("interstitial clicked %d times, want 1", clicks)
	}
}

func TestExtract_OffersFromLinkText(t *testing.T) {
	cfg := testConfig()
	page := &fakePage{
		els: map[string][]*fakeElement{
			cfg.Selectors.Title:      {{text: "Some Item"}},
			cfg.Selectors.Price:      {{text: "₹499"}},
			cfg.Selectors.OffersLink: {{text: "New (4) from ₹489.00"}},
		},
	}

	snap, err := New(cfg).Extract(context.Background(), page, "Some Item")
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if snap.OfferCount != 4 {
		t.Errorf("OfferCount = %d, want 4", snap.OfferCount)
	}
}

func TestExtract_QuantitySaturation(t *testing.T) {
	cfg := testConfig()
	page := &fakePage{
		els: map[string][]*fakeElement{
			cfg.Selectors.Title: {{text: "Some Item"}},
			cfg.Selectors.Price: {{text: "₹499"}},
			cfg.Selectors.QuantityOption: {
				{text: "5"}, {text: "12"}, {text: "30"},
			},
		},
	}

	snap, err := New(cfg).Extract(context.Background(), page, "Some Item")
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if snap.Quantity != "30+" {
		t.Errorf("Quantity = %q, want %q", snap.Quantity, "30+")
	}
}
