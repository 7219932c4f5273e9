package engine

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/pricewatch/config"
)

const richListing = `<html><body>
<span id="productTitle">JBL Flip 6 Portable Bluetooth Speaker</span>
<p>Bold JBL Original Pro Sound with exceptional clarity thanks to a racetrack-shaped
woofer and a separate tweeter. Twelve hours of playtime from a single charge, an IP67
waterproof and dustproof rating, and PartyBoost pairing for stereo sound. Available in
six colours with a fabric grille and rugged rubber housing built for travel.</p>
<table><tr><th>Brand</th><td>JBL</td></tr><tr><th>Colour</th><td>Blue</td></tr></table>
<select id="quantity"><option>1</option><option>2</option><option>3</option></select>
</body></html>`

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func TestStaticEngine_Incomplete(t *testing.T) {
	tests := []struct {
		name     string
		selector string
		html     string
		wantSub  string // "" means the page counts as complete
	}{
		{
			name:     "rich listing is complete",
			selector: "#productTitle",
			html:     richListing,
		},
		{
			name:     "missing required element",
			selector: "#productTitle",
			html:     strings.Replace(richListing, `id="productTitle"`, `id="other"`, 1),
			wantSub:  "no match",
		},
		{
			name:     "javascript wall",
			selector: "#productTitle",
			html: strings.Replace(richListing, "</body>",
				"<noscript>Please enable JavaScript to continue shopping</noscript></body>", 1),
			wantSub: "javascript wall",
		},
		{
			name:     "empty shell",
			selector: "#productTitle",
			html:     `<html><body><span id="productTitle">JBL Flip 6</span><div id="root"></div></body></html>`,
			wantSub:  "visible text",
		},
		{
			name:     "probe disabled skips selector check",
			selector: "",
			html:     strings.Replace(richListing, `id="productTitle"`, `id="other"`, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewStaticEngine(config.BrowserConfig{}, config.FetchConfig{}, tt.selector)
			defer e.Close()

			doc := parseDoc(t, tt.html)
			got := e.incomplete(doc, []byte(tt.html))
			if tt.wantSub == "" {
				if got != "" {
					t.Errorf("incomplete() = %q, want complete", got)
				}
				return
			}
			if !strings.Contains(got, tt.wantSub) {
				t.Errorf("incomplete() = %q, want reason containing %q", got, tt.wantSub)
			}
		})
	}
}

func TestExtractVisibleText(t *testing.T) {
	html := `<html><head><style>p { color: red }</style></head><body>
<p>Visible paragraph</p>
<script>var tracker = "hidden";</script>
<noscript>enable javascript</noscript>
<div>More text</div>
</body></html>`

	got := extractVisibleText([]byte(html))
	for _, want := range []string{"Visible paragraph", "More text"} {
		if !strings.Contains(got, want) {
			t.Errorf("extractVisibleText() missing %q", want)
		}
	}
	for _, banned := range []string{"tracker", "enable javascript", "color"} {
		if strings.Contains(got, banned) {
			t.Errorf("extractVisibleText() leaked %q", banned)
		}
	}
}

func TestStaticPage_Lookups(t *testing.T) {
	page := &staticPage{doc: parseDoc(t, richListing)}
	defer page.Close()

	el, err := page.Element("#productTitle")
	if err != nil {
		t.Fatalf("Element() error: %v", err)
	}
	txt, _ := el.Text()
	if !strings.Contains(txt, "JBL Flip 6") {
		t.Errorf("title text = %q", txt)
	}

	if _, err := page.Element("#missing"); err == nil {
		t.Error("expected error for absent selector")
	}

	options, err := page.Elements("#quantity option")
	if err != nil {
		t.Fatalf("Elements() error: %v", err)
	}
	if len(options) != 3 {
		t.Errorf("quantity options = %d, want 3", len(options))
	}
}

func TestStaticPage_FindWithTextAndNext(t *testing.T) {
	page := &staticPage{doc: parseDoc(t, richListing)}
	defer page.Close()

	th, ok := page.FindWithText("th", "Brand")
	if !ok {
		t.Fatal("brand header not found")
	}
	td, err := th.Next()
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	txt, _ := td.Text()
	if strings.TrimSpace(txt) != "JBL" {
		t.Errorf("brand cell = %q, want %q", txt, "JBL")
	}

	if _, ok := page.FindWithText("th", "Warranty"); ok {
		t.Error("found a header that does not exist")
	}
}
