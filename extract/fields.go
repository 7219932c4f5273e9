package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/use-agent/pricewatch/models"
)

// sellerMarker and sellerStop bound the merchant name inside a
// free-text merchant line like "Dispatched from X. Sold by Acme Retail."
const (
	sellerMarker = "Sold by"
	sellerStop   = "."
)

// quantitySaturation is the threshold at and above which the quantity
// menu stops being informative ("30+" means "at least a shelf full").
const quantitySaturation = 30

var (
	reLeadingCaps = regexp.MustCompile(`^[A-Z]+`)
	reFirstInt    = regexp.MustCompile(`\d+`)
)

// CleanPrice reduces a displayed price to its numeric text: the
// currency glyph, thousands separators and everything else that is not
// a digit or decimal point is dropped. "₹1,299.00" → "1299.00".
func CleanPrice(raw, currency string) string {
	s := strings.ReplaceAll(raw, currency, "")
	s = strings.ReplaceAll(s, ",", "")
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseSellerLine pulls the merchant name out of a free-text merchant
// line: the text between the "Sold by" marker and the next period.
// ok is false when the marker is absent or nothing follows it.
func ParseSellerLine(text string) (string, bool) {
	_, after, found := strings.Cut(text, sellerMarker)
	if !found {
		return "", false
	}
	name, _, _ := strings.Cut(after, sellerStop)
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	return name, true
}

// MaxQuantity reduces the quantity menu's option texts to the largest
// purely numeric entry. At or above the saturation threshold the exact
// number stops mattering and "30+" is reported; with no numeric
// options the page exposes no usable menu and "Unknown" is reported.
func MaxQuantity(options []string) string {
	max := -1
	for _, o := range options {
		n, err := strconv.Atoi(strings.TrimSpace(o))
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	if max < 0 {
		return models.Unknown
	}
	if max >= quantitySaturation {
		return strconv.Itoa(quantitySaturation) + "+"
	}
	return strconv.Itoa(max)
}

// LeadingCapsRun returns the run of capital letters an item label
// starts with ("SAMSUNG Galaxy M34" → "SAMSUNG"), the conventional spot
// for the brand in retail listing labels.
func LeadingCapsRun(label string) (string, bool) {
	m := reLeadingCaps.FindString(strings.TrimSpace(label))
	if m == "" {
		return "", false
	}
	return m, true
}

// CountFromLinkText parses the offer count out of an offers-link text
// such as "New (5) from ₹489" — the first integer in the text.
func CountFromLinkText(text string) (int, bool) {
	m := reFirstInt.FindString(text)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}
