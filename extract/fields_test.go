package extract

import (
	"testing"
)

func TestCleanPrice(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		currency string
		want     string
	}{
		{"plain", "₹499", "₹", "499"},
		{"thousands separator", "₹1,299.00", "₹", "1299.00"},
		{"whitespace and text", " ₹ 2,495 (incl. taxes) ", "₹", "2495."},
		{"no currency glyph", "1,049", "₹", "1049"},
		{"dollar config", "$12.99", "$", "12.99"},
		{"only text", "Currently unavailable", "₹", ""},
		{"empty", "", "₹", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanPrice(tt.raw, tt.currency)
			if got != tt.want {
				t.Errorf("CleanPrice(%q, %q) = %q, want %q", tt.raw, tt.currency, got, tt.want)
			}
		})
	}
}

func TestParseSellerLine(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"typical merchant line", "Ships from Amazon. Sold by Cloudtail India. Gift options available.", "Cloudtail India", true},
		{"seller at end without period", "Sold by RetailNet", "RetailNet", true},
		{"marker absent", "Fulfilled and dispatched by the marketplace", "", false},
		{"marker with nothing after", "Sold by ", "", false},
		{"marker followed by period", "Sold by .", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseSellerLine(tt.text)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseSellerLine(%q) = (%q, %v), want (%q, %v)", tt.text, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestMaxQuantity(t *testing.T) {
	tests := []struct {
		name    string
		options []string
		want    string
	}{
		{"saturates at threshold", []string{"5", "12", "30"}, "30+"},
		{"below threshold picks max", []string{"5", "12"}, "12"},
		{"above threshold still saturated", []string{"45"}, "30+"},
		{"single option", []string{"1"}, "1"},
		{"non-numeric ignored", []string{"1", "2", "3+", "see more"}, "2"},
		{"whitespace tolerated", []string{" 7 ", "3"}, "7"},
		{"no numeric options", []string{"a", "b"}, "Unknown"},
		{"empty menu", nil, "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaxQuantity(tt.options)
			if got != tt.want {
				t.Errorf("MaxQuantity(%v) = %q, want %q", tt.options, got, tt.want)
			}
		})
	}
}

func TestLeadingCapsRun(t *testing.T) {
	tests := []struct {
		name   string
		label  string
		want   string
		wantOK bool
	}{
		{"brand prefix", "SAMSUNG Galaxy M34 5G", "SAMSUNG", true},
		{"single letter run stops at lowercase", "Pampers XL 56", "P", true},
		{"leading space trimmed", "  HP Laptop", "HP", true},
		{"starts lowercase", "boAt Airdopes", "", false},
		{"starts with digit", "5Star Chocolate", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := LeadingCapsRun(tt.label)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("LeadingCapsRun(%q) = (%q, %v), want (%q, %v)", tt.label, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCountFromLinkText(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   int
		wantOK bool
	}{
		{"typical offers link", "New (5) from ₹489.00", 5, true},
		{"count first", "12 offers from ₹1,099", 12, true},
		{"no integer", "See all offers", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CountFromLinkText(tt.text)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("CountFromLinkText(%q) = (%d, %v), want (%d, %v)", tt.text, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
