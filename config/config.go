package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Browser BrowserConfig
	Fetch   FetchConfig
	Extract ExtractConfig
	Monitor MonitorConfig
	Store   StoreConfig
	Auth    AuthConfig
	Notify  NotifyConfig
	Archive ArchiveConfig
	History HistoryConfig
	Log     LogConfig
}

// ServerConfig controls the HTTP status server (watch mode only).
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"

	// RateRPS throttles API requests per identity (API key or client
	// IP). Zero disables API rate limiting.
	RateRPS float64 // default: 5

	// RateBurst is the per-identity burst size.
	RateBurst int // default: 10
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	// Sized to Monitor.Workers when left at zero.
	MaxPages int // default: 0 (follow worker count)

	// Proxy is the proxy URL for all browser traffic.
	Proxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// UserAgent is applied to every page before navigation.
	UserAgent string // default: desktop Chrome UA

	// AcceptLanguage is sent as the Accept-Language header and page locale.
	AcceptLanguage string // default: "en-US,en;q=0.9"

	// PageMaxUses retires a pooled page after this many fetches.
	PageMaxUses int // default: 40

	// PageMaxErrors retires a pooled page after this many failed fetches.
	PageMaxErrors int // default: 3
}

// FetchConfig controls how listing pages are fetched.
type FetchConfig struct {
	// Mode selects the engine: "auto" tries the static fetcher first and
	// escalates to the browser; "browser" and "static" force one engine.
	Mode string // default: "auto"

	// NavTimeout bounds navigation plus initial render of one page.
	NavTimeout time.Duration // default: 60s

	// FieldTimeout bounds each individual element lookup.
	FieldTimeout time.Duration // default: 5s

	// StaticTimeout is the deadline for one static (non-browser) fetch.
	StaticTimeout time.Duration // default: 10s

	// BlockedResourceTypes lists browser resource types to block.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockAds also blocks requests to known ad and tracking domains.
	BlockAds bool // default: true

	// MemoryTTL is how long a domain's winning engine is remembered.
	MemoryTTL time.Duration // default: 24h
}

// ExtractConfig controls field extraction from a rendered page.
type ExtractConfig struct {
	// Currency is the glyph stripped from prices and re-applied in rows.
	Currency string // default: "₹"

	// InterstitialPause is how long to wait after dismissing an
	// interstitial before touching the page again.
	InterstitialPause time.Duration // default: 2s

	Selectors SelectorConfig
}

// SelectorConfig is the CSS selector set driving extraction. Every
// selector is compiled at startup; a typo fails Load, not a cycle.
type SelectorConfig struct {
	InterstitialButton string // default: "button"
	InterstitialText   string // default: "Continue shopping"
	Title              string // default: "#productTitle"
	Price              string // default: "span.a-price > span.a-offscreen"
	SellerProfile      string // default: "#sellerProfileTriggerId"
	MerchantInfo       string // default: "#merchant-info"
	QuantityOption     string // default: "#quantity option"
	BrandHeader        string // default: "th"
	BrandHeaderText    string // default: "Brand"
	OfferItem          string // default: ".olpOffer"
	OffersLink         string // default: "#olp_feature_div a"
}

// MonitorConfig controls the refresh pipeline.
type MonitorConfig struct {
	// MaxAttempts is the per-item extraction budget per cycle.
	MaxAttempts int // default: 3

	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration // default: 5s

	// Workers is the number of items processed concurrently. 1 keeps
	// strict input order.
	Workers int // default: 1

	// RateRPS is the sustained page-fetch rate shared by all workers.
	RateRPS float64 // default: 0.5

	// RateBurst is the fetch burst size.
	RateBurst int // default: 1

	// CycleInterval is the pause between watch-mode cycles. Items are
	// still gated by their own intervals.
	CycleInterval time.Duration // default: 1m
}

// StoreConfig selects and configures the row store backend.
type StoreConfig struct {
	// Backend is one of "sqlite", "postgres", "csv".
	Backend string // default: "sqlite"

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string // default: "pricewatch.db"

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string

	// CSVInput is the tracked-items file for the csv backend.
	CSVInput string // default: "items.csv"

	// CSVOutput is the snapshots file for the csv backend.
	CSVOutput string // default: "snapshots.csv"
}

// AuthConfig controls API key authentication on the status server.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// NotifyConfig controls webhook notifications.
type NotifyConfig struct {
	// WebhookURL receives run.completed events; empty disables delivery.
	WebhookURL string

	// Secret signs payloads with HMAC-SHA256 when set.
	Secret string

	// Timeout bounds one delivery attempt.
	Timeout time.Duration // default: 10s
}

// ArchiveConfig controls evidence snapshots.
type ArchiveConfig struct {
	// Dir is the archive root; empty disables archiving.
	Dir string

	// OnChange archives the page when an item's price changes.
	OnChange bool // default: true

	// OnFailure archives the last fetched page when an item permanently fails.
	OnFailure bool // default: true
}

// HistoryConfig controls in-memory run retention for the status API.
type HistoryConfig struct {
	// MaxRuns is the number of past cycle summaries kept.
	MaxRuns int // default: 50
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane
// defaults. A .env file in the working directory is applied first,
// without overriding variables already set.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host:      envOr("PRICEWATCH_HOST", "0.0.0.0"),
			Port:      envIntOr("PRICEWATCH_PORT", 8080),
			Mode:      envOr("PRICEWATCH_MODE", "release"),
			RateRPS:   envFloatOr("PRICEWATCH_API_RATE_RPS", 5),
			RateBurst: envIntOr("PRICEWATCH_API_RATE_BURST", 10),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("PRICEWATCH_HEADLESS", true),
			MaxPages:       envIntOr("PRICEWATCH_MAX_PAGES", 0),
			Proxy:          os.Getenv("PRICEWATCH_PROXY"),
			NoSandbox:      envBoolOr("PRICEWATCH_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("PRICEWATCH_BROWSER_BIN"),
			UserAgent:      envOr("PRICEWATCH_USER_AGENT", DefaultUserAgent),
			AcceptLanguage: envOr("PRICEWATCH_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			PageMaxUses:    envIntOr("PRICEWATCH_PAGE_MAX_USES", 40),
			PageMaxErrors:  envIntOr("PRICEWATCH_PAGE_MAX_ERRORS", 3),
		},
		Fetch: FetchConfig{
			Mode:          envOr("PRICEWATCH_FETCH_MODE", "auto"),
			NavTimeout:    envDurationOr("PRICEWATCH_NAV_TIMEOUT", 60*time.Second),
			FieldTimeout:  envDurationOr("PRICEWATCH_FIELD_TIMEOUT", 5*time.Second),
			StaticTimeout: envDurationOr("PRICEWATCH_STATIC_TIMEOUT", 10*time.Second),
			BlockedResourceTypes: envSliceOr("PRICEWATCH_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
			BlockAds:  envBoolOr("PRICEWATCH_BLOCK_ADS", true),
			MemoryTTL: envDurationOr("PRICEWATCH_ENGINE_MEMORY_TTL", 24*time.Hour),
		},
		Extract: ExtractConfig{
			Currency:          envOr("PRICEWATCH_CURRENCY", "₹"),
			InterstitialPause: envDurationOr("PRICEWATCH_INTERSTITIAL_PAUSE", 2*time.Second),
			Selectors: SelectorConfig{
				InterstitialButton: envOr("PRICEWATCH_SEL_INTERSTITIAL", "button"),
				InterstitialText:   envOr("PRICEWATCH_SEL_INTERSTITIAL_TEXT", "Continue shopping"),
				Title:              envOr("PRICEWATCH_SEL_TITLE", "#productTitle"),
				Price:              envOr("PRICEWATCH_SEL_PRICE", "span.a-price > span.a-offscreen"),
				SellerProfile:      envOr("PRICEWATCH_SEL_SELLER", "#sellerProfileTriggerId"),
				MerchantInfo:       envOr("PRICEWATCH_SEL_MERCHANT", "#merchant-info"),
				QuantityOption:     envOr("PRICEWATCH_SEL_QUANTITY", "#quantity option"),
				BrandHeader:        envOr("PRICEWATCH_SEL_BRAND_HEADER", "th"),
				BrandHeaderText:    envOr("PRICEWATCH_SEL_BRAND_TEXT", "Brand"),
				OfferItem:          envOr("PRICEWATCH_SEL_OFFER_ITEM", ".olpOffer"),
				OffersLink:         envOr("PRICEWATCH_SEL_OFFERS_LINK", "#olp_feature_div a"),
			},
		},
		Monitor: MonitorConfig{
			MaxAttempts:   envIntOr("PRICEWATCH_MAX_ATTEMPTS", 3),
			RetryDelay:    envDurationOr("PRICEWATCH_RETRY_DELAY", 5*time.Second),
			Workers:       envIntOr("PRICEWATCH_WORKERS", 1),
			RateRPS:       envFloatOr("PRICEWATCH_RATE_RPS", 0.5),
			RateBurst:     envIntOr("PRICEWATCH_RATE_BURST", 1),
			CycleInterval: envDurationOr("PRICEWATCH_CYCLE_INTERVAL", time.Minute),
		},
		Store: StoreConfig{
			Backend:     envOr("PRICEWATCH_STORE", "sqlite"),
			SQLitePath:  envOr("PRICEWATCH_SQLITE_PATH", "pricewatch.db"),
			PostgresDSN: os.Getenv("PRICEWATCH_POSTGRES_DSN"),
			CSVInput:    envOr("PRICEWATCH_CSV_INPUT", "items.csv"),
			CSVOutput:   envOr("PRICEWATCH_CSV_OUTPUT", "snapshots.csv"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PRICEWATCH_AUTH_ENABLED", false),
			APIKeys: envSliceOr("PRICEWATCH_API_KEYS", nil),
		},
		Notify: NotifyConfig{
			WebhookURL: os.Getenv("PRICEWATCH_WEBHOOK_URL"),
			Secret:     os.Getenv("PRICEWATCH_WEBHOOK_SECRET"),
			Timeout:    envDurationOr("PRICEWATCH_WEBHOOK_TIMEOUT", 10*time.Second),
		},
		Archive: ArchiveConfig{
			Dir:       os.Getenv("PRICEWATCH_ARCHIVE_DIR"),
			OnChange:  envBoolOr("PRICEWATCH_ARCHIVE_ON_CHANGE", true),
			OnFailure: envBoolOr("PRICEWATCH_ARCHIVE_ON_FAILURE", true),
		},
		History: HistoryConfig{
			MaxRuns: envIntOr("PRICEWATCH_HISTORY_RUNS", 50),
		},
		Log: LogConfig{
			Level:  envOr("PRICEWATCH_LOG_LEVEL", "info"),
			Format: envOr("PRICEWATCH_LOG_FORMAT", "json"),
		},
	}
}

// DefaultUserAgent is a current desktop Chrome user agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Validate rejects configurations that would only fail mid-cycle:
// unknown enum values and selectors that do not compile.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite", "postgres", "csv":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == "postgres" && c.Store.PostgresDSN == "" {
		return fmt.Errorf("postgres backend requires PRICEWATCH_POSTGRES_DSN")
	}

	switch c.Fetch.Mode {
	case "auto", "browser", "static":
	default:
		return fmt.Errorf("unknown fetch mode %q", c.Fetch.Mode)
	}

	if c.Monitor.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.Monitor.MaxAttempts)
	}
	if c.Monitor.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Monitor.Workers)
	}

	sel := c.Extract.Selectors
	for name, s := range map[string]string{
		"interstitial":    sel.InterstitialButton,
		"title":           sel.Title,
		"price":           sel.Price,
		"seller profile":  sel.SellerProfile,
		"merchant info":   sel.MerchantInfo,
		"quantity option": sel.QuantityOption,
		"brand header":    sel.BrandHeader,
		"offer item":      sel.OfferItem,
		"offers link":     sel.OffersLink,
	} {
		if _, err := cascadia.Parse(s); err != nil {
			return fmt.Errorf("%s selector %q: %w", name, s, err)
		}
	}
	return nil
}

// PoolSize is the browser page pool capacity: the explicit MaxPages
// override, or the worker count.
func (c *Config) PoolSize() int {
	if c.Browser.MaxPages > 0 {
		return c.Browser.MaxPages
	}
	return c.Monitor.Workers
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
