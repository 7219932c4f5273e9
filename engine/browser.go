package engine

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/models"
)

// BrowserEngine renders listings in a real headless Chromium. One
// browser process serves the whole run; tabs are pooled and retired
// when their health degrades. Safe for concurrent use.
type BrowserEngine struct {
	browser     *rod.Browser
	pagePool    rod.Pool[rod.Page]
	health      sync.Map // *rod.Page -> *pageHealth
	browserCfg  config.BrowserConfig
	fetchCfg    config.FetchConfig
	activePages atomic.Int32
	startTime   time.Time
}

// pageHealth tracks how worn a pooled tab is. Long-lived Amazon tabs
// accumulate detached DOM and service-worker state, so tabs are retired
// after a use budget or repeated failures instead of living forever.
type pageHealth struct {
	uses int
	errs int
}

func (h *pageHealth) shouldRetire(cfg config.BrowserConfig) bool {
	return h.uses >= cfg.PageMaxUses || h.errs >= cfg.PageMaxErrors
}

// NewBrowserEngine launches the browser and initialises the page pool.
func NewBrowserEngine(browserCfg config.BrowserConfig, fetchCfg config.FetchConfig, poolSize int) (*BrowserEngine, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.Proxy != "" {
		l = l.Proxy(browserCfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("lang"), primaryLanguage(browserCfg.AcceptLanguage))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewMonitorError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewMonitorError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	pool := rod.NewPagePool(poolSize)
	slog.Info("page pool created", "maxPages", poolSize)

	return &BrowserEngine{
		browser:    browser,
		pagePool:   pool,
		browserCfg: browserCfg,
		fetchCfg:   fetchCfg,
		startTime:  time.Now(),
	}, nil
}

func (e *BrowserEngine) Name() string { return "browser" }

// Render navigates a pooled tab to the listing.
//
// Lifecycle (numbered steps match the inline comments):
//
//  1. Navigation deadline     – hard bound on open-through-stable
//  2. Acquire tab             – borrow from the pool, or create one with
//     stealth + identity already installed (new-document scripts only
//     apply to navigations after injection, so it happens at creation)
//  3. Referer header          – per-URL, looks like a Google search hop
//  4. Hijack mount            – block images/CSS/fonts/media + ad hosts
//  5. Context binding         – propagate the deadline to all Rod calls
//  6. Navigate                – triggers the page load
//  7. Wait                    – DOM stable, best-effort
//
// The returned page's Close navigates the ORIGINAL tab reference to
// about:blank (so cleanup succeeds even when the render context has
// expired) and either returns the tab to the pool or retires it.
func (e *BrowserEngine) Render(ctx context.Context, targetURL string) (Page, error) {
	// ── 1. Navigation deadline ───────────────────────────────────────
	navCtx, cancel := context.WithTimeout(ctx, e.fetchCfg.NavTimeout)
	defer cancel()

	// ── 2. Acquire tab from pool ─────────────────────────────────────
	e.activePages.Add(1)
	page, acquireErr := e.pagePool.Get(e.newTab)
	if acquireErr != nil {
		e.activePages.Add(-1)
		return nil, models.NewMonitorError(
			models.ErrCodeBrowserCrash,
			"failed to acquire page from pool",
			acquireErr,
		)
	}
	h := e.healthOf(page)
	h.uses++

	release := func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
			h.errs++
		}
		if h.shouldRetire(e.browserCfg) {
			slog.Debug("retiring worn tab", "uses", h.uses, "errs", h.errs)
			e.health.Delete(page)
			_ = page.Close()
			e.pagePool.Put(nil)
		} else {
			e.pagePool.Put(page)
		}
		e.activePages.Add(-1)
	}

	// ── 3. Per-URL Referer: arrive like a search click ───────────────
	headers := proto.NetworkHeaders{
		"Accept-Language": gson.New(e.browserCfg.AcceptLanguage),
	}
	if u, parseErr := url.Parse(targetURL); parseErr == nil {
		headers["Referer"] = gson.New("https://www.google.com/search?q=" + url.QueryEscape(u.Hostname()))
	}
	_ = proto.NetworkSetExtraHTTPHeaders{Headers: headers}.Call(page)

	// ── 4. Mount hijack router (before navigation) ───────────────────
	router := setupHijack(page, e.fetchCfg.BlockedResourceTypes, e.fetchCfg.BlockAds)

	// ── 5. Bind deadline to page ─────────────────────────────────────
	p := page.Context(navCtx)

	// ── 6. Navigate ──────────────────────────────────────────────────
	if navErr := p.Navigate(targetURL); navErr != nil {
		h.errs++
		if router != nil {
			_ = router.Stop()
		}
		release()
		return nil, models.Categorize(navErr, models.ErrCodeNavigation, "navigation to listing failed")
	}

	// ── 7. Wait for the DOM to settle ────────────────────────────────
	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"error", stableErr,
		)
	}

	return &browserPage{
		raw:          page,
		p:            page.Context(ctx),
		router:       router,
		health:       h,
		fieldTimeout: e.fetchCfg.FieldTimeout,
		release:      release,
	}, nil
}

// newTab creates a fresh tab with stealth and the session identity
// installed. Both persist for the tab's lifetime, so they are applied
// once here rather than on every render.
func (e *BrowserEngine) newTab() (*rod.Page, error) {
	page, err := e.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
	}
	_ = (proto.NetworkSetUserAgentOverride{
		UserAgent:      e.browserCfg.UserAgent,
		AcceptLanguage: e.browserCfg.AcceptLanguage,
	}).Call(page)
	e.health.Store(page, &pageHealth{})
	return page, nil
}

func (e *BrowserEngine) healthOf(page *rod.Page) *pageHealth {
	if v, ok := e.health.Load(page); ok {
		return v.(*pageHealth)
	}
	h := &pageHealth{}
	e.health.Store(page, h)
	return h
}

// Stats returns a snapshot of the pool's current state.
func (e *BrowserEngine) Stats() models.PoolStats {
	return models.PoolStats{
		MaxPages:    cap(e.pagePool),
		ActivePages: int(e.activePages.Load()),
	}
}

// Close drains the page pool and kills the browser process.
// Call this on graceful shutdown to prevent zombie Chrome processes.
func (e *BrowserEngine) Close() {
	slog.Info("browser engine shutting down: draining page pool")
	e.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	slog.Info("browser engine shutting down: closing browser")
	e.browser.MustClose()
	slog.Info("browser engine shutdown complete")
}

// primaryLanguage reduces an Accept-Language header to its first tag
// for Chromium's --lang flag ("en-US,en;q=0.9" → "en-US").
func primaryLanguage(acceptLanguage string) string {
	lang := acceptLanguage
	if i := strings.IndexAny(lang, ",;"); i >= 0 {
		lang = lang[:i]
	}
	if lang = strings.TrimSpace(lang); lang == "" {
		return "en-US"
	}
	return lang
}
