package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/html"

	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/models"
)

// maxStaticBody caps how much of a listing the static engine will read.
const maxStaticBody = 10 * 1024 * 1024 // 10 MB

// StaticEngine fetches listings over plain HTTP with a Chrome TLS
// fingerprint and realizes the DOM without executing scripts. It is an
// order of magnitude cheaper than the browser, but retail sites often
// serve it a bot wall or an empty shell — Render fails loudly in those
// cases so the dispatcher can escalate.
type StaticEngine struct {
	client     *http.Client
	browserCfg config.BrowserConfig
	fetchCfg   config.FetchConfig

	// requiredSelector must match in the fetched DOM for the render to
	// count as complete. Typically the title selector: a listing page
	// without it is a shell or a wall, whatever the status code said.
	requiredSelector string
}

// NewStaticEngine builds the engine. requiredSelector may be empty to
// disable the completeness probe.
func NewStaticEngine(browserCfg config.BrowserConfig, fetchCfg config.FetchConfig, requiredSelector string) *StaticEngine {
	proxy := browserCfg.Proxy
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLSChrome(ctx, network, addr, proxy)
		},
	}
	if proxy != "" {
		if proxyURL, err := url.Parse(proxy); err == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return &StaticEngine{
		client:     &http.Client{Transport: transport},
		browserCfg: browserCfg,
		fetchCfg:   fetchCfg,

		requiredSelector: requiredSelector,
	}
}

func (e *StaticEngine) Name() string { return "static" }

func (e *StaticEngine) Render(ctx context.Context, targetURL string) (Page, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchCfg.StaticTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, models.NewMonitorError(models.ErrCodeNavigation, "static: build request", err)
	}
	req.Header.Set("User-Agent", e.browserCfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	req.Header.Set("Accept-Language", e.browserCfg.AcceptLanguage)
	req.Header.Set("Cache-Control", "no-cache")
	if u, parseErr := url.Parse(targetURL); parseErr == nil {
		req.Header.Set("Referer", "https://www.google.com/search?q="+url.QueryEscape(u.Hostname()))
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, models.Categorize(err, models.ErrCodeNavigation, "static: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, models.NewMonitorError(models.ErrCodeNavigation,
			fmt.Sprintf("static: HTTP %d for %s", resp.StatusCode, targetURL), nil)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, models.NewMonitorError(models.ErrCodeNavigation,
			fmt.Sprintf("static: non-HTML content type %q", ct), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStaticBody))
	if err != nil {
		return nil, models.Categorize(err, models.ErrCodeNavigation, "static: read body")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, models.NewMonitorError(models.ErrCodeNavigation, "static: parse HTML", err)
	}

	if reason := e.incomplete(doc, body); reason != "" {
		return nil, models.NewMonitorError(models.ErrCodeNavigation,
			"static: render incomplete ("+reason+")", nil)
	}

	return &staticPage{doc: doc}, nil
}

// incomplete reports why the fetched DOM cannot be extracted from, or
// "" when it looks usable. Scriptless fetches fail in recognizable
// shapes: a JS-required wall, a near-empty SPA shell, or a page simply
// missing the one element every real listing has.
func (e *StaticEngine) incomplete(doc *goquery.Document, body []byte) string {
	if e.requiredSelector != "" && doc.Find(e.requiredSelector).Length() == 0 {
		return fmt.Sprintf("no match for %q", e.requiredSelector)
	}
	if reNoscriptWall.Match(bytes.ToLower(body)) {
		return "noscript javascript wall"
	}
	if len(extractVisibleText(body)) < 200 {
		return "almost no visible text"
	}
	return ""
}

var reNoscriptWall = regexp.MustCompile(`<noscript[^>]*>[^<]*(enable|activate|turn on|requires?)\s+javascript`)

// extractVisibleText walks the token stream and collects text outside
// script/style/noscript, used by the shell heuristic.
func extractVisibleText(body []byte) string {
	var (
		sb   strings.Builder
		skip int
	)
	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(sb.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "noscript":
				skip++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "noscript":
				if skip > 0 {
					skip--
				}
			}
		case html.TextToken:
			if skip == 0 {
				sb.Write(bytes.TrimSpace(z.Text()))
			}
		}
	}
}

// dialTLSChrome establishes a TLS connection using a Chrome fingerprint
// via utls, optionally through a SOCKS5 proxy.
func dialTLSChrome(ctx context.Context, network, addr, proxy string) (net.Conn, error) {
	var rawConn net.Conn
	var err error

	dialer := &net.Dialer{}

	if proxy != "" {
		if proxyURL, parseErr := url.Parse(proxy); parseErr == nil &&
			(proxyURL.Scheme == "socks5" || proxyURL.Scheme == "socks5h") {
			socksConn, socksErr := dialer.DialContext(ctx, "tcp", proxyURL.Host)
			if socksErr != nil {
				return nil, fmt.Errorf("socks5 dial: %w", socksErr)
			}
			rawConn = socksConn
		}
	}
	if rawConn == nil {
		rawConn, err = dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls.UClient(rawConn, &tls.Config{
		ServerName: host,
	}, tls.HelloChrome_Auto)

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}

func (e *StaticEngine) Close() {
	e.client.CloseIdleConnections()
}
