// Package archive persists page evidence for listings that failed permanently
// or changed price. Each capture runs the Mozilla Readability algorithm over
// the rendered HTML (falling back to the raw document when extraction chokes),
// converts the result to Markdown, and writes it under
//
//	<dir>/<listing-slug>/<timestamp>-<trigger>.md
//
// so a human can later answer "what did the page actually say when the row
// went to Error" without re-fetching a listing that may have changed since.
package archive

import (
	"fmt"
	"log/slog"
	nurl "net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	readability "github.com/go-shiori/go-readability"

	"github.com/use-agent/pricewatch/config"
)

// Capture triggers. The trigger becomes part of the evidence filename so a
// directory listing alone tells the story of a listing.
const (
	TriggerFailure     = "failure"
	TriggerPriceChange = "price-change"
)

// minContentLength is the minimum TextContent length (in characters) for
// readability output to be considered valid. Below this threshold we assume
// the algorithm failed to locate the main content and archive the raw HTML.
const minContentLength = 50

// timestampLayout keeps evidence filenames sortable by capture time.
const timestampLayout = "20060102-150405"

var reSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Archiver writes evidence captures to a directory tree. The Markdown
// converter is created once and reused across all captures (goroutine-safe).
type Archiver struct {
	dir         string
	mdConverter *converter.Converter
	now         func() time.Time
}

// New prepares the evidence directory and the Markdown converter.
//
// Converter configuration:
//   - base plugin: strips script, style, iframe, noscript, head, meta, link,
//     input, textarea, HTML comments — none of it is evidence.
//   - commonmark plugin: standard Markdown rendering (headings, lists, links,
//     code blocks, emphasis, blockquotes, etc.).
//   - table plugin: product pages carry their facts in tables (detail grids,
//     offer listings); minimal cell padding keeps the files compact.
func New(cfg config.ArchiveConfig) (*Archiver, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("archive: directory not configured")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("archive: create %s: %w", cfg.Dir, err)
	}
	return &Archiver{
		dir: cfg.Dir,
		mdConverter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(
					table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
				),
			),
		),
		now: time.Now,
	}, nil
}

// Save captures one piece of evidence for a listing.
//
// Fallback behaviour (a capture must never be lost just because readability
// or the Markdown stage choked):
//   - If readability fails or extracts < 50 chars → convert the raw HTML.
//   - If Markdown conversion fails → write the HTML as-is with a .html
//     extension so the evidence survives in some form.
func (a *Archiver) Save(label, sourceURL, trigger, rawHTML string) error {
	article, extracted := extractContent(rawHTML, sourceURL)

	subdir := filepath.Join(a.dir, slug(label))
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		return fmt.Errorf("archive: create %s: %w", subdir, err)
	}

	captured := a.now()
	name := captured.Format(timestampLayout) + "-" + trigger

	markdown, err := a.mdConverter.ConvertString(article.Content, converter.WithDomain(sourceURL))
	if err != nil {
		slog.Warn("archive: markdown conversion failed, storing HTML",
			"listing", label, "error", err,
		)
		path := filepath.Join(subdir, name+".html")
		if werr := os.WriteFile(path, []byte(article.Content), 0o644); werr != nil {
			return fmt.Errorf("archive: write %s: %w", path, werr)
		}
		return nil
	}

	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "listing: %s\n", label)
	fmt.Fprintf(&b, "url: %s\n", sourceURL)
	fmt.Fprintf(&b, "trigger: %s\n", trigger)
	fmt.Fprintf(&b, "captured: %s\n", captured.Format(time.RFC3339))
	if extracted && article.Title != "" {
		fmt.Fprintf(&b, "title: %s\n", article.Title)
	}
	b.WriteString("---\n\n")
	b.WriteString(markdown)
	b.WriteString("\n")

	path := filepath.Join(subdir, name+".md")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("archive: write %s: %w", path, err)
	}

	slog.Debug("archive: evidence stored", "listing", label, "trigger", trigger, "path", path)
	return nil
}

// extractContent runs readability on rawHTML and reports whether extraction
// succeeded. On any failure the raw HTML is wrapped into an Article so the
// capture proceeds uniformly.
func extractContent(rawHTML, sourceURL string) (readability.Article, bool) {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		slog.Warn("archive: invalid source URL, storing raw HTML",
			"url", sourceURL, "error", err,
		)
		return rawArticle(rawHTML), false
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Warn("archive: readability failed, storing raw HTML",
			"url", sourceURL, "error", err,
		)
		return rawArticle(rawHTML), false
	}

	if len(strings.TrimSpace(article.TextContent)) < minContentLength {
		slog.Warn("archive: extracted content too short, storing raw HTML",
			"url", sourceURL, "length", len(article.TextContent),
		)
		return rawArticle(rawHTML), false
	}

	return article, true
}

func rawArticle(rawHTML string) readability.Article {
	return readability.Article{Content: rawHTML, TextContent: rawHTML}
}

// slug turns a listing label into a filesystem-safe directory name.
// "Pampers Pants, XL" → "pampers-pants-xl". Empty labels get "listing".
func slug(label string) string {
	s := reSlug.ReplaceAllString(strings.ToLower(label), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "listing"
	}
	return s
}
