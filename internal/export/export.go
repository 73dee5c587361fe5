// Package export serializes the live page for download.
package export

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Format selects the document encoding.
type Format string

const (
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts "html", "markdown" or "md".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "html":
		return FormatHTML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// Extension returns the filename extension without the dot.
func (f Format) Extension() string {
	if f == FormatMarkdown {
		return "md"
	}
	return "html"
}

// Page supplies the document to export.
type Page interface {
	GetDOMSnapshot(ctx context.Context) (*html.Node, error)
	GetCurrentURL(ctx context.Context) (string, error)
}

// Document is an exported page.
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Exporter renders the current page.
type Exporter struct {
	page     Page
	sanitize bool
	md       *converter.Converter
	policy   *bluemonday.Policy
	logger   *zap.Logger
	now      func() time.Time
}

// New creates an Exporter. When sanitize is set, scripts, handlers and other
// active content are stripped before encoding.
func New(page Page, sanitize bool, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{
		page:     page,
		sanitize: sanitize,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		policy: bluemonday.UGCPolicy(),
		logger: logger.Named("export"),
		now:    time.Now,
	}
}

// Export serializes the current document in format.
func (e *Exporter) Export(ctx context.Context, format Format) (Document, error) {
	doc, err := e.page.GetDOMSnapshot(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read page: %w", err)
	}
	pageURL, err := e.page.GetCurrentURL(ctx)
	if err != nil {
		e.logger.Debug("Could not read page URL.", zap.Error(err))
	}

	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n")
	if err := html.Render(&buf, documentElement(doc)); err != nil {
		return Document{}, fmt.Errorf("failed to render page: %w", err)
	}
	body := buf.Bytes()
	if e.sanitize {
		body = e.policy.SanitizeBytes(body)
	}

	out := Document{Filename: Filename(pageURL, e.now(), format)}
	switch format {
	case FormatMarkdown:
		md, err := e.md.ConvertString(string(body), converter.WithDomain(pageURL))
		if err != nil {
			return Document{}, fmt.Errorf("failed to convert page to markdown: %w", err)
		}
		out.ContentType = "text/markdown; charset=utf-8"
		out.Body = []byte(md)
	default:
		out.ContentType = "text/html; charset=utf-8"
		out.Body = body
	}
	e.logger.Info("Exported page.", zap.String("filename", out.Filename), zap.Int("bytes", len(out.Body)))
	return out, nil
}

// Save exports and writes the document into dir, returning the written path.
func (e *Exporter) Save(ctx context.Context, dir string, format Format) (string, error) {
	d, err := e.Export(ctx, format)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(dir, d.Filename)
	if err := os.WriteFile(path, d.Body, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// Filename is {hostname}-{YYYY-MM-DD}.{ext}, using "page" when the URL has no
// host. The date is in UTC.
func Filename(pageURL string, now time.Time, format Format) string {
	host := "page"
	if u, err := url.Parse(pageURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	return fmt.Sprintf("%s-%s.%s", host, now.UTC().Format("2006-01-02"), format.Extension())
}

// documentElement returns the <html> element, or doc itself when absent.
func documentElement(doc *html.Node) *html.Node {
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "html" {
			return c
		}
	}
	return doc
}
