package output

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// maxStylesheetBytes bounds a single fetched stylesheet.
const maxStylesheetBytes = 4 << 20

// CSSInliner resolves linked stylesheets and folds their rules into the
// markup as <style> elements, so the written page needs no extra round trips.
type CSSInliner struct {
	client *retryablehttp.Client
	logger *zap.Logger
}

// NewCSSInliner builds an inliner with a retrying HTTP client.
func NewCSSInliner(logger *zap.Logger) *CSSInliner {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = 15 * time.Second
	client.Logger = nil
	return &CSSInliner{
		client: client,
		logger: logger,
	}
}

// Inline replaces each <link rel="stylesheet"> with a <style> element carrying
// the fetched rules. The media attribute transfers to the style element so
// media-query scoping survives. A stylesheet that cannot be fetched is left
// linked rather than dropped.
func (i *CSSInliner) Inline(markup []byte, pageURL string) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url %q: %w", pageURL, err)
	}

	doc.Find(`link[rel="stylesheet"]`).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			i.logger.Warn("skipping malformed stylesheet href", zap.String("href", href), zap.Error(err))
			return
		}
		rules, err := i.fetch(base.ResolveReference(ref).String())
		if err != nil {
			i.logger.Warn("stylesheet fetch failed, leaving link in place",
				zap.String("href", href),
				zap.Error(err),
			)
			return
		}
		sel.AfterHtml("<style></style>")
		style := sel.Next()
		if media, ok := sel.Attr("media"); ok && media != "" {
			style.SetAttr("media", media)
		}
		style.SetText(sanitizeCSS(string(rules)))
		sel.Remove()
	})

	html, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("serialize markup: %w", err)
	}
	return []byte(html), nil
}

// sanitizeCSS neutralizes embedded close tags so the style element cannot be
// terminated early during serialization or a later re-parse. "\/" is a valid
// CSS escape for "/", so string values keep their meaning.
func sanitizeCSS(rules string) string {
	return strings.ReplaceAll(rules, "</", "<\\/")
}

func (i *CSSInliner) fetch(styleURL string) ([]byte, error) {
	resp, err := i.client.Get(styleURL)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", styleURL, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: status %d", styleURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStylesheetBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", styleURL, err)
	}
	return body, nil
}
