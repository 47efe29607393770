package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// SitemapProvider discovers page identifiers by walking a sitemap document,
// following nested sitemap-index entries.
type SitemapProvider struct {
	sitemapURL string
	userAgent  string
	timeout    time.Duration
	logger     *zap.Logger
}

// NewSitemapProvider points the provider at a sitemap URL.
func NewSitemapProvider(sitemapURL, userAgent string, timeout time.Duration, logger *zap.Logger) (*SitemapProvider, error) {
	if sitemapURL == "" {
		return nil, fmt.Errorf("sitemap url is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SitemapProvider{
		sitemapURL: sitemapURL,
		userAgent:  userAgent,
		timeout:    timeout,
		logger:     logger,
	}, nil
}

// Pages fetches the sitemap tree and returns its page URLs in document order,
// deduplicated and normalized.
func (p *SitemapProvider) Pages(ctx context.Context) ([]string, error) {
	collector := colly.NewCollector(colly.Async(false))
	if p.userAgent != "" {
		collector.UserAgent = p.userAgent
	}
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(p.timeout)

	var (
		pages    []string
		seen     = make(map[string]struct{})
		fetchErr error
	)
	collector.OnXML("//urlset/url/loc", func(e *colly.XMLElement) {
		normalized, err := Normalize(e.Text)
		if err != nil {
			p.logger.Warn("skipping malformed sitemap entry", zap.String("loc", e.Text), zap.Error(err))
			return
		}
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}
		pages = append(pages, normalized)
	})
	collector.OnXML("//sitemapindex/sitemap/loc", func(e *colly.XMLElement) {
		if err := e.Request.Visit(e.Text); err != nil {
			p.logger.Warn("nested sitemap visit failed", zap.String("loc", e.Text), zap.Error(err))
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		if fetchErr == nil {
			fetchErr = err
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(p.sitemapURL)
	}()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("sitemap fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("visit sitemap %s: %w", p.sitemapURL, err)
		}
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("fetch sitemap %s: %w", p.sitemapURL, fetchErr)
	}
	return pages, nil
}
