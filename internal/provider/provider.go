// Package provider resolves the ordered page identifier list for a run,
// either from an explicit configured list or from a sitemap document.
package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// ListProvider serves an explicit identifier list. Root-relative identifiers
// resolve against the configured base URL; duplicates collapse to their first
// occurrence so the orchestrator sees each page once.
type ListProvider struct {
	baseURL *url.URL
	pages   []string
}

// NewListProvider validates the base URL up front. Base may be empty when
// every identifier is already absolute.
func NewListProvider(base string, pages []string) (*ListProvider, error) {
	var baseURL *url.URL
	if base != "" {
		parsed, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse base url %q: %w", base, err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("base url %q must be absolute", base)
		}
		baseURL = parsed
	}
	return &ListProvider{baseURL: baseURL, pages: pages}, nil
}

// Pages resolves, normalizes, and deduplicates the configured identifiers,
// preserving input order.
func (p *ListProvider) Pages(_ context.Context) ([]string, error) {
	seen := make(map[string]struct{}, len(p.pages))
	out := make([]string, 0, len(p.pages))
	for _, raw := range p.pages {
		resolved, err := p.resolve(raw)
		if err != nil {
			return nil, err
		}
		normalized, err := Normalize(resolved)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out, nil
}

func (p *ListProvider) resolve(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("empty page identifier")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse identifier %q: %w", raw, err)
	}
	if u.IsAbs() {
		return trimmed, nil
	}
	if p.baseURL == nil {
		return "", fmt.Errorf("relative identifier %q requires a base url", raw)
	}
	return p.baseURL.ResolveReference(u).String(), nil
}

// Normalize standardizes a URL to avoid duplicates: lowercases the scheme and
// host, removes default ports and fragments, and sorts query parameters.
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""

	q := u.Query()
	u.RawQuery = q.Encode()

	return u.String(), nil
}
