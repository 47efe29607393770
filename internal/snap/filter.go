package snap

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// FilterConfig carries the allow/deny rules applied to sub-resource requests.
type FilterConfig struct {
	// AllowExtensions admits requests whose path carries one of these suffixes
	// even when the resource kind alone would not qualify.
	AllowExtensions []string
	// BlockExtensions force-denies by path suffix.
	BlockExtensions []string
	// BlockPatterns force-denies any URL matching one of the expressions.
	BlockPatterns []*regexp.Regexp
	// BlockHosts force-denies by host; entries may be exact hosts or
	// "*.suffix" wildcards.
	BlockHosts []string
}

// FilterPolicy decides per sub-resource request whether it may proceed.
// Decisions are pure per (URL, kind, config); the policy also feeds the shared
// request counters, which are safe under concurrent pages.
type FilterPolicy struct {
	allowExt   map[string]struct{}
	blockExt   map[string]struct{}
	patterns   []*regexp.Regexp
	blockHosts *hostBlocklist
}

// Resource kinds needed to produce final markup; everything else must earn
// admission through the extension allow-list.
var allowKinds = map[ResourceKind]struct{}{
	ResourceDocument:   {},
	ResourceStylesheet: {},
	ResourceScript:     {},
	ResourceXHR:        {},
	ResourceFetch:      {},
}

// NewFilterPolicy builds a policy from configuration. Missing allow-extensions
// default to .js and .css.
func NewFilterPolicy(cfg FilterConfig) *FilterPolicy {
	allow := cfg.AllowExtensions
	if len(allow) == 0 {
		allow = []string{".js", ".css"}
	}
	return &FilterPolicy{
		allowExt:   extensionSet(allow),
		blockExt:   extensionSet(cfg.BlockExtensions),
		patterns:   cfg.BlockPatterns,
		blockHosts: newHostBlocklist(cfg.BlockHosts),
	}
}

// Decide returns true when the request may proceed. Block rules win over the
// allow-set unconditionally.
func (p *FilterPolicy) Decide(rawURL string, kind ResourceKind) bool {
	RequestsTotal.Inc()
	allowed := p.allowed(rawURL, kind)
	if !allowed {
		RequestsBlocked.Inc()
	}
	return allowed
}

func (p *FilterPolicy) allowed(rawURL string, kind ResourceKind) bool {
	for _, re := range p.patterns {
		if re.MatchString(rawURL) {
			return false
		}
	}

	ext := ""
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		ext = strings.ToLower(path.Ext(u.Path))
		host = u.Host
	}
	if _, blocked := p.blockExt[ext]; blocked {
		return false
	}
	if p.blockHosts.IsBlocked(host) {
		return false
	}

	if _, ok := allowKinds[kind]; ok {
		return true
	}
	_, ok := p.allowExt[ext]
	return ok
}

func extensionSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, raw := range exts {
		ext := strings.ToLower(strings.TrimSpace(raw))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}

// hostBlocklist stores exact hosts and suffix wildcards derived from
// configuration.
type hostBlocklist struct {
	exact    map[string]struct{}
	suffixes []string
}

func newHostBlocklist(patterns []string) *hostBlocklist {
	matcher := &hostBlocklist{
		exact: make(map[string]struct{}),
	}
	for _, raw := range patterns {
		value := strings.TrimSpace(strings.ToLower(raw))
		if value == "" {
			continue
		}
		switch {
		case strings.HasPrefix(value, "*."):
			suffix := strings.TrimPrefix(value, "*.")
			if suffix != "" {
				matcher.addSuffix(suffix)
			}
		case strings.HasPrefix(value, "."):
			suffix := strings.TrimPrefix(value, ".")
			if suffix != "" {
				matcher.addSuffix(suffix)
			}
		default:
			matcher.exact[value] = struct{}{}
		}
	}
	if len(matcher.exact) == 0 && len(matcher.suffixes) == 0 {
		return nil
	}
	return matcher
}

func (b *hostBlocklist) addSuffix(suffix string) {
	for _, existing := range b.suffixes {
		if existing == suffix {
			return
		}
	}
	b.suffixes = append(b.suffixes, suffix)
}

func (b *hostBlocklist) IsBlocked(host string) bool {
	if b == nil {
		return false
	}
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" {
		return false
	}
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	if _, exact := b.exact[host]; exact {
		return true
	}
	for _, suffix := range b.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}
