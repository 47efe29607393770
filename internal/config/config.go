// Package config loads and validates run configuration via Viper.
package config

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every knob for one batch run. It is resolved once at start
// and passed by reference; no component reads the environment afterwards.
type Config struct {
	Provider ProviderConfig `mapstructure:"provider"`
	Render   RenderConfig   `mapstructure:"render"`
	Filter   FilterConfig   `mapstructure:"filter"`
	Output   OutputConfig   `mapstructure:"output"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ProviderConfig selects the page identifier source.
type ProviderConfig struct {
	// SitemapURL discovers pages from a sitemap tree when set.
	SitemapURL string `mapstructure:"sitemap_url"`
	// BaseURL resolves root-relative identifiers in Pages.
	BaseURL string `mapstructure:"base_url"`
	// Pages is the explicit identifier list; it wins over SitemapURL.
	Pages []string `mapstructure:"pages"`
}

// RenderConfig governs the orchestrator and the browser engine.
type RenderConfig struct {
	Concurrency    int               `mapstructure:"concurrency"`
	MaxPages       int               `mapstructure:"max_pages"`
	TimeoutSeconds int               `mapstructure:"timeout_seconds"`
	WaitSelector   string            `mapstructure:"wait_selector"`
	ExtraDelayMs   int               `mapstructure:"extra_delay_ms"`
	UserAgent      string            `mapstructure:"user_agent"`
	Headers        map[string]string `mapstructure:"headers"`
	HostQPS        float64           `mapstructure:"host_qps"`
}

// FilterConfig carries the sub-resource allow/deny rules.
type FilterConfig struct {
	BlockPatterns   []string `mapstructure:"block_patterns"`
	BlockHosts      []string `mapstructure:"block_hosts"`
	BlockExtensions []string `mapstructure:"block_extensions"`
	AllowExtensions []string `mapstructure:"allow_extensions"`
}

// OutputConfig sets the output tree layout and transforms.
type OutputConfig struct {
	Root         string `mapstructure:"root"`
	Subfolder    string `mapstructure:"subfolder"`
	Compress     bool   `mapstructure:"compress"`
	InlineCSS    bool   `mapstructure:"inline_css"`
	ScriptHashes bool   `mapstructure:"script_hashes"`
}

// ServerConfig controls the optional status HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SNAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// setDefaults registers every key. AutomaticEnv only resolves keys viper
// already knows about, so keys without a meaningful default still get their
// zero value registered; otherwise the env-only path could never set them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("provider.sitemap_url", "")
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.pages", []string{})
	v.SetDefault("render.concurrency", 4)
	v.SetDefault("render.max_pages", 0)
	v.SetDefault("render.timeout_seconds", 45)
	v.SetDefault("render.wait_selector", "")
	v.SetDefault("render.extra_delay_ms", 0)
	v.SetDefault("render.user_agent", "staticsnap/0.1")
	v.SetDefault("render.headers", map[string]string{})
	v.SetDefault("render.host_qps", 0.0)
	v.SetDefault("filter.block_patterns", []string{})
	v.SetDefault("filter.block_hosts", []string{})
	v.SetDefault("filter.block_extensions", []string{})
	v.SetDefault("filter.allow_extensions", []string{})
	v.SetDefault("output.root", "rendered")
	v.SetDefault("output.subfolder", "")
	v.SetDefault("output.compress", false)
	v.SetDefault("output.inline_css", false)
	v.SetDefault("output.script_hashes", false)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 9090)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Render.Concurrency <= 0 {
		return fmt.Errorf("render.concurrency must be > 0")
	}
	if c.Render.TimeoutSeconds <= 0 {
		return fmt.Errorf("render.timeout_seconds must be > 0")
	}
	if c.Output.Root == "" {
		return fmt.Errorf("output.root must be set")
	}
	if len(c.Provider.Pages) == 0 && c.Provider.SitemapURL == "" {
		return fmt.Errorf("either provider.pages or provider.sitemap_url must be set")
	}
	if _, err := c.Filter.CompilePatterns(); err != nil {
		return err
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the server is enabled")
	}
	return nil
}

// CompilePatterns compiles the block expressions once for the filter policy.
func (f FilterConfig) CompilePatterns() ([]*regexp.Regexp, error) {
	patterns := make([]*regexp.Regexp, 0, len(f.BlockPatterns))
	for _, raw := range f.BlockPatterns {
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("compile filter.block_patterns entry %q: %w", raw, err)
		}
		patterns = append(patterns, re)
	}
	return patterns, nil
}

// NavigationTimeout converts the configured seconds into a duration.
func (r RenderConfig) NavigationTimeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// ExtraDelay converts the configured milliseconds into a duration.
func (r RenderConfig) ExtraDelay() time.Duration {
	return time.Duration(r.ExtraDelayMs) * time.Millisecond
}

// HTTPHeaders converts the configured header map into http.Header form.
func (r RenderConfig) HTTPHeaders() http.Header {
	if len(r.Headers) == 0 {
		return nil
	}
	headers := http.Header{}
	for key, value := range r.Headers {
		headers.Set(key, value)
	}
	return headers
}
