// Package renderer drives headless Chrome via chromedp to produce the settled
// DOM for one page per isolated tab context.
package renderer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/staticsnap/staticsnap/internal/snap"
)

// Config controls the behavior of the chromedp engine.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
	// HostQPS caps navigations per host; 0 disables pacing.
	HostQPS float64
}

// Engine implements snap.Renderer using a single shared browser process and
// one tab context per task. The shared process keeps the HTTP cache warm
// across tasks, which is what the orchestrator's warm-up barrier exploits.
type Engine struct {
	cfg             Config
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	logger          *zap.Logger
	hostLimiters    sync.Map
}

// New launches the browser process and verifies it responds.
func New(cfg Config, logger *zap.Logger) (*Engine, error) {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("%w: browser warmup: %v", snap.ErrEngineFatal, err)
	}

	return &Engine{
		cfg:             cfg,
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (e *Engine) Close(_ context.Context) error {
	if e == nil {
		return nil
	}
	e.browserCancel()
	e.allocatorCancel()
	return nil
}

// Render navigates one page in a fresh tab, intercepting every sub-resource
// request through the filter policy, and extracts the settled outer HTML.
// Per-page failures live in the outcome; a returned error is engine-fatal.
func (e *Engine) Render(
	ctx context.Context,
	task snap.PageTask,
	headers http.Header,
	policy *snap.FilterPolicy,
	wait snap.WaitOptions,
) (snap.RenderOutcome, error) {
	outcome := snap.RenderOutcome{Task: task}
	start := time.Now()

	if err := e.waitHostBudget(ctx, task.URL); err != nil {
		outcome.Err = err
		outcome.Duration = time.Since(start)
		return outcome, nil
	}

	tabCtx, cancelTab := chromedp.NewContext(e.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, e.cfg.NavigationTimeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	stats := &pageStats{}
	meta := newDocumentMeta()
	e.listen(tabCtx, policy, stats, meta)

	html, err := e.runNavigation(taskCtx, task.URL, headers, wait)
	outcome.Duration = time.Since(start)
	outcome.StatusCode = meta.status()
	outcome.Stats = stats.snapshot()

	if err != nil {
		if e.browserCtx.Err() != nil {
			return outcome, fmt.Errorf("%w: %v", snap.ErrEngineFatal, err)
		}
		outcome.Err = fmt.Errorf("navigate %s: %w", task.URL, err)
		return outcome, nil
	}
	if code := meta.status(); code >= 300 {
		outcome.Err = fmt.Errorf("navigate %s: status %d", task.URL, code)
		return outcome, nil
	}

	outcome.HTML = []byte(html)
	return outcome, nil
}

// listen wires the tab's CDP event stream to the filter policy and the
// per-page counters. Interception decisions are resolved off the event
// goroutine; chromedp forbids blocking CDP calls inside the listener.
func (e *Engine) listen(
	tabCtx context.Context,
	policy *snap.FilterPolicy,
	stats *pageStats,
	meta *documentMeta,
) {
	chromedp.ListenTarget(tabCtx, func(ev any) {
		switch ev := ev.(type) {
		case *fetch.EventRequestPaused:
			go e.resolvePaused(tabCtx, ev, policy, stats)
		case *network.EventRequestServedFromCache:
			stats.recordServedFromCache(ev.RequestID)
		case *network.EventResponseReceived:
			stats.recordResponse(ev)
			if ev.Type == network.ResourceTypeDocument {
				meta.capture(ev)
			}
		}
	})
}

// resolvePaused continues or aborts one intercepted request. The executor is
// resolved here, at event time, when the tab target is guaranteed to exist.
func (e *Engine) resolvePaused(
	tabCtx context.Context,
	ev *fetch.EventRequestPaused,
	policy *snap.FilterPolicy,
	stats *pageStats,
) {
	execCtx := cdp.WithExecutor(tabCtx, chromedp.FromContext(tabCtx).Target)
	kind := classifyResource(ev.ResourceType)
	allowed := policy.Decide(ev.Request.URL, kind)
	stats.total.Add(1)
	if !allowed {
		stats.blocked.Add(1)
		e.logger.Debug("sub-resource blocked",
			zap.String("url", ev.Request.URL),
			zap.String("kind", string(kind)),
		)
		if err := fetch.FailRequest(ev.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx); err != nil && execCtx.Err() == nil {
			e.logger.Debug("abort intercepted request", zap.Error(err))
		}
		return
	}
	if err := fetch.ContinueRequest(ev.RequestID).Do(execCtx); err != nil && execCtx.Err() == nil {
		e.logger.Debug("continue intercepted request", zap.Error(err))
	}
}

func (e *Engine) runNavigation(ctx context.Context, pageURL string, headers http.Header, wait snap.WaitOptions) (string, error) {
	var html string
	actions := []chromedp.Action{
		network.Enable(),
		fetch.Enable(),
		e.setupAction(headers),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if wait.Selector != "" {
		actions = append(actions, chromedp.WaitVisible(wait.Selector, chromedp.ByQuery))
	}
	if wait.ExtraDelay > 0 {
		actions = append(actions, chromedp.Sleep(wait.ExtraDelay))
	}
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, nil
}

func (e *Engine) setupAction(headers http.Header) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if e.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(e.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(headers) > 0 {
			if err := network.SetExtraHTTPHeaders(toNetworkHeaders(headers)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

func (e *Engine) waitHostBudget(ctx context.Context, rawURL string) error {
	if e.cfg.HostQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse render url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := e.hostLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(e.cfg.HostQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait host limiter: %w", err)
	}
	return nil
}

// pageStats accumulates sub-resource counters for one tab. Listener callbacks
// run concurrently with the interception goroutines, hence atomics.
type pageStats struct {
	total       atomic.Int64
	blocked     atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64

	mu     sync.Mutex
	cached map[network.RequestID]struct{}
}

// recordServedFromCache counts a cache hit exactly once per request, whichever
// CDP event reports it first.
func (s *pageStats) recordServedFromCache(id network.RequestID) {
	if s.markCached(id) {
		s.cacheHits.Add(1)
	}
}

// recordResponse folds a response event into the hit/miss counters. A cached
// request can surface both as EventRequestServedFromCache and as a response
// with the cache flags unset; such a request never counts as a miss.
func (s *pageStats) recordResponse(ev *network.EventResponseReceived) {
	if ev.Response != nil && (ev.Response.FromDiskCache || ev.Response.FromPrefetchCache) {
		s.recordServedFromCache(ev.RequestID)
		return
	}
	if s.wasCached(ev.RequestID) {
		return
	}
	s.cacheMisses.Add(1)
}

func (s *pageStats) markCached(id network.RequestID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached == nil {
		s.cached = make(map[network.RequestID]struct{})
	}
	if _, seen := s.cached[id]; seen {
		return false
	}
	s.cached[id] = struct{}{}
	return true
}

func (s *pageStats) wasCached(id network.RequestID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, seen := s.cached[id]
	return seen
}

func (s *pageStats) snapshot() snap.RequestStats {
	return snap.RequestStats{
		Total:       s.total.Load(),
		Blocked:     s.blocked.Load(),
		CacheHits:   s.cacheHits.Load(),
		CacheMisses: s.cacheMisses.Load(),
	}
}

// documentMeta captures the main document response once per tab.
type documentMeta struct {
	once       sync.Once
	statusCode atomic.Int64
}

func newDocumentMeta() *documentMeta {
	return &documentMeta{}
}

func (m *documentMeta) capture(ev *network.EventResponseReceived) {
	m.once.Do(func() {
		m.statusCode.Store(ev.Response.Status)
	})
}

func (m *documentMeta) status() int {
	return int(m.statusCode.Load())
}

// classifyResource maps CDP resource types onto the filter policy taxonomy.
func classifyResource(t network.ResourceType) snap.ResourceKind {
	switch t {
	case network.ResourceTypeDocument:
		return snap.ResourceDocument
	case network.ResourceTypeStylesheet:
		return snap.ResourceStylesheet
	case network.ResourceTypeScript:
		return snap.ResourceScript
	case network.ResourceTypeXHR:
		return snap.ResourceXHR
	case network.ResourceTypeFetch:
		return snap.ResourceFetch
	case network.ResourceTypeImage:
		return snap.ResourceImage
	case network.ResourceTypeFont:
		return snap.ResourceFont
	case network.ResourceTypeMedia:
		return snap.ResourceMedia
	default:
		return snap.ResourceOther
	}
}

func toNetworkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		if len(values) == 0 {
			continue
		}
		if len(values) == 1 {
			headers[key] = values[0]
		} else {
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
