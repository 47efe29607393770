// Package snap defines the core types and the render orchestration engine.
// It schedules page tasks against a bounded concurrency budget and routes
// every outcome through the output pipeline exactly once.
package snap

import (
	"sync/atomic"
	"time"
)

// ResourceKind classifies a sub-resource request issued while a page renders.
type ResourceKind string

// Resource kinds the filter policy distinguishes.
const (
	ResourceDocument   ResourceKind = "document"
	ResourceStylesheet ResourceKind = "stylesheet"
	ResourceScript     ResourceKind = "script"
	ResourceXHR        ResourceKind = "xhr"
	ResourceFetch      ResourceKind = "fetch"
	ResourceImage      ResourceKind = "image"
	ResourceFont       ResourceKind = "font"
	ResourceMedia      ResourceKind = "media"
	ResourceOther      ResourceKind = "other"
)

// PageTask identifies one page to render. Tasks are immutable once built and
// consumed exactly once by the orchestrator.
type PageTask struct {
	URL   string
	Index int
}

// WaitOptions tunes how long the renderer holds a page after navigation.
type WaitOptions struct {
	// Selector, when set, must become visible before extraction; a page whose
	// selector never appears fails that page only.
	Selector string
	// ExtraDelay pauses after quiescence to let async content the network-idle
	// heuristic cannot see finish rendering.
	ExtraDelay time.Duration
}

// RequestStats counts sub-resource activity observed while one page rendered.
type RequestStats struct {
	Total       int64
	Blocked     int64
	CacheHits   int64
	CacheMisses int64
}

// RenderOutcome is produced once per task. HTML is nil when navigation failed,
// timed out, or returned a non-success status.
type RenderOutcome struct {
	Task       PageTask
	HTML       []byte
	StatusCode int
	Err        error
	Stats      RequestStats
	Duration   time.Duration
}

// OK reports whether the render produced usable markup.
func (o RenderOutcome) OK() bool {
	return o.Err == nil && len(o.HTML) > 0
}

// RunReport aggregates counters across a run. All counters are atomics so the
// filter policy and renderer may update them from concurrently open pages.
type RunReport struct {
	PagesRendered   atomic.Int64
	PagesFailed     atomic.Int64
	WritesFailed    atomic.Int64
	TotalRequests   atomic.Int64
	BlockedRequests atomic.Int64
	CacheHits       atomic.Int64
	CacheMisses     atomic.Int64

	started  time.Time
	finished time.Time
}

// Start stamps the beginning of the run.
func (r *RunReport) Start(now time.Time) { r.started = now }

// Finish stamps the end of the run. Called exactly once, after the last task
// resolved.
func (r *RunReport) Finish(now time.Time) { r.finished = now }

// Duration returns the wall-clock span of the run.
func (r *RunReport) Duration() time.Duration {
	if r.started.IsZero() || r.finished.IsZero() {
		return 0
	}
	return r.finished.Sub(r.started)
}

// Record folds one resolved outcome into the report.
func (r *RunReport) Record(outcome RenderOutcome) {
	if outcome.OK() {
		r.PagesRendered.Add(1)
	} else {
		r.PagesFailed.Add(1)
	}
	r.TotalRequests.Add(outcome.Stats.Total)
	r.BlockedRequests.Add(outcome.Stats.Blocked)
	r.CacheHits.Add(outcome.Stats.CacheHits)
	r.CacheMisses.Add(outcome.Stats.CacheMisses)
}

// Snapshot is an immutable copy of the report suitable for JSON encoding.
type Snapshot struct {
	PagesRendered   int64         `json:"pages_rendered"`
	PagesFailed     int64         `json:"pages_failed"`
	WritesFailed    int64         `json:"writes_failed"`
	TotalRequests   int64         `json:"total_requests"`
	BlockedRequests int64         `json:"blocked_requests"`
	CacheHits       int64         `json:"cache_hits"`
	CacheMisses     int64         `json:"cache_misses"`
	Duration        time.Duration `json:"duration_ns"`
}

// Snapshot copies the current counter values.
func (r *RunReport) Snapshot() Snapshot {
	return Snapshot{
		PagesRendered:   r.PagesRendered.Load(),
		PagesFailed:     r.PagesFailed.Load(),
		WritesFailed:    r.WritesFailed.Load(),
		TotalRequests:   r.TotalRequests.Load(),
		BlockedRequests: r.BlockedRequests.Load(),
		CacheHits:       r.CacheHits.Load(),
		CacheMisses:     r.CacheMisses.Load(),
		Duration:        r.Duration(),
	}
}
