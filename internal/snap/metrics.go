package snap

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesRendered tracks pages rendered and persisted successfully.
	PagesRendered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "staticsnap_pages_rendered_total",
		Help: "The total number of pages rendered and saved.",
	})
	// PagesFailed tracks pages whose render or write failed.
	PagesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "staticsnap_pages_failed_total",
		Help: "The total number of pages that failed to render.",
	})
	// RequestsTotal tracks sub-resource requests seen by the filter policy.
	RequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "staticsnap_subrequests_total",
		Help: "The total number of sub-resource requests intercepted.",
	})
	// RequestsBlocked tracks sub-resource requests denied by the filter policy.
	RequestsBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "staticsnap_subrequests_blocked_total",
		Help: "The total number of sub-resource requests aborted.",
	})
	// CacheHits tracks sub-resource responses served from the browser cache.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "staticsnap_subrequests_cache_hits_total",
		Help: "The total number of sub-resource responses served from cache.",
	})
)
