package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/staticsnap/staticsnap/internal/progress"
)

// PrometheusSink exports render progress via Prometheus. It owns the
// collectors for runs started/completed and per-page completion counters.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runRuntime    *prometheus.HistogramVec

	pageResults  *prometheus.CounterVec
	pageBytes    prometheus.Counter
	pageDuration prometheus.Histogram
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "staticsnap_runs_started_total",
			Help: "Total render runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staticsnap_runs_completed_total",
			Help: "Total render runs completed partitioned by result.",
		}, []string{"result"}),
		runRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "staticsnap_run_runtime_seconds",
			Help:    "Wall time per completed run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"result"}),
		pageResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staticsnap_page_results_total",
			Help: "Page completions partitioned by result.",
		}, []string{"result"}),
		pageBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "staticsnap_page_bytes_total",
			Help: "Rendered markup bytes produced.",
		}),
		pageDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "staticsnap_page_duration_seconds",
			Help:    "Render duration per page.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runRuntime,
		s.pageResults,
		s.pageBytes,
		s.pageDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
	case progress.StageRunDone:
		s.runsCompleted.WithLabelValues("success").Inc()
		s.runRuntime.WithLabelValues("success").Observe(evt.Dur.Seconds())
	case progress.StageRunError:
		s.runsCompleted.WithLabelValues("error").Inc()
		s.runRuntime.WithLabelValues("error").Observe(evt.Dur.Seconds())
	case progress.StagePageDone:
		result := "failed"
		if evt.OK {
			result = "rendered"
		}
		s.pageResults.WithLabelValues(result).Inc()
		s.pageBytes.Add(float64(evt.Bytes))
		s.pageDuration.Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; collectors stay registered.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
