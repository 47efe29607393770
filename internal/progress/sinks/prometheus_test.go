package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staticsnap/staticsnap/internal/progress"
)

func TestPrometheusSinkCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.NewRunID()
	batch := []progress.Event{
		{RunID: runID, TS: time.Now().UTC(), Stage: progress.StageRunStart, Pages: 3},
		{RunID: runID, TS: time.Now().UTC(), Stage: progress.StagePageDone, URL: "https://example.org/", OK: true, Bytes: 120, Dur: time.Second},
		{RunID: runID, TS: time.Now().UTC(), Stage: progress.StagePageDone, URL: "https://example.org/x", OK: false, Dur: time.Second},
		{RunID: runID, TS: time.Now().UTC(), Stage: progress.StageRunDone, Pages: 2, Dur: 2 * time.Second},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	assert.Equal(t, float64(1), testutil.ToFloat64(sink.runsStarted))
	assert.Equal(t, float64(1), testutil.ToFloat64(sink.runsCompleted.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(sink.pageResults.WithLabelValues("rendered")))
	assert.Equal(t, float64(1), testutil.ToFloat64(sink.pageResults.WithLabelValues("failed")))
	assert.Equal(t, float64(120), testutil.ToFloat64(sink.pageBytes))
}

func TestPrometheusSinkDoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	assert.Error(t, err, "second registration against the same registry must fail")
}
