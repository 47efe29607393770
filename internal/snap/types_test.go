package snap

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunReportRecord(t *testing.T) {
	report := &RunReport{}
	report.Start(time.Now())

	report.Record(RenderOutcome{
		HTML:       []byte("<html></html>"),
		StatusCode: 200,
		Stats:      RequestStats{Total: 10, Blocked: 3, CacheHits: 4, CacheMisses: 6},
	})
	report.Record(RenderOutcome{
		Err:   errors.New("timeout"),
		Stats: RequestStats{Total: 2, Blocked: 1},
	})
	report.Finish(time.Now())

	snap := report.Snapshot()
	assert.Equal(t, int64(1), snap.PagesRendered)
	assert.Equal(t, int64(1), snap.PagesFailed)
	assert.Equal(t, int64(12), snap.TotalRequests)
	assert.Equal(t, int64(4), snap.BlockedRequests)
	assert.Equal(t, int64(4), snap.CacheHits)
	assert.Equal(t, int64(6), snap.CacheMisses)
	assert.GreaterOrEqual(t, snap.Duration, time.Duration(0))
}

func TestRenderOutcomeOK(t *testing.T) {
	assert.True(t, RenderOutcome{HTML: []byte("<html></html>")}.OK())
	assert.False(t, RenderOutcome{}.OK())
	assert.False(t, RenderOutcome{HTML: []byte("x"), Err: errors.New("bad")}.OK())
}
