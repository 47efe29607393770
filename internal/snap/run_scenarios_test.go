package snap_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staticsnap/staticsnap/internal/output"
	"github.com/staticsnap/staticsnap/internal/renderer"
	"github.com/staticsnap/staticsnap/internal/snap"
)

// flakyRenderer delegates to the stub but fails the configured URLs, so the
// composed scenarios can exercise failure isolation end to end.
type flakyRenderer struct {
	stub *renderer.Stub
	fail map[string]bool
}

func (r *flakyRenderer) Render(
	ctx context.Context,
	task snap.PageTask,
	headers http.Header,
	policy *snap.FilterPolicy,
	wait snap.WaitOptions,
) (snap.RenderOutcome, error) {
	if r.fail[task.URL] {
		return snap.RenderOutcome{Task: task, StatusCode: 500, Err: errors.New("navigation timeout")}, nil
	}
	return r.stub.Render(ctx, task, headers, policy, wait)
}

func (r *flakyRenderer) Close(ctx context.Context) error { return r.stub.Close(ctx) }

func TestRunWritesMirroredOutputTree(t *testing.T) {
	root := filepath.Join(t.TempDir(), "rendered")
	report := &snap.RunReport{}
	pipeline, err := output.New(output.Config{Root: root}, report, nil)
	require.NoError(t, err)

	o, err := snap.NewOrchestrator(
		snap.OrchestratorConfig{Concurrency: 2},
		renderer.NewStub("<html><body>ok</body></html>"),
		pipeline,
		snap.NewFilterPolicy(snap.FilterConfig{}),
		report, nil, nil,
	)
	require.NoError(t, err)

	urls := []string{"https://example.org/", "https://example.org/about"}
	require.NoError(t, o.Run(context.Background(), urls))

	for _, rel := range []string{"index.html", filepath.Join("about", "index.html")} {
		content, err := os.ReadFile(filepath.Join(root, rel))
		require.NoError(t, err, "expected %s to exist", rel)
		assert.Equal(t, "<html><body>ok</body></html>", string(content))
	}
	assert.Equal(t, int64(2), report.PagesRendered.Load())
	assert.Equal(t, int64(0), report.WritesFailed.Load())
}

func TestRunSkipsFailedPagesAndWritesTheRest(t *testing.T) {
	root := filepath.Join(t.TempDir(), "rendered")
	report := &snap.RunReport{}
	pipeline, err := output.New(output.Config{Root: root}, report, nil)
	require.NoError(t, err)

	r := &flakyRenderer{
		stub: renderer.NewStub("<html><body>ok</body></html>"),
		fail: map[string]bool{"https://example.org/broken": true},
	}
	o, err := snap.NewOrchestrator(
		snap.OrchestratorConfig{Concurrency: 2},
		r, pipeline,
		snap.NewFilterPolicy(snap.FilterConfig{}),
		report, nil, nil,
	)
	require.NoError(t, err)

	urls := []string{"https://example.org/", "https://example.org/broken", "https://example.org/blog"}
	require.NoError(t, o.Run(context.Background(), urls), "a failed page never aborts the batch")

	_, statErr := os.Stat(filepath.Join(root, "broken"))
	assert.True(t, os.IsNotExist(statErr), "failed render must not produce a file")
	for _, rel := range []string{"index.html", filepath.Join("blog", "index.html")} {
		_, err := os.Stat(filepath.Join(root, rel))
		assert.NoError(t, err, "expected %s to exist", rel)
	}
	assert.Equal(t, int64(2), report.PagesRendered.Load())
	assert.Equal(t, int64(1), report.PagesFailed.Load())
	assert.Equal(t, int64(0), report.WritesFailed.Load())
}
