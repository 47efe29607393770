package renderer

import (
	"context"
	"net/http"

	"github.com/staticsnap/staticsnap/internal/snap"
)

// Stub implements snap.Renderer with canned markup. It backs dry runs and
// lets the scheduler be exercised without a browser process.
type Stub struct {
	// HTML is returned for every task.
	HTML string
}

// NewStub returns a renderer that succeeds with the given markup.
func NewStub(html string) *Stub {
	return &Stub{HTML: html}
}

// Render returns the canned markup for any task.
func (s *Stub) Render(
	_ context.Context,
	task snap.PageTask,
	_ http.Header,
	_ *snap.FilterPolicy,
	_ snap.WaitOptions,
) (snap.RenderOutcome, error) {
	return snap.RenderOutcome{
		Task:       task,
		HTML:       []byte(s.HTML),
		StatusCode: http.StatusOK,
	}, nil
}

// Close implements snap.Renderer; it performs no action.
func (s *Stub) Close(context.Context) error {
	return nil
}
