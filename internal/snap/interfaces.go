package snap

import (
	"context"
	"net/http"
)

// Renderer drives a browser page to its settled DOM.
type Renderer interface {
	// Render never returns a batch-aborting error for per-page failures;
	// those live in the outcome. A returned error is engine-fatal.
	Render(ctx context.Context, task PageTask, headers http.Header, policy *FilterPolicy, wait WaitOptions) (RenderOutcome, error)
	Close(ctx context.Context) error
}

// Pipeline persists one outcome. Implementations must not raise past their
// boundary; write failures are logged and counted internally.
type Pipeline interface {
	Write(ctx context.Context, outcome RenderOutcome)
}

// Provider supplies the ordered page identifier list for a run.
type Provider interface {
	Pages(ctx context.Context) ([]string, error)
}
