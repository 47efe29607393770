package snap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/staticsnap/staticsnap/internal/progress"
)

// ErrNoPages indicates the provider resolved an empty page list.
var ErrNoPages = errors.New("no pages to render")

// ErrEngineFatal marks unrecoverable rendering-engine faults. Renderers wrap
// process-level browser failures with it; anything else stays per-page.
var ErrEngineFatal = errors.New("rendering engine failure")

// runState tracks where the run is in its lifecycle.
type runState string

const (
	stateWarming  runState = "warming"
	stateRunning  runState = "running"
	stateDraining runState = "draining"
	stateDone     runState = "done"
)

// OrchestratorConfig controls scheduling for one run.
type OrchestratorConfig struct {
	// Concurrency is the in-flight budget N. Must be >= 1.
	Concurrency int
	// MaxPages truncates the input list before scheduling; 0 means no cap.
	MaxPages int
	// Headers are injected into every rendering context.
	Headers http.Header
	// Wait tunes per-page quiescence handling.
	Wait WaitOptions
}

// Orchestrator pulls tasks from an input list and keeps at most N renders in
// flight. A single coordinator goroutine owns the dispatch cursor and the
// in-flight count; workers report back over a completion channel, so the
// exactly-once dispatch and resolve invariants never depend on shared locks.
type Orchestrator struct {
	cfg      OrchestratorConfig
	renderer Renderer
	pipeline Pipeline
	policy   *FilterPolicy
	report   *RunReport
	emitter  progress.Emitter
	logger   *zap.Logger
}

// NewOrchestrator wires the scheduler to its collaborators. The emitter may be
// nil when no progress streaming is wanted.
func NewOrchestrator(
	cfg OrchestratorConfig,
	renderer Renderer,
	pipeline Pipeline,
	policy *FilterPolicy,
	report *RunReport,
	emitter progress.Emitter,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be >= 1, got %d", cfg.Concurrency)
	}
	if renderer == nil || pipeline == nil || policy == nil || report == nil {
		return nil, errors.New("renderer, pipeline, policy and report are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:      cfg,
		renderer: renderer,
		pipeline: pipeline,
		policy:   policy,
		report:   report,
		emitter:  emitter,
		logger:   logger,
	}, nil
}

// completion is the worker-to-coordinator notification. Exactly one is sent
// per dispatched task, on success, page failure, and engine failure alike.
type completion struct {
	outcome RenderOutcome
	fatal   error
}

// Run executes the batch and blocks until every task resolved and its pipeline
// write returned. Per-page failures are recorded and never returned; the error
// is non-nil only for an empty list, a fatal engine fault, or cancellation.
func (o *Orchestrator) Run(ctx context.Context, urls []string) error {
	tasks := o.buildTasks(urls)
	if len(tasks) == 0 {
		return ErrNoPages
	}

	o.report.Start(time.Now())
	runID := progress.NewRunID()
	o.emit(progress.Event{RunID: runID, TS: time.Now().UTC(), Stage: progress.StageRunStart, Pages: int64(len(tasks))})
	o.logger.Info("run starting",
		zap.Int("pages", len(tasks)),
		zap.Int("concurrency", o.cfg.Concurrency),
	)

	results := make(chan completion, o.cfg.Concurrency)

	// Warm-up barrier: the first task runs alone so the browser cache is
	// primed before parallel dispatch begins.
	state := stateWarming
	o.dispatch(ctx, tasks[0], results)
	cursor := 1
	inFlight := 1
	resolved := 0
	var fatal error

	for resolved < len(tasks) {
		done := <-results
		resolved++
		inFlight--
		o.resolve(runID, done)

		if done.fatal != nil && fatal == nil {
			fatal = done.fatal
			o.logger.Error("fatal engine error, aborting run", zap.Error(fatal))
		}
		if ctx.Err() != nil && fatal == nil {
			fatal = ctx.Err()
		}
		if fatal != nil {
			// Stop dispatching; drain what is already in flight.
			if inFlight == 0 {
				break
			}
			continue
		}

		switch state {
		case stateWarming:
			// Warm-up resolved (success or failure both count): release the
			// remaining budget slots.
			state = stateRunning
			for inFlight < o.cfg.Concurrency && cursor < len(tasks) {
				o.dispatch(ctx, tasks[cursor], results)
				cursor++
				inFlight++
			}
		case stateRunning:
			// Steady-state refill: exactly one new dispatch per resolution
			// while pending tasks remain.
			if cursor < len(tasks) {
				o.dispatch(ctx, tasks[cursor], results)
				cursor++
				inFlight++
			}
		}
		if cursor == len(tasks) && state != stateDraining {
			state = stateDraining
		}
	}

	state = stateDone
	o.report.Finish(time.Now())
	o.emitRunEnd(runID, fatal)
	if fatal != nil {
		return fmt.Errorf("run aborted: %w", fatal)
	}
	return nil
}

// buildTasks applies the max-pages cap and freezes the input order.
func (o *Orchestrator) buildTasks(urls []string) []PageTask {
	if o.cfg.MaxPages > 0 && len(urls) > o.cfg.MaxPages {
		urls = urls[:o.cfg.MaxPages]
	}
	tasks := make([]PageTask, len(urls))
	for i, u := range urls {
		tasks[i] = PageTask{URL: u, Index: i}
	}
	return tasks
}

// dispatch hands one task to a worker goroutine. The worker renders, routes
// the outcome through the pipeline, and posts exactly one completion.
func (o *Orchestrator) dispatch(ctx context.Context, task PageTask, results chan<- completion) {
	o.logger.Debug("dispatching page", zap.String("url", task.URL), zap.Int("index", task.Index))
	go func() {
		outcome, err := o.renderer.Render(ctx, task, o.cfg.Headers, o.policy, o.cfg.Wait)
		outcome.Task = task
		if err != nil {
			results <- completion{outcome: outcome, fatal: err}
			return
		}
		o.pipeline.Write(ctx, outcome)
		results <- completion{outcome: outcome}
	}()
}

// resolve records one completed task in the report and the progress stream.
func (o *Orchestrator) resolve(runID progress.RunID, done completion) {
	if done.fatal != nil {
		return
	}
	outcome := done.outcome
	o.report.Record(outcome)
	CacheHits.Add(float64(outcome.Stats.CacheHits))
	if outcome.OK() {
		PagesRendered.Inc()
		o.logger.Info("page rendered",
			zap.String("url", outcome.Task.URL),
			zap.Int("status", outcome.StatusCode),
			zap.Duration("dur", outcome.Duration),
			zap.Int64("requests", outcome.Stats.Total),
			zap.Int64("blocked", outcome.Stats.Blocked),
		)
	} else {
		PagesFailed.Inc()
		o.logger.Warn("page failed",
			zap.String("url", outcome.Task.URL),
			zap.Int("status", outcome.StatusCode),
			zap.Error(outcome.Err),
		)
	}
	o.emit(progress.Event{
		RunID:      runID,
		TS:         time.Now().UTC(),
		Stage:      progress.StagePageDone,
		URL:        outcome.Task.URL,
		StatusCode: outcome.StatusCode,
		OK:         outcome.OK(),
		Bytes:      int64(len(outcome.HTML)),
		Dur:        outcome.Duration,
	})
}

func (o *Orchestrator) emit(evt progress.Event) {
	if o.emitter == nil {
		return
	}
	o.emitter.Emit(evt)
}

func (o *Orchestrator) emitRunEnd(runID progress.RunID, fatal error) {
	stage := progress.StageRunDone
	note := ""
	if fatal != nil {
		stage = progress.StageRunError
		note = fatal.Error()
	}
	snap := o.report.Snapshot()
	o.emit(progress.Event{
		RunID: runID,
		TS:    time.Now().UTC(),
		Stage: stage,
		Pages: snap.PagesRendered + snap.PagesFailed,
		Dur:   snap.Duration,
		Note:  note,
	})
	o.logger.Info("run finished",
		zap.Int64("pages_rendered", snap.PagesRendered),
		zap.Int64("pages_failed", snap.PagesFailed),
		zap.Int64("requests_total", snap.TotalRequests),
		zap.Int64("requests_blocked", snap.BlockedRequests),
		zap.Int64("cache_hits", snap.CacheHits),
		zap.Int64("cache_misses", snap.CacheMisses),
		zap.Duration("duration", snap.Duration),
	)
}
