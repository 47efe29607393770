// Package progress defines the event stream emitted while a render run
// executes, plus the hub that fans events out to registered sinks.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart Stage = "RUN_START"
	StageRunDone  Stage = "RUN_DONE"
	StageRunError Stage = "RUN_ERROR"
	StagePageDone Stage = "PAGE_DONE"
)

// RunID uniquely identifies one batch run in its 16-byte UUID form.
type RunID [16]byte

// NewRunID generates a fresh run identifier.
func NewRunID() RunID {
	return RunID(uuid.New())
}

// UUID converts the binary run ID back to uuid.UUID for display.
func (id RunID) UUID() uuid.UUID {
	return uuid.UUID(id)
}

// Event captures a single milestone of render progress.
type Event struct {
	// RunID identifies the batch run the event belongs to.
	RunID RunID
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// URL is set for page-scoped events.
	URL string
	// StatusCode carries the main document status for page completions.
	StatusCode int
	// OK reports whether the page produced usable markup.
	OK bool
	// Bytes carries the rendered markup size for page completions.
	Bytes int64
	// Pages carries the batch size on run start and the processed count on
	// run completion.
	Pages int64
	// Dur captures execution latency for pages and for the whole run.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == (RunID{}) {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StagePageDone:
		if e.URL == "" {
			return errors.New("page completion requires url")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
