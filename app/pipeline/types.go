package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lysyi3m/event-comb/app/event"
)

var ErrRunInProgress = errors.New("pipeline run already in progress")

type Phase string

const (
	PhaseCollect Phase = "collect"
	PhasePersist Phase = "persist"
	PhasePublish Phase = "publish"
	PhaseDone    Phase = "done"
	PhaseFailed  Phase = "failed"
)

type FailureKind string

const (
	FailureFetch   FailureKind = "fetch_error"
	FailureTimeout FailureKind = "timeout"
	FailurePanic   FailureKind = "panic"
)

// AdapterFailure records a source that produced no candidates this run.
type AdapterFailure struct {
	Source string
	Kind   FailureKind
	Err    error
}

func (e *AdapterFailure) Error() string {
	return fmt.Sprintf("source %s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *AdapterFailure) Unwrap() error {
	return e.Err
}

// PersistenceFailure records a single event that could not be stored.
type PersistenceFailure struct {
	Source string
	Title  string
	Err    error
}

func (e *PersistenceFailure) Error() string {
	return fmt.Sprintf("source %s: event %q: %v", e.Source, e.Title, e.Err)
}

func (e *PersistenceFailure) Unwrap() error {
	return e.Err
}

// PublishFailure is the only failure that aborts a run.
type PublishFailure struct {
	Err error
}

func (e *PublishFailure) Error() string {
	return fmt.Sprintf("publish failed: %v", e.Err)
}

func (e *PublishFailure) Unwrap() error {
	return e.Err
}

type SourceOutcome struct {
	Source          string          `json:"source"`
	Candidates      int             `json:"candidates"`
	Rejected        int             `json:"rejected"`
	Persisted       int             `json:"persisted"`
	PersistFailures int             `json:"persist_failures"`
	Duration        string          `json:"duration"`
	FailureKind     FailureKind     `json:"failure_kind,omitempty"`
	Error           string          `json:"error,omitempty"`
	failure         *AdapterFailure
}

func (o SourceOutcome) Failed() bool {
	return o.failure != nil
}

// RunState describes one pipeline run. It is created by Orchestrator.Run and
// never shared between runs.
type RunState struct {
	ID                 string                   `json:"id"`
	Phase              Phase                    `json:"phase"`
	StartedAt          time.Time                `json:"started_at"`
	FinishedAt         time.Time                `json:"finished_at,omitzero"`
	Sources            []SourceOutcome          `json:"sources"`
	DeduplicationStats event.DeduplicationStats `json:"deduplication_stats"`
	Published          int                      `json:"published"`
	Error              string                   `json:"error,omitempty"`
}

func newRunState(sourceCount int) *RunState {
	return &RunState{
		ID:        uuid.NewString(),
		Phase:     PhaseCollect,
		StartedAt: time.Now(),
		Sources:   make([]SourceOutcome, 0, sourceCount),
	}
}

func (s *RunState) clone() *RunState {
	c := *s
	c.Sources = append([]SourceOutcome(nil), s.Sources...)
	return &c
}
