package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/event-comb/app/database"
	"github.com/lysyi3m/event-comb/app/event"
	"github.com/lysyi3m/event-comb/app/metrics"
	"github.com/lysyi3m/event-comb/app/source"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

const defaultSourceTimeout = 2 * time.Minute

type SnapshotWriterInterface interface {
	Run(snapshot *event.Snapshot) error
}

var _ SnapshotWriterInterface = (*event.SnapshotWriter)(nil)

type Options struct {
	Concurrency   int           // adapters fetched in parallel, 1 means sequential
	SourceTimeout time.Duration // upper bound on a single adapter call
}

// Orchestrator runs collect, persist and publish over a fixed, ordered set
// of adapters.
type Orchestrator struct {
	adapters     []source.Adapter
	normalizer   *event.Normalizer
	deduplicator *event.Deduplicator
	sorter       *event.Sorter
	eventRepo    database.EventRepository
	runLogRepo   database.RunLogRepository
	writer       SnapshotWriterInterface
	opts         Options

	mu      sync.Mutex
	running bool
	lastRun *RunState
}

func NewOrchestrator(adapters []source.Adapter, normalizer *event.Normalizer,
	eventRepo database.EventRepository, runLogRepo database.RunLogRepository,
	writer SnapshotWriterInterface, opts Options) *Orchestrator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = defaultSourceTimeout
	}

	return &Orchestrator{
		adapters:     adapters,
		normalizer:   normalizer,
		deduplicator: event.NewDeduplicator(),
		sorter:       event.NewSorter(),
		eventRepo:    eventRepo,
		runLogRepo:   runLogRepo,
		writer:       writer,
		opts:         opts,
	}
}

// Run executes one full pipeline run. Source and event level failures are
// recorded in the returned state; only a PublishFailure is returned as error.
func (o *Orchestrator) Run(ctx context.Context) (*RunState, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, ErrRunInProgress
	}
	o.running = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	state := newRunState(len(o.adapters))
	timer := prometheus.NewTimer(metrics.PipelineRunDuration)

	slog.Info("Pipeline run started", "run_id", state.ID, "sources", len(o.adapters))

	results := o.collect(ctx)

	state.Phase = PhasePersist
	o.persist(ctx, state, results)

	state.Phase = PhasePublish
	err := o.publish(ctx, state)

	state.FinishedAt = time.Now()
	timer.ObserveDuration()
	metrics.PipelineLastRunTimestamp.Set(float64(state.FinishedAt.Unix()))

	if err != nil {
		state.Phase = PhaseFailed
		state.Error = err.Error()
		metrics.PipelineRunsTotal.WithLabelValues("failed").Inc()
		slog.Error("Pipeline run failed", "run_id", state.ID, "duration", state.FinishedAt.Sub(state.StartedAt), "error", err)
	} else {
		state.Phase = PhaseDone
		metrics.PipelineRunsTotal.WithLabelValues("success").Inc()
		slog.Info("Pipeline run completed",
			"run_id", state.ID,
			"duration", state.FinishedAt.Sub(state.StartedAt),
			"published", state.Published,
			"duplicates_removed", state.DeduplicationStats.DuplicatesRemoved)
	}

	o.mu.Lock()
	o.lastRun = state.clone()
	o.mu.Unlock()

	return state, err
}

// Status reports whether a run is in progress and a copy of the last
// finished run, if any.
func (o *Orchestrator) Status() (bool, *RunState) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.lastRun == nil {
		return o.running, nil
	}
	return o.running, o.lastRun.clone()
}

func (o *Orchestrator) SourceNames() []string {
	names := make([]string, 0, len(o.adapters))
	for _, a := range o.adapters {
		names = append(names, a.Name())
	}
	return names
}

type collected struct {
	adapter    source.Adapter
	candidates []event.RawCandidate
	outcome    SourceOutcome
}

// collect fetches every adapter. Results are stored by index so later phases
// see registration order regardless of completion order.
func (o *Orchestrator) collect(ctx context.Context) []collected {
	results := make([]collected, len(o.adapters))

	var g errgroup.Group
	g.SetLimit(o.opts.Concurrency)

	for i, adapter := range o.adapters {
		g.Go(func() error {
			results[i] = o.fetchSource(ctx, adapter)
			return nil
		})
	}
	g.Wait()

	return results
}

func (o *Orchestrator) fetchSource(ctx context.Context, adapter source.Adapter) collected {
	name := adapter.Name()
	start := time.Now()
	res := collected{adapter: adapter, outcome: SourceOutcome{Source: name}}

	fetchCtx, cancel := context.WithTimeout(ctx, o.opts.SourceTimeout)
	defer cancel()

	type fetchResult struct {
		candidates []event.RawCandidate
		err        error
	}
	done := make(chan fetchResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchResult{err: &AdapterFailure{Source: name, Kind: FailurePanic, Err: fmt.Errorf("%v", r)}}
			}
		}()
		candidates, err := adapter.Fetch(fetchCtx)
		done <- fetchResult{candidates: candidates, err: err}
	}()

	var failure *AdapterFailure
	select {
	case r := <-done:
		switch {
		case r.err == nil:
			res.candidates = r.candidates
		case errors.As(r.err, &failure):
		case errors.Is(r.err, context.DeadlineExceeded):
			failure = &AdapterFailure{Source: name, Kind: FailureTimeout, Err: r.err}
		default:
			failure = &AdapterFailure{Source: name, Kind: FailureFetch, Err: r.err}
		}
	case <-fetchCtx.Done():
		// The adapter ignored its context; abandon it.
		failure = &AdapterFailure{Source: name, Kind: FailureTimeout, Err: fetchCtx.Err()}
	}

	res.outcome.Duration = time.Since(start).String()
	res.outcome.Candidates = len(res.candidates)

	if failure != nil {
		res.outcome.failure = failure
		res.outcome.FailureKind = failure.Kind
		res.outcome.Error = failure.Err.Error()
		metrics.SourceFailuresTotal.WithLabelValues(name, string(failure.Kind)).Inc()
		slog.Warn("Source fetch failed", "source", name, "kind", failure.Kind, "duration", res.outcome.Duration, "error", failure.Err)
		return res
	}

	metrics.SourceCandidatesTotal.WithLabelValues(name).Add(float64(len(res.candidates)))
	slog.Debug("Source fetched", "source", name, "candidates", len(res.candidates), "duration", res.outcome.Duration)
	return res
}

func (o *Orchestrator) persist(ctx context.Context, state *RunState, results []collected) {
	for _, res := range results {
		outcome := res.outcome

		limit := 0
		if l, ok := res.adapter.(source.DescriptionLimiter); ok {
			limit = l.DescriptionLimit()
		}

		for _, raw := range res.candidates {
			e, err := o.normalizer.Run(raw, limit)
			if err != nil {
				outcome.Rejected++
				continue
			}

			if _, err := o.eventRepo.UpsertEvent(ctx, e); err != nil {
				failure := &PersistenceFailure{Source: outcome.Source, Title: e.Title, Err: err}
				outcome.PersistFailures++
				metrics.PersistFailuresTotal.WithLabelValues(outcome.Source).Inc()
				slog.Warn("Event persist failed", "run_id", state.ID, "source", outcome.Source, "error", failure)
				continue
			}
			outcome.Persisted++
		}

		if outcome.Rejected > 0 {
			metrics.SourceRejectedTotal.WithLabelValues(outcome.Source).Add(float64(outcome.Rejected))
		}

		entry := database.RunLog{
			RunID:        state.ID,
			Source:       outcome.Source,
			EventsFound:  outcome.Persisted,
			Success:      outcome.Persisted > 0,
			ErrorMessage: outcome.Error,
		}
		if err := o.runLogRepo.AppendRunLog(ctx, entry); err != nil {
			slog.Error("Failed to append run log", "run_id", state.ID, "source", outcome.Source, "error", err)
		}

		slog.Info("Source processed",
			"run_id", state.ID,
			"source", outcome.Source,
			"candidates", outcome.Candidates,
			"rejected", outcome.Rejected,
			"persisted", outcome.Persisted,
			"persist_failures", outcome.PersistFailures)

		state.Sources = append(state.Sources, outcome)
	}
}

func (o *Orchestrator) publish(ctx context.Context, state *RunState) error {
	events, err := o.eventRepo.QueryAll(ctx, database.QueryOptions{})
	if err != nil {
		return &PublishFailure{Err: fmt.Errorf("failed to read events: %w", err)}
	}

	unique := o.deduplicator.Run(events)
	ordered := o.sorter.Run(unique)
	stats := event.NewDeduplicationStats(len(events), len(unique))

	snapshot := event.NewSnapshot(ordered, o.SourceNames(), stats, time.Now())
	if err := o.writer.Run(snapshot); err != nil {
		return &PublishFailure{Err: err}
	}

	state.DeduplicationStats = stats
	state.Published = snapshot.Count

	metrics.SnapshotEvents.Set(float64(snapshot.Count))
	metrics.SnapshotDuplicatesRemoved.Set(float64(stats.DuplicatesRemoved))

	return nil
}
