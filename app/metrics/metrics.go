package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_comb_pipeline_runs_total",
			Help: "Pipeline runs by outcome",
		},
		[]string{"status"},
	)

	PipelineRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "event_comb_pipeline_run_duration_seconds",
			Help:    "Duration of complete pipeline runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	PipelineLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "event_comb_pipeline_last_run_timestamp_seconds",
			Help: "Unix time of the last finished pipeline run",
		},
	)

	SourceCandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_comb_source_candidates_total",
			Help: "Raw candidates returned by each source",
		},
		[]string{"source"},
	)

	SourceFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_comb_source_failures_total",
			Help: "Failed source fetches by failure kind",
		},
		[]string{"source", "kind"},
	)

	SourceRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_comb_source_rejected_total",
			Help: "Candidates dropped during normalization",
		},
		[]string{"source"},
	)

	PersistFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_comb_persist_failures_total",
			Help: "Events that failed to upsert",
		},
		[]string{"source"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_comb_source_http_requests_total",
			Help: "Outbound source requests by result",
		},
		[]string{"source", "result"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "event_comb_circuit_breaker_state",
			Help: "Circuit breaker state per source (0 closed, 1 half-open, 2 open)",
		},
		[]string{"source"},
	)

	SnapshotEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "event_comb_snapshot_events",
			Help: "Events in the last published snapshot",
		},
	)

	SnapshotDuplicatesRemoved = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "event_comb_snapshot_duplicates_removed",
			Help: "Duplicates dropped while building the last snapshot",
		},
	)

	EventsPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_comb_events_purged_total",
			Help: "Events removed by the retention sweep",
		},
	)
)
