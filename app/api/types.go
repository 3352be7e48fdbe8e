package api

import (
	"context"

	"github.com/lysyi3m/event-comb/app/database"
	"github.com/lysyi3m/event-comb/app/pipeline"
	"github.com/lysyi3m/event-comb/app/source"
	"github.com/lysyi3m/event-comb/app/tasks"
)

// PipelineInterface is the part of the orchestrator the handlers use.
type PipelineInterface interface {
	Run(ctx context.Context) (*pipeline.RunState, error)
	Status() (bool, *pipeline.RunState)
	SourceNames() []string
}

var _ PipelineInterface = (*pipeline.Orchestrator)(nil)

type Handler struct {
	configCache  *source.ConfigCache
	eventRepo    database.EventRepository
	runLogRepo   database.RunLogRepository
	pipeline     PipelineInterface
	scheduler    tasks.TaskSchedulerInterface
	snapshotPath string
	interval     int // seconds
}

// standardEventTypes is returned by /events/types before any event is stored.
var standardEventTypes = []string{"startup_program", "government_scheme", "incubator", "funding"}

const (
	defaultEventsLimit = 50
	maxEventsLimit     = 1000
	defaultLogsLimit   = 20
)
