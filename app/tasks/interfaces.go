package tasks

import (
	"context"

	"github.com/lysyi3m/event-comb/app/pipeline"
)

// TaskSchedulerInterface is used by main and the API to run background work.
//
//	scheduler := NewScheduler(orchestrator, eventRepo, SchedulerOptions{Interval: 30 * time.Minute})
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewRunPipelineTask(orchestrator, TriggerManual))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

type PipelineRunner interface {
	Run(ctx context.Context) (*pipeline.RunState, error)
}

var _ PipelineRunner = (*pipeline.Orchestrator)(nil)
