package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/event-comb/app/pipeline"
)

type RunPipelineTask struct {
	Task
	runner PipelineRunner
}

func NewRunPipelineTask(runner PipelineRunner, trigger string) *RunPipelineTask {
	return &RunPipelineTask{
		Task:   NewTask(TaskTypeRunPipeline, trigger),
		runner: runner,
	}
}

func (t *RunPipelineTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	state, err := t.runner.Run(ctx)
	if errors.Is(err, pipeline.ErrRunInProgress) {
		slog.Info("Pipeline run already in progress, skipping", "trigger", t.Trigger)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run pipeline: %w", err)
	}

	failed := 0
	for _, outcome := range state.Sources {
		if outcome.Failed() {
			failed++
		}
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"trigger", t.Trigger,
		"run_id", state.ID,
		"duration", t.GetDuration(),
		"sources", len(state.Sources),
		"failed_sources", failed,
		"published", state.Published)

	return nil
}
