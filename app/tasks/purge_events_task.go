package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/event-comb/app/database"
	"github.com/lysyi3m/event-comb/app/metrics"
)

// PurgeEventsTask deletes events that have not been seen by any run within
// the retention window.
type PurgeEventsTask struct {
	Task
	eventRepo     database.EventRepository
	retentionDays int
	now           func() time.Time
}

func NewPurgeEventsTask(eventRepo database.EventRepository, retentionDays int, trigger string) *PurgeEventsTask {
	return &PurgeEventsTask{
		Task:          NewTask(TaskTypePurgeEvents, trigger),
		eventRepo:     eventRepo,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

func (t *PurgeEventsTask) Execute(ctx context.Context) error {
	if t.retentionDays <= 0 {
		return nil
	}

	cutoff := t.now().AddDate(0, 0, -t.retentionDays)

	deleted, err := t.eventRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to purge events: %w", err)
	}

	metrics.EventsPurgedTotal.Add(float64(deleted))

	slog.Info("Task completed",
		"type", string(t.Type),
		"duration", t.GetDuration(),
		"cutoff", cutoff.Format(time.DateOnly),
		"deleted", deleted)

	return nil
}
