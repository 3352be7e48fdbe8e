package database

import (
	"context"
	"time"

	"github.com/lysyi3m/event-comb/app/event"
)

type EventRepository interface {
	UpsertEvent(ctx context.Context, e event.Event) (int64, error)
	QueryAll(ctx context.Context, opts QueryOptions) ([]event.Event, error)
	GetEventCount(ctx context.Context) (int, error)
	GetEventTypes(ctx context.Context) ([]string, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type RunLogRepository interface {
	AppendRunLog(ctx context.Context, entry RunLog) error
	GetRunLogs(ctx context.Context, limit int) ([]RunLog, error)
}
