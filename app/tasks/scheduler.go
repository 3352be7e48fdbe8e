package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/event-comb/app/database"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	defaultTaskTimeout = 30 * time.Minute
	maxRetryDelay      = 30 * time.Second
	taskQueueSize      = 16
)

type SchedulerOptions struct {
	Interval      time.Duration
	RetentionDays int           // 0 disables purge tasks
	TaskTimeout   time.Duration // defaults to 30 minutes
}

// Scheduler runs tasks on a single worker so pipeline runs never overlap.
type Scheduler struct {
	runner        PipelineRunner
	eventRepo     database.EventRepository
	interval      time.Duration
	retentionDays int
	taskTimeout   time.Duration
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	taskQueue     chan TaskInterface
}

func NewScheduler(runner PipelineRunner, eventRepo database.EventRepository, opts SchedulerOptions) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = defaultTaskTimeout
	}

	return &Scheduler{
		runner:        runner,
		eventRepo:     eventRepo,
		interval:      opts.Interval,
		retentionDays: opts.RetentionDays,
		taskTimeout:   opts.TaskTimeout,
		ctx:           ctx,
		cancel:        cancel,
		taskQueue:     make(chan TaskInterface, taskQueueSize),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.worker()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

// Stop cancels the running task and waits for the worker to exit. The queue
// stays open so late retries fail on the cancelled context instead.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueStartupTasks() {
	task := NewRunPipelineTask(s.runner, TriggerStartup)
	if err := s.EnqueueTask(task); err != nil {
		slog.Warn("Failed to enqueue RunPipelineTask", "trigger", TriggerStartup, "error", err)
	}
}

// enqueueTasks queues the retention sweep ahead of the run so the snapshot
// published by that run no longer lists purged events.
func (s *Scheduler) enqueueTasks() {
	if s.retentionDays > 0 {
		purge := NewPurgeEventsTask(s.eventRepo, s.retentionDays, TriggerScheduled)
		if err := s.EnqueueTask(purge); err != nil {
			slog.Warn("Failed to enqueue PurgeEventsTask", "error", err)
		}
	}

	task := NewRunPipelineTask(s.runner, TriggerScheduled)
	if err := s.EnqueueTask(task); err != nil {
		slog.Warn("Failed to enqueue RunPipelineTask", "trigger", TriggerScheduled, "error", err)
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, s.taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Task execution failed", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := min(time.Duration(1<<uint(task.GetRetryCount()-1))*time.Second, maxRetryDelay)

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "trigger", task.GetTrigger(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	go func() {
		select {
		case <-time.After(retryDelay):
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			return
		}

		if retryErr := s.EnqueueTask(task); retryErr != nil {
			slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
		}
	}()
}
