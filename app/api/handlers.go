package api

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/event-comb/app/database"
	"github.com/lysyi3m/event-comb/app/event"
	"github.com/lysyi3m/event-comb/app/source"
	"github.com/lysyi3m/event-comb/app/tasks"
)

func NewHandler(configCache *source.ConfigCache, eventRepo database.EventRepository,
	runLogRepo database.RunLogRepository, pipeline PipelineInterface,
	scheduler tasks.TaskSchedulerInterface, snapshotPath string, interval int) *Handler {
	return &Handler{
		configCache:  configCache,
		eventRepo:    eventRepo,
		runLogRepo:   runLogRepo,
		pipeline:     pipeline,
		scheduler:    scheduler,
		snapshotPath: snapshotPath,
		interval:     interval,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]any{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if eventCount, err := h.eventRepo.GetEventCount(c.Request.Context()); err == nil {
		health["events"] = eventCount
	}

	health["loaded_sources"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStatus(c *gin.Context) {
	running, lastRun := h.pipeline.Status()

	c.JSON(http.StatusOK, gin.H{
		"running":          running,
		"last_run":         lastRun,
		"interval_seconds": h.interval,
		"interval_minutes": float64(h.interval) / 60,
		"sources":          h.pipeline.SourceNames(),
		"timestamp":        time.Now().In(time.Local).Format(time.RFC3339),
	})
}

// GetEvents reads events straight from the store. With remove_duplicates
// (the default) twice the limit is read, deduplicated and sorted the same
// way the published snapshot is.
func (h *Handler) GetEvents(c *gin.Context) {
	limit := defaultEventsLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(parsed, maxEventsLimit)
	}

	removeDuplicates := true
	if raw := c.Query("remove_duplicates"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "remove_duplicates must be a boolean"})
			return
		}
		removeDuplicates = parsed
	}

	opts := database.QueryOptions{Limit: limit, EventType: c.Query("event_type")}
	if removeDuplicates {
		opts.Limit = limit * 2
	}

	events, err := h.eventRepo.QueryAll(c.Request.Context(), opts)
	if err != nil {
		slog.Error("Database error", "operation", "query_events", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	removed := 0
	if removeDuplicates {
		unique := event.NewDeduplicator().Run(events)
		removed = len(events) - len(unique)
		events = event.NewSorter().Run(unique)
		if len(events) > limit {
			events = events[:limit]
		}
	}

	formatted := make([]event.SnapshotEvent, 0, len(events))
	for _, e := range events {
		formatted = append(formatted, event.NewSnapshotEvent(e))
	}

	c.JSON(http.StatusOK, gin.H{
		"events":             formatted,
		"count":              len(formatted),
		"remove_duplicates":  removeDuplicates,
		"duplicates_removed": removed,
		"timestamp":          time.Now().In(time.Local).Format(time.RFC3339),
	})
}

func (h *Handler) GetEventTypes(c *gin.Context) {
	types, err := h.eventRepo.GetEventTypes(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "get_event_types", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if len(types) == 0 {
		types = standardEventTypes
	}

	c.JSON(http.StatusOK, gin.H{"event_types": types})
}

func (h *Handler) GetSnapshot(c *gin.Context) {
	if _, err := os.Stat(h.snapshotPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Snapshot not published yet"})
			return
		}
		slog.Error("Snapshot unavailable", "path", h.snapshotPath, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Snapshot unavailable"})
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.File(h.snapshotPath)
}

func (h *Handler) APIListSources(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	sources := make([]map[string]any, 0, len(configs))
	for _, sourceConfig := range configs {
		sources = append(sources, map[string]any{
			"name":       sourceConfig.Name,
			"type":       sourceConfig.Type,
			"url":        sourceConfig.URL,
			"organizer":  sourceConfig.Organizer,
			"event_type": sourceConfig.EventType,
			"enabled":    sourceConfig.Settings.Enabled,
			"max_items":  sourceConfig.Settings.MaxItems,
			"timeout":    (time.Duration(sourceConfig.Settings.Timeout) * time.Second).String(),
			"filters":    len(sourceConfig.Filters),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": sources,
		"total":   len(sources),
	})
}

func (h *Handler) APIGetLogs(c *gin.Context) {
	limit := defaultLogsLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	logs, err := h.runLogRepo.GetRunLogs(c.Request.Context(), limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_run_logs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	entries := make([]gin.H, 0, len(logs))
	for _, l := range logs {
		entries = append(entries, gin.H{
			"run_id":        l.RunID,
			"source":        l.Source,
			"events_found":  l.EventsFound,
			"success":       l.Success,
			"error_message": l.ErrorMessage,
			"created_at":    l.CreatedAt.In(time.Local).Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":  entries,
		"count": len(entries),
	})
}

func (h *Handler) APITriggerScrape(c *gin.Context) {
	if running, _ := h.pipeline.Status(); running {
		c.JSON(http.StatusConflict, gin.H{"error": "Pipeline run already in progress"})
		return
	}

	task := tasks.NewRunPipelineTask(h.pipeline, tasks.TriggerManual)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Error enqueueing pipeline task", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue pipeline run",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Pipeline run enqueued",
		"task": gin.H{
			"id":   task.ID,
			"type": task.Type,
		},
	})
}
