package database

import (
	"time"
)

type RunLog struct {
	ID           int64
	RunID        string
	Source       string
	EventsFound  int
	Success      bool
	ErrorMessage string
	CreatedAt    time.Time
}

type QueryOptions struct {
	Limit     int    // 0 returns every row
	EventType string // empty matches all types
}
