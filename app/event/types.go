package event

import (
	"time"
)

const (
	DefaultOrganizer = "Unknown"
	DefaultEventType = "startup_program"
)

// RawCandidate is a best-effort record produced by a source adapter.
// Recognized keys: title, description, date, location, organizer, source,
// source_url, url, event_type, type, image_url, tags.
type RawCandidate map[string]any

type Event struct {
	ID          int64
	Title       string
	Description string // empty when the source provided none
	Date        string // YYYY-MM-DD or empty
	Location    string
	Organizer   string
	SourceURL   string
	EventType   string
	Tags        []string
	ImageURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type DeduplicationStats struct {
	InitialCount      int `json:"initial_count"`
	FinalCount        int `json:"final_count"`
	DuplicatesRemoved int `json:"duplicates_removed"`
}

func NewDeduplicationStats(initial, final int) DeduplicationStats {
	return DeduplicationStats{
		InitialCount:      initial,
		FinalCount:        final,
		DuplicatesRemoved: initial - final,
	}
}
