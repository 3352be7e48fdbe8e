package event

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
)

// SnapshotEvent is the published shape of an event. url, source and type
// mirror source_url, organizer and event_type for older frontends.
type SnapshotEvent struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Date        string   `json:"date,omitempty"`
	Location    string   `json:"location,omitempty"`
	Organizer   string   `json:"organizer"`
	SourceURL   string   `json:"source_url"`
	EventType   string   `json:"event_type"`
	Tags        []string `json:"tags"`
	ImageURL    string   `json:"image_url,omitempty"`
	URL         string   `json:"url"`
	Source      string   `json:"source"`
	Type        string   `json:"type"`
}

type Snapshot struct {
	Events             []SnapshotEvent    `json:"events"`
	Count              int                `json:"count"`
	LastUpdated        string             `json:"last_updated"`
	ScrapingSources    []string           `json:"scraping_sources"`
	DeduplicationStats DeduplicationStats `json:"deduplication_stats"`
}

func NewSnapshotEvent(e Event) SnapshotEvent {
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}

	return SnapshotEvent{
		Title:       e.Title,
		Description: e.Description,
		Date:        e.Date,
		Location:    e.Location,
		Organizer:   e.Organizer,
		SourceURL:   e.SourceURL,
		EventType:   e.EventType,
		Tags:        tags,
		ImageURL:    e.ImageURL,
		URL:         e.SourceURL,
		Source:      e.Organizer,
		Type:        e.EventType,
	}
}

func NewSnapshot(events []Event, sources []string, stats DeduplicationStats, generatedAt time.Time) *Snapshot {
	formatted := make([]SnapshotEvent, 0, len(events))
	for _, e := range events {
		formatted = append(formatted, NewSnapshotEvent(e))
	}

	if sources == nil {
		sources = []string{}
	}

	return &Snapshot{
		Events:             formatted,
		Count:              len(formatted),
		LastUpdated:        generatedAt.In(time.Local).Format(time.RFC3339),
		ScrapingSources:    sources,
		DeduplicationStats: stats,
	}
}

type SnapshotWriter struct {
	path string
}

func NewSnapshotWriter(path string) *SnapshotWriter {
	return &SnapshotWriter{path: path}
}

func (w *SnapshotWriter) Path() string {
	return w.path
}

// Run writes the snapshot to a temporary file next to the target and renames
// it into place, so readers never observe a partial document.
func (w *SnapshotWriter) Run(snapshot *Snapshot) (err error) {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary snapshot: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	encoder := json.NewEncoder(tmp)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err = encoder.Encode(snapshot); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to set snapshot permissions: %w", err)
	}
	if err = os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	return nil
}

func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return &snapshot, nil
}
