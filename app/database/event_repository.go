package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/lysyi3m/event-comb/app/event"
)

var _ EventRepository = (*EventRepo)(nil)

type EventRepo struct {
	db *DB
}

func NewEventRepository(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

// UpsertEvent inserts e or, when (title, organizer, source_url) already
// exists, overwrites its mutable fields. It returns the row id either way.
func (r *EventRepo) UpsertEvent(ctx context.Context, e event.Event) (int64, error) {
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return 0, fmt.Errorf("failed to encode tags: %w", err)
	}

	now := formatTimestamp(time.Now())

	var id int64
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO events (
			title, description, date, location, organizer, source_url,
			event_type, tags, image_url, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (title, organizer, source_url) DO UPDATE SET
			description = excluded.description,
			date = excluded.date,
			location = excluded.location,
			event_type = excluded.event_type,
			tags = excluded.tags,
			image_url = excluded.image_url,
			updated_at = excluded.updated_at
		RETURNING id
	`, e.Title, nullString(e.Description), nullString(e.Date), nullString(e.Location),
		e.Organizer, e.SourceURL, e.EventType, string(tagsJSON), nullString(e.ImageURL),
		now, now).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert event: %w", err)
	}

	return id, nil
}

// QueryAll returns stored events, most recently inserted first.
func (r *EventRepo) QueryAll(ctx context.Context, opts QueryOptions) ([]event.Event, error) {
	query := `
		SELECT id, title, description, date, location, organizer, source_url,
			event_type, tags, image_url, created_at, updated_at
		FROM events`
	var args []any

	if opts.EventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, opts.EventType)
	}

	query += ` ORDER BY created_at DESC, id DESC`

	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return events, nil
}

func (r *EventRepo) GetEventCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get event count: %w", err)
	}
	return count, nil
}

func (r *EventRepo) GetEventTypes(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT event_type FROM events ORDER BY event_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to query event types: %w", err)
	}
	defer rows.Close()

	var types []string
	for rows.Next() {
		var eventType string
		if err := rows.Scan(&eventType); err != nil {
			return nil, fmt.Errorf("failed to scan event type: %w", err)
		}
		types = append(types, eventType)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event types: %w", err)
	}

	return types, nil
}

// DeleteOlderThan removes events that no run has refreshed since cutoff.
func (r *EventRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE updated_at < ?`, formatTimestamp(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old events: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted rows: %w", err)
	}
	return deleted, nil
}

func scanEvent(rows *sql.Rows) (event.Event, error) {
	var (
		e                                     event.Event
		description, date, location, imageURL sql.NullString
		tagsJSON, createdAt, updatedAt        string
	)

	err := rows.Scan(&e.ID, &e.Title, &description, &date, &location, &e.Organizer,
		&e.SourceURL, &e.EventType, &tagsJSON, &imageURL, &createdAt, &updatedAt)
	if err != nil {
		return event.Event{}, fmt.Errorf("failed to scan event: %w", err)
	}

	e.Description = description.String
	e.Date = date.String
	e.Location = location.String
	e.ImageURL = imageURL.String
	e.CreatedAt = parseTimestamp(createdAt)
	e.UpdatedAt = parseTimestamp(updatedAt)

	e.Tags = []string{}
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &e.Tags); err != nil {
			return event.Event{}, fmt.Errorf("failed to decode tags for event %d: %w", e.ID, err)
		}
	}

	return e, nil
}
