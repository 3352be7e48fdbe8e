package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const defaultRunLogLimit = 50

var _ RunLogRepository = (*RunLogRepo)(nil)

type RunLogRepo struct {
	db *DB
}

func NewRunLogRepository(db *DB) *RunLogRepo {
	return &RunLogRepo{db: db}
}

func (r *RunLogRepo) AppendRunLog(ctx context.Context, entry RunLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO run_logs (run_id, source, events_found, success, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.RunID, entry.Source, entry.EventsFound, entry.Success, nullString(entry.ErrorMessage), formatTimestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to append run log: %w", err)
	}
	return nil
}

func (r *RunLogRepo) GetRunLogs(ctx context.Context, limit int) ([]RunLog, error) {
	if limit <= 0 {
		limit = defaultRunLogLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_id, source, events_found, success, error_message, created_at
		FROM run_logs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run logs: %w", err)
	}
	defer rows.Close()

	var logs []RunLog
	for rows.Next() {
		var (
			entry        RunLog
			errorMessage sql.NullString
			createdAt    string
		)
		if err := rows.Scan(&entry.ID, &entry.RunID, &entry.Source, &entry.EventsFound,
			&entry.Success, &errorMessage, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan run log: %w", err)
		}
		entry.ErrorMessage = errorMessage.String
		entry.CreatedAt = parseTimestamp(createdAt)
		logs = append(logs, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate run logs: %w", err)
	}

	return logs, nil
}
