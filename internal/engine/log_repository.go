package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// LogRepository defines the persistence operations for discovery logs.
type LogRepository interface {
	// Save stores a closed discovery log.
	Save(ctx context.Context, log *DiscoveryLog) error

	// ListByTemplate retrieves the most recent logs for a device template,
	// newest first.
	ListByTemplate(ctx context.Context, deviceTemplateID string, limit int) ([]DiscoveryLog, error)

	// DeleteByTemplate removes all logs of a device template.
	DeleteByTemplate(ctx context.Context, deviceTemplateID string) error

	// Prune removes logs started before the cutoff and returns how many
	// were removed.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// SQLiteLogRepository implements LogRepository using SQLite. Logs are
// stored as JSON documents with indexed columns for querying.
type SQLiteLogRepository struct {
	db *sql.DB
}

// NewSQLiteLogRepository creates a new SQLite-backed log repository.
func NewSQLiteLogRepository(db *sql.DB) *SQLiteLogRepository {
	return &SQLiteLogRepository{db: db}
}

// Save stores a closed discovery log.
func (r *SQLiteLogRepository) Save(ctx context.Context, log *DiscoveryLog) error {
	if log == nil {
		return fmt.Errorf("saving discovery log: log is nil")
	}

	doc, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("marshaling discovery log: %w", err)
	}

	var endedAt any
	if log.EndTime != nil {
		endedAt = log.EndTime.UTC().Format(time.RFC3339Nano)
	}

	query := `
		INSERT INTO discovery_logs (id, template_id, task_name, triggered_by, started_at, ended_at, document)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		log.ID,
		log.DeviceTemplateID,
		log.TaskName,
		string(log.Trigger),
		log.StartTime.UTC().Format(time.RFC3339Nano),
		endedAt,
		string(doc),
	)
	if err != nil {
		return fmt.Errorf("saving discovery log: %w", err)
	}
	return nil
}

// ListByTemplate retrieves the most recent logs for a device template.
func (r *SQLiteLogRepository) ListByTemplate(ctx context.Context, deviceTemplateID string, limit int) ([]DiscoveryLog, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT document
		FROM discovery_logs
		WHERE template_id = ?
		ORDER BY started_at DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, deviceTemplateID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying discovery logs: %w", err)
	}
	defer rows.Close()

	var logs []DiscoveryLog
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning discovery log: %w", err)
		}

		var log DiscoveryLog
		if err := json.Unmarshal([]byte(doc), &log); err != nil {
			return nil, fmt.Errorf("unmarshaling discovery log: %w", err)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating discovery logs: %w", err)
	}
	return logs, nil
}

// DeleteByTemplate removes all logs of a device template.
func (r *SQLiteLogRepository) DeleteByTemplate(ctx context.Context, deviceTemplateID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM discovery_logs WHERE template_id = ?`, deviceTemplateID); err != nil {
		return fmt.Errorf("deleting discovery logs: %w", err)
	}
	return nil
}

// Prune removes logs started before the cutoff.
func (r *SQLiteLogRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM discovery_logs WHERE started_at < ?`,
		cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("pruning discovery logs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning discovery logs: %w", err)
	}
	return rows, nil
}
