package discovery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RequestTopicRepository defines the persistence operations for request
// topics.
type RequestTopicRepository interface {
	// Load retrieves a request topic by id. Returns ErrNotFound if no
	// topic is stored.
	Load(ctx context.Context, topicID string) (*RequestTopic, error)

	// Save validates and stores a topic, replacing any previously stored
	// one with the same id. The owner's other topics act as uniqueness
	// siblings for suffix validation.
	Save(ctx context.Context, topic *RequestTopic) error

	// ListByOwner retrieves all topics of one owner ordered by suffix.
	ListByOwner(ctx context.Context, ownerID string) ([]RequestTopic, error)

	// Delete removes a topic by id. Returns ErrNotFound if no topic is
	// stored.
	Delete(ctx context.Context, topicID string) error
}

// SQLiteRequestTopicRepository implements RequestTopicRepository using
// SQLite. Topics are flat records, so they map to plain columns rather
// than a JSON document.
type SQLiteRequestTopicRepository struct {
	db *sql.DB
}

// NewSQLiteRequestTopicRepository creates a new SQLite-backed request topic
// repository.
func NewSQLiteRequestTopicRepository(db *sql.DB) *SQLiteRequestTopicRepository {
	return &SQLiteRequestTopicRepository{db: db}
}

// Load retrieves a request topic by id.
func (r *SQLiteRequestTopicRepository) Load(ctx context.Context, topicID string) (*RequestTopic, error) {
	var topic RequestTopic
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, suffix, timeout_ms, expected_replies
		 FROM request_topics WHERE id = ?`, topicID).
		Scan(&topic.ID, &topic.OwnerID, &topic.Suffix, &topic.TimeoutMs, &topic.ExpectedReplies)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying request topic: %w", err)
	}
	return &topic, nil
}

// Save validates and stores a topic, replacing any previously stored one
// with the same id.
func (r *SQLiteRequestTopicRepository) Save(ctx context.Context, topic *RequestTopic) error {
	if topic == nil {
		return fmt.Errorf("saving request topic: topic is nil")
	}

	siblings, err := r.ListByOwner(ctx, topic.OwnerID)
	if err != nil {
		return err
	}
	if err := topic.Validate(siblings); err != nil {
		return err
	}

	query := `
		INSERT INTO request_topics (id, owner_id, suffix, timeout_ms, expected_replies, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = excluded.owner_id,
			suffix = excluded.suffix,
			timeout_ms = excluded.timeout_ms,
			expected_replies = excluded.expected_replies,
			updated_at = excluded.updated_at`

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := r.db.ExecContext(ctx, query,
		topic.ID, topic.OwnerID, topic.Suffix, topic.TimeoutMs, topic.ExpectedReplies, now); err != nil {
		return fmt.Errorf("saving request topic: %w", err)
	}
	return nil
}

// ListByOwner retrieves all topics of one owner ordered by suffix.
func (r *SQLiteRequestTopicRepository) ListByOwner(ctx context.Context, ownerID string) ([]RequestTopic, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, suffix, timeout_ms, expected_replies
		 FROM request_topics WHERE owner_id = ? ORDER BY suffix`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying request topics: %w", err)
	}
	defer rows.Close()

	var topics []RequestTopic
	for rows.Next() {
		var topic RequestTopic
		if err := rows.Scan(&topic.ID, &topic.OwnerID, &topic.Suffix, &topic.TimeoutMs, &topic.ExpectedReplies); err != nil {
			return nil, fmt.Errorf("scanning request topic: %w", err)
		}
		topics = append(topics, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating request topics: %w", err)
	}
	return topics, nil
}

// Delete removes a topic by id.
func (r *SQLiteRequestTopicRepository) Delete(ctx context.Context, topicID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM request_topics WHERE id = ?`, topicID)
	if err != nil {
		return fmt.Errorf("deleting request topic: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting request topic: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
