package discovery

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CandidateDevicesRepository defines the persistence operations for
// candidate device containers. This abstraction allows for different
// implementations (SQLite, mock, etc.) and enables unit testing without
// database dependencies.
type CandidateDevicesRepository interface {
	// Load retrieves the stored container for a device template.
	// Returns ErrNotFound if no container is stored.
	Load(ctx context.Context, templateID string) (*CandidateDevicesContainer, error)

	// Save stores a container, replacing any previously stored one for the
	// same device template.
	Save(ctx context.Context, container *CandidateDevicesContainer) error

	// Exists reports whether a container is stored for a device template.
	Exists(ctx context.Context, templateID string) (bool, error)

	// Delete removes the stored container for a device template.
	// Returns ErrNotFound if no container is stored.
	Delete(ctx context.Context, templateID string) error
}

// SQLiteCandidateDevicesRepository implements CandidateDevicesRepository
// using SQLite. Containers are stored as JSON documents keyed by template
// ID.
type SQLiteCandidateDevicesRepository struct {
	db *sql.DB
}

// NewSQLiteCandidateDevicesRepository creates a new SQLite-backed
// repository. The db parameter should be an open SQLite connection.
func NewSQLiteCandidateDevicesRepository(db *sql.DB) *SQLiteCandidateDevicesRepository {
	return &SQLiteCandidateDevicesRepository{db: db}
}

// Load retrieves the stored container for a device template.
func (r *SQLiteCandidateDevicesRepository) Load(ctx context.Context, templateID string) (*CandidateDevicesContainer, error) {
	query := `
		SELECT container
		FROM candidate_devices
		WHERE template_id = ?`

	var doc string
	err := r.db.QueryRowContext(ctx, query, templateID).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying candidate devices: %w", err)
	}

	var container CandidateDevicesContainer
	if err := json.Unmarshal([]byte(doc), &container); err != nil {
		return nil, fmt.Errorf("unmarshaling candidate devices: %w", err)
	}
	return &container, nil
}

// Save stores a container, replacing any previously stored one for the same
// device template.
func (r *SQLiteCandidateDevicesRepository) Save(ctx context.Context, container *CandidateDevicesContainer) error {
	if container == nil {
		return ErrNilContainer
	}
	if container.DeviceTemplateID == "" {
		return fmt.Errorf("saving candidate devices: template id is empty")
	}

	doc, err := json.Marshal(container)
	if err != nil {
		return fmt.Errorf("marshaling candidate devices: %w", err)
	}

	query := `
		INSERT INTO candidate_devices (template_id, container, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (template_id) DO UPDATE SET
			container = excluded.container,
			updated_at = excluded.updated_at`

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := r.db.ExecContext(ctx, query, container.DeviceTemplateID, string(doc), now); err != nil {
		return fmt.Errorf("saving candidate devices: %w", err)
	}
	return nil
}

// Exists reports whether a container is stored for a device template.
func (r *SQLiteCandidateDevicesRepository) Exists(ctx context.Context, templateID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM candidate_devices WHERE template_id = ?
		)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, templateID).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking candidate devices: %w", err)
	}
	return exists, nil
}

// Delete removes the stored container for a device template.
func (r *SQLiteCandidateDevicesRepository) Delete(ctx context.Context, templateID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM candidate_devices WHERE template_id = ?`, templateID)
	if err != nil {
		return fmt.Errorf("deleting candidate devices: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting candidate devices: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
