package discovery

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DeviceTemplateRepository defines the persistence operations for device
// templates.
type DeviceTemplateRepository interface {
	// Load retrieves a device template by id. Returns ErrNotFound if no
	// template is stored.
	Load(ctx context.Context, templateID string) (*DeviceTemplate, error)

	// Save stores a template, replacing any previously stored one with the
	// same id. The template is validated first.
	Save(ctx context.Context, template *DeviceTemplate) error

	// List retrieves all stored templates ordered by id.
	List(ctx context.Context) ([]DeviceTemplate, error)

	// ListByOwner retrieves the templates of one owner ordered by id.
	ListByOwner(ctx context.Context, ownerID string) ([]DeviceTemplate, error)

	// Delete removes a template by id. Returns ErrNotFound if no template
	// is stored.
	Delete(ctx context.Context, templateID string) error
}

// SQLiteDeviceTemplateRepository implements DeviceTemplateRepository using
// SQLite. Templates are stored as JSON documents; the owner column exists
// for per-owner queries.
type SQLiteDeviceTemplateRepository struct {
	db *sql.DB
}

// NewSQLiteDeviceTemplateRepository creates a new SQLite-backed template
// repository.
func NewSQLiteDeviceTemplateRepository(db *sql.DB) *SQLiteDeviceTemplateRepository {
	return &SQLiteDeviceTemplateRepository{db: db}
}

// Load retrieves a device template by id.
func (r *SQLiteDeviceTemplateRepository) Load(ctx context.Context, templateID string) (*DeviceTemplate, error) {
	var doc string
	err := r.db.QueryRowContext(ctx,
		`SELECT document FROM device_templates WHERE id = ?`, templateID).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying device template: %w", err)
	}

	var template DeviceTemplate
	if err := json.Unmarshal([]byte(doc), &template); err != nil {
		return nil, fmt.Errorf("unmarshaling device template: %w", err)
	}
	return &template, nil
}

// Save validates and stores a template, replacing any previously stored one
// with the same id.
func (r *SQLiteDeviceTemplateRepository) Save(ctx context.Context, template *DeviceTemplate) error {
	if template == nil {
		return ErrNilTemplate
	}
	if err := template.Validate(); err != nil {
		return err
	}

	doc, err := json.Marshal(template)
	if err != nil {
		return fmt.Errorf("marshaling device template: %w", err)
	}

	query := `
		INSERT INTO device_templates (id, owner_id, name, document, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = excluded.owner_id,
			name = excluded.name,
			document = excluded.document,
			updated_at = excluded.updated_at`

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := r.db.ExecContext(ctx, query, template.ID, template.OwnerID, template.Name, string(doc), now); err != nil {
		return fmt.Errorf("saving device template: %w", err)
	}
	return nil
}

// List retrieves all stored templates ordered by id.
func (r *SQLiteDeviceTemplateRepository) List(ctx context.Context) ([]DeviceTemplate, error) {
	return r.list(ctx, `SELECT document FROM device_templates ORDER BY id`)
}

// ListByOwner retrieves the templates of one owner ordered by id.
func (r *SQLiteDeviceTemplateRepository) ListByOwner(ctx context.Context, ownerID string) ([]DeviceTemplate, error) {
	return r.list(ctx, `SELECT document FROM device_templates WHERE owner_id = ? ORDER BY id`, ownerID)
}

func (r *SQLiteDeviceTemplateRepository) list(ctx context.Context, query string, args ...any) ([]DeviceTemplate, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying device templates: %w", err)
	}
	defer rows.Close()

	var templates []DeviceTemplate
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning device template: %w", err)
		}

		var template DeviceTemplate
		if err := json.Unmarshal([]byte(doc), &template); err != nil {
			return nil, fmt.Errorf("unmarshaling device template: %w", err)
		}
		templates = append(templates, template)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device templates: %w", err)
	}
	return templates, nil
}

// Delete removes a template by id.
func (r *SQLiteDeviceTemplateRepository) Delete(ctx context.Context, templateID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM device_templates WHERE id = ?`, templateID)
	if err != nil {
		return fmt.Errorf("deleting device template: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting device template: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
