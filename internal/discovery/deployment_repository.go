package discovery

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Deployment records that something on the platform uses a device
// template's candidate devices. As long as at least one deployment
// references a template, its stored candidate devices must not be deleted.
type Deployment struct {
	ID               string `json:"id"`
	DeviceTemplateID string `json:"deviceTemplateId"`
	Name             string `json:"name,omitempty"`
}

// DeploymentRepository defines the persistence operations for deployments.
type DeploymentRepository interface {
	// Save stores a deployment, replacing any previously stored one with
	// the same id.
	Save(ctx context.Context, deployment *Deployment) error

	// Delete removes a deployment by id. Returns ErrNotFound if no
	// deployment is stored.
	Delete(ctx context.Context, deploymentID string) error

	// InUse reports whether any deployment references the device template.
	InUse(ctx context.Context, deviceTemplateID string) (bool, error)
}

// SQLiteDeploymentRepository implements DeploymentRepository using SQLite.
type SQLiteDeploymentRepository struct {
	db *sql.DB
}

// NewSQLiteDeploymentRepository creates a new SQLite-backed deployment
// repository.
func NewSQLiteDeploymentRepository(db *sql.DB) *SQLiteDeploymentRepository {
	return &SQLiteDeploymentRepository{db: db}
}

// Save stores a deployment, replacing any previously stored one with the
// same id.
func (r *SQLiteDeploymentRepository) Save(ctx context.Context, deployment *Deployment) error {
	if deployment == nil {
		return fmt.Errorf("saving deployment: deployment is nil")
	}
	if deployment.ID == "" || deployment.DeviceTemplateID == "" {
		return fmt.Errorf("saving deployment: id and template id must not be empty")
	}

	query := `
		INSERT INTO deployments (id, template_id, name, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			template_id = excluded.template_id,
			name = excluded.name,
			updated_at = excluded.updated_at`

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := r.db.ExecContext(ctx, query, deployment.ID, deployment.DeviceTemplateID, deployment.Name, now); err != nil {
		return fmt.Errorf("saving deployment: %w", err)
	}
	return nil
}

// Delete removes a deployment by id.
func (r *SQLiteDeploymentRepository) Delete(ctx context.Context, deploymentID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM deployments WHERE id = ?`, deploymentID)
	if err != nil {
		return fmt.Errorf("deleting deployment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting deployment: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// InUse reports whether any deployment references the device template.
func (r *SQLiteDeploymentRepository) InUse(ctx context.Context, deviceTemplateID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM deployments WHERE template_id = ?
		)`

	var inUse bool
	if err := r.db.QueryRowContext(ctx, query, deviceTemplateID).Scan(&inUse); err != nil {
		return false, fmt.Errorf("checking deployments: %w", err)
	}
	return inUse, nil
}
