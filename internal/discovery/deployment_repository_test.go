package discovery

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func setupDeploymentDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE deployments (
			id TEXT PRIMARY KEY,
			template_id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestSQLiteDeploymentRepository_InUse(t *testing.T) {
	db := setupDeploymentDB(t)
	repo := NewSQLiteDeploymentRepository(db)
	ctx := context.Background()

	if err := repo.Save(ctx, &Deployment{ID: "dep-001", DeviceTemplateID: "tpl-001", Name: "Living Room"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := repo.Save(ctx, &Deployment{ID: "dep-002", DeviceTemplateID: "tpl-001"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	inUse, err := repo.InUse(ctx, "tpl-001")
	if err != nil {
		t.Fatalf("InUse() error = %v", err)
	}
	if !inUse {
		t.Error("InUse() = false, want true")
	}

	free, err := repo.InUse(ctx, "tpl-002")
	if err != nil {
		t.Fatalf("InUse() error = %v", err)
	}
	if free {
		t.Error("InUse() = true, want false")
	}

	// A template stays in use until its last deployment is gone.
	if err := repo.Delete(ctx, "dep-001"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	inUse, err = repo.InUse(ctx, "tpl-001")
	if err != nil {
		t.Fatalf("InUse() error = %v", err)
	}
	if !inUse {
		t.Error("InUse() = false after deleting one of two deployments, want true")
	}

	if err := repo.Delete(ctx, "dep-002"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	inUse, err = repo.InUse(ctx, "tpl-001")
	if err != nil {
		t.Fatalf("InUse() error = %v", err)
	}
	if inUse {
		t.Error("InUse() = true after deleting all deployments, want false")
	}
}

func TestSQLiteDeploymentRepository_Save(t *testing.T) {
	db := setupDeploymentDB(t)
	repo := NewSQLiteDeploymentRepository(db)
	ctx := context.Background()

	t.Run("rejects nil deployment", func(t *testing.T) {
		if err := repo.Save(ctx, nil); err == nil {
			t.Fatal("expected error for nil deployment")
		}
	})

	t.Run("rejects missing ids", func(t *testing.T) {
		if err := repo.Save(ctx, &Deployment{ID: "dep-001"}); err == nil {
			t.Fatal("expected error for missing template id")
		}
	})

	t.Run("save replaces existing deployment", func(t *testing.T) {
		if err := repo.Save(ctx, &Deployment{ID: "dep-001", DeviceTemplateID: "tpl-001"}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if err := repo.Save(ctx, &Deployment{ID: "dep-001", DeviceTemplateID: "tpl-002"}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		inUse, err := repo.InUse(ctx, "tpl-001")
		if err != nil {
			t.Fatalf("InUse() error = %v", err)
		}
		if inUse {
			t.Error("old template id still referenced after replacement")
		}
	})
}

func TestSQLiteDeploymentRepository_Delete(t *testing.T) {
	db := setupDeploymentDB(t)
	repo := NewSQLiteDeploymentRepository(db)
	ctx := context.Background()

	if err := repo.Delete(ctx, "dep-unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete() error = %v, want ErrNotFound", err)
	}
}
