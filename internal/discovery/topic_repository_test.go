package discovery

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func setupTopicDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE request_topics (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			suffix TEXT NOT NULL,
			timeout_ms INTEGER NOT NULL,
			expected_replies INTEGER NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE (owner_id, suffix)
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

func storableTopic(id, suffix string) *RequestTopic {
	return &RequestTopic{
		ID:              id,
		OwnerID:         "user-001",
		Suffix:          suffix,
		TimeoutMs:       5000,
		ExpectedReplies: 10,
	}
}

func TestSQLiteRequestTopicRepository_SaveAndLoad(t *testing.T) {
	db := setupTopicDB(t)
	repo := NewSQLiteRequestTopicRepository(db)
	ctx := context.Background()

	t.Run("round trip preserves topic", func(t *testing.T) {
		if err := repo.Save(ctx, storableTopic("topic-001", "devices")); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := repo.Load(ctx, "topic-001")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got.Suffix != "devices" || got.TimeoutMs != 5000 || got.ExpectedReplies != 10 {
			t.Errorf("loaded topic = %+v", got)
		}
	})

	t.Run("save replaces existing topic", func(t *testing.T) {
		updated := storableTopic("topic-001", "devices")
		updated.TimeoutMs = 9000
		if err := repo.Save(ctx, updated); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := repo.Load(ctx, "topic-001")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got.TimeoutMs != 9000 {
			t.Errorf("timeout = %d, want 9000", got.TimeoutMs)
		}
	})

	t.Run("load unknown id returns ErrNotFound", func(t *testing.T) {
		if _, err := repo.Load(ctx, "topic-unknown"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Load() error = %v, want ErrNotFound", err)
		}
	})
}

func TestSQLiteRequestTopicRepository_SuffixUniqueness(t *testing.T) {
	db := setupTopicDB(t)
	repo := NewSQLiteRequestTopicRepository(db)
	ctx := context.Background()

	if err := repo.Save(ctx, storableTopic("topic-001", "devices")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	t.Run("duplicate suffix for the same owner is rejected", func(t *testing.T) {
		var verrs *ValidationErrors
		err := repo.Save(ctx, storableTopic("topic-002", "Devices"))
		if !errors.As(err, &verrs) {
			t.Fatalf("Save() error = %v, want validation errors", err)
		}
	})

	t.Run("updating a topic does not collide with itself", func(t *testing.T) {
		updated := storableTopic("topic-001", "devices")
		updated.ExpectedReplies = 50
		if err := repo.Save(ctx, updated); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	})

	t.Run("same suffix for a different owner is allowed", func(t *testing.T) {
		other := storableTopic("topic-003", "devices")
		other.OwnerID = "user-002"
		if err := repo.Save(ctx, other); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	})
}

func TestSQLiteRequestTopicRepository_ListByOwner(t *testing.T) {
	db := setupTopicDB(t)
	repo := NewSQLiteRequestTopicRepository(db)
	ctx := context.Background()

	for _, topic := range []*RequestTopic{
		storableTopic("topic-002", "sensors"),
		storableTopic("topic-001", "devices"),
	} {
		if err := repo.Save(ctx, topic); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	topics, err := repo.ListByOwner(ctx, "user-001")
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(topics) != 2 {
		t.Fatalf("topic count = %d, want 2", len(topics))
	}
	if topics[0].Suffix != "devices" || topics[1].Suffix != "sensors" {
		t.Errorf("topics not ordered by suffix: %v, %v", topics[0].Suffix, topics[1].Suffix)
	}

	none, err := repo.ListByOwner(ctx, "user-unknown")
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("unknown owner topic count = %d, want 0", len(none))
	}
}

func TestSQLiteRequestTopicRepository_Delete(t *testing.T) {
	db := setupTopicDB(t)
	repo := NewSQLiteRequestTopicRepository(db)
	ctx := context.Background()

	if err := repo.Save(ctx, storableTopic("topic-001", "devices")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := repo.Delete(ctx, "topic-001"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "topic-001"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete() error = %v, want ErrNotFound", err)
	}
}
