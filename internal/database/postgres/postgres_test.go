//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/kozaktomas/sketch-match/internal/config"
	"github.com/kozaktomas/sketch-match/internal/database"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(ctx, cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if err := pool.Migrate(ctx, zap.NewNop()); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func TestRegistryRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewRegistryRepository(pool)

	t.Run("RecordAndLookup", func(t *testing.T) {
		err := repo.Record(ctx, database.Entry{
			ExternalID:   "Photos_Jose_Garcia.jpg",
			ObjectKey:    "Photos/José García.jpg",
			CollectionID: "Records",
			FaceIDs:      []string{"face-1", "face-2"},
		})
		if err != nil {
			t.Fatalf("Failed to record entry: %v", err)
		}

		got, err := repo.Lookup(ctx, "Records", "Photos/José García.jpg")
		if err != nil {
			t.Fatalf("Failed to lookup entry: %v", err)
		}
		if got == nil {
			t.Fatal("Expected entry, got nil")
		}
		if got.ObjectKey != "Photos/José García.jpg" {
			t.Errorf("Expected original object key, got '%s'", got.ObjectKey)
		}
		if len(got.FaceIDs) != 2 || got.FaceIDs[0] != "face-1" {
			t.Errorf("Expected face ids [face-1 face-2], got %v", got.FaceIDs)
		}
		if got.IndexedAt.IsZero() {
			t.Error("Expected indexed_at to be set")
		}
	})

	t.Run("LookupMissing", func(t *testing.T) {
		got, err := repo.Lookup(ctx, "Records", "Photos/nobody.jpg")
		if err != nil {
			t.Fatalf("Failed to lookup entry: %v", err)
		}
		if got != nil {
			t.Errorf("Expected nil, got %+v", got)
		}
	})

	t.Run("RecordReplaces", func(t *testing.T) {
		err := repo.Record(ctx, database.Entry{
			ExternalID:   "Photos_Jose_Garcia.jpg",
			ObjectKey:    "Photos/José García.jpg",
			CollectionID: "Records",
		})
		if err != nil {
			t.Fatalf("Failed to record entry: %v", err)
		}

		got, _ := repo.Lookup(ctx, "Records", "Photos/José García.jpg")
		if got == nil || len(got.FaceIDs) != 0 {
			t.Errorf("Expected re-recorded entry without faces, got %+v", got)
		}
	})

	t.Run("SharedExternalID", func(t *testing.T) {
		repo.Record(ctx, database.Entry{ExternalID: "Photos_a_b.jpg", ObjectKey: "Photos/a b.jpg", CollectionID: "Faces", FaceIDs: []string{"face-space"}})
		repo.Record(ctx, database.Entry{ExternalID: "Photos_a_b.jpg", ObjectKey: "Photos/a_b.jpg", CollectionID: "Faces", FaceIDs: []string{"face-underscore"}})

		entries, err := repo.ListByExternalID(ctx, "Faces", "Photos_a_b.jpg")
		if err != nil {
			t.Fatalf("Failed to list by external id: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("Expected both keys to be kept, got %d", len(entries))
		}

		got, err := repo.LookupFace(ctx, "Faces", "face-space")
		if err != nil {
			t.Fatalf("Failed to lookup face: %v", err)
		}
		if got == nil || got.ObjectKey != "Photos/a b.jpg" {
			t.Errorf("Expected face-space to resolve to 'Photos/a b.jpg', got %+v", got)
		}
		if got, _ := repo.LookupFace(ctx, "Records", "face-space"); got != nil {
			t.Errorf("Expected no match in another collection, got %+v", got)
		}

		for _, key := range []string{"Photos/a b.jpg", "Photos/a_b.jpg"} {
			if err := repo.Delete(ctx, "Faces", key); err != nil {
				t.Fatalf("Failed to delete: %v", err)
			}
		}
	})

	t.Run("ListByPrefix", func(t *testing.T) {
		repo.Record(ctx, database.Entry{ExternalID: "Other_x.jpg", ObjectKey: "Other/x.jpg", CollectionID: "Records"})
		repo.Record(ctx, database.Entry{ExternalID: "Photos_a.jpg", ObjectKey: "Photos/a.jpg", CollectionID: "Records"})

		entries, err := repo.List(ctx, "Photos/")
		if err != nil {
			t.Fatalf("Failed to list entries: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("Expected 2 entries, got %d", len(entries))
		}
		if entries[0].ObjectKey != "Photos/José García.jpg" || entries[1].ObjectKey != "Photos/a.jpg" {
			t.Errorf("Unexpected order: %s, %s", entries[0].ObjectKey, entries[1].ObjectKey)
		}
	})

	t.Run("CountAndDelete", func(t *testing.T) {
		count, err := repo.Count(ctx)
		if err != nil {
			t.Fatalf("Failed to count: %v", err)
		}
		if count != 3 {
			t.Errorf("Expected 3, got %d", count)
		}

		if err := repo.Delete(ctx, "Records", "Other/x.jpg"); err != nil {
			t.Fatalf("Failed to delete: %v", err)
		}
		if err := repo.Delete(ctx, "Records", "Other/x.jpg"); err != nil {
			t.Errorf("Deleting a missing entry should not fail: %v", err)
		}
		count, _ = repo.Count(ctx)
		if count != 2 {
			t.Errorf("Expected 2 after delete, got %d", count)
		}
	})
}

func TestMigrations(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()

	// Second run must be a no-op
	if err := pool.Migrate(ctx, zap.NewNop()); err != nil {
		t.Fatalf("Failed to re-run migrations: %v", err)
	}

	applied, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatalf("Failed to get applied migrations: %v", err)
	}

	expectedMigrations := []string{
		"001_create_face_registry.sql",
		"002_create_face_registry_indexes.sql",
	}

	if len(applied) != len(expectedMigrations) {
		t.Errorf("Expected %d migrations, got %d", len(expectedMigrations), len(applied))
	}

	for i, expected := range expectedMigrations {
		if i < len(applied) && applied[i] != expected {
			t.Errorf("Migration %d: expected '%s', got '%s'", i, expected, applied[i])
		}
	}
}
