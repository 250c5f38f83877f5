package database

import (
	"context"
	"errors"
	"testing"
)

type stubRegistry struct{ RegistryWriter }

func TestGetRegistry(t *testing.T) {
	t.Cleanup(func() { RegisterPostgresBackend(nil) })

	RegisterPostgresBackend(nil)
	if IsInitialized() {
		t.Fatal("expected backend to be uninitialized")
	}
	if _, err := GetRegistry(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}

	stub := &stubRegistry{}
	RegisterPostgresBackend(func() RegistryWriter { return stub })
	if !IsInitialized() {
		t.Fatal("expected backend to be initialized")
	}
	got, err := GetRegistry(context.Background())
	if err != nil {
		t.Fatalf("GetRegistry failed: %v", err)
	}
	if got != stub {
		t.Error("expected registered registry to be returned")
	}
}

func TestEntryHasFaces(t *testing.T) {
	if (Entry{}).HasFaces() {
		t.Error("expected entry without face ids to report no faces")
	}
	if !(Entry{FaceIDs: []string{"f1"}}).HasFaces() {
		t.Error("expected entry with a face id to report faces")
	}
}
