package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/kozaktomas/sketch-match/internal/database"
)

func TestMockRegistry(t *testing.T) {
	ctx := context.Background()
	reg := NewMockRegistry()

	if err := reg.Record(ctx, database.Entry{ExternalID: "Photos_b.jpg", ObjectKey: "Photos/b.jpg", CollectionID: "Records"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	reg.AddEntry(database.Entry{ExternalID: "Photos_a.jpg", ObjectKey: "Photos/a.jpg", CollectionID: "Records"})
	reg.AddEntry(database.Entry{ExternalID: "Other_c.jpg", ObjectKey: "Other/c.jpg", CollectionID: "Records"})

	got, err := reg.Lookup(ctx, "Records", "Photos/b.jpg")
	if err != nil || got == nil {
		t.Fatalf("Lookup failed: %v, %v", got, err)
	}
	if got.IndexedAt.IsZero() {
		t.Error("expected Record to stamp indexed time")
	}
	if got, _ := reg.Lookup(ctx, "Archive", "Photos/b.jpg"); got != nil {
		t.Errorf("expected no entry in another collection, got %+v", got)
	}

	entries, _ := reg.List(ctx, "Photos/")
	if len(entries) != 2 || entries[0].ObjectKey != "Photos/a.jpg" {
		t.Errorf("unexpected listing: %+v", entries)
	}

	if err := reg.Delete(ctx, "Records", "Other/c.jpg"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if n, _ := reg.Count(ctx); n != 2 {
		t.Errorf("expected 2 entries, got %d", n)
	}
	if reg.RecordCalls != 1 {
		t.Errorf("expected 1 record call, got %d", reg.RecordCalls)
	}
}

func TestMockRegistry_SharedExternalID(t *testing.T) {
	ctx := context.Background()
	reg := NewMockRegistry()
	reg.AddEntry(database.Entry{ExternalID: "Photos_a_b.jpg", ObjectKey: "Photos/a_b.jpg", CollectionID: "Records", FaceIDs: []string{"face-underscore"}})
	reg.AddEntry(database.Entry{ExternalID: "Photos_a_b.jpg", ObjectKey: "Photos/a b.jpg", CollectionID: "Records", FaceIDs: []string{"face-space"}})

	entries, err := reg.ListByExternalID(ctx, "Records", "Photos_a_b.jpg")
	if err != nil {
		t.Fatalf("ListByExternalID failed: %v", err)
	}
	if len(entries) != 2 || entries[0].ObjectKey != "Photos/a b.jpg" {
		t.Errorf("expected both keys ordered by object key, got %+v", entries)
	}

	got, err := reg.LookupFace(ctx, "Records", "face-space")
	if err != nil || got == nil {
		t.Fatalf("LookupFace failed: %v, %v", got, err)
	}
	if got.ObjectKey != "Photos/a b.jpg" {
		t.Errorf("expected face-space to resolve to 'Photos/a b.jpg', got %q", got.ObjectKey)
	}
	if got, _ := reg.LookupFace(ctx, "Records", "face-unknown"); got != nil {
		t.Errorf("expected nil for unknown face, got %+v", got)
	}
}

func TestMockRegistry_ErrorInjection(t *testing.T) {
	ctx := context.Background()
	reg := NewMockRegistry()
	boom := errors.New("boom")
	reg.RecordError = boom
	reg.LookupError = boom

	if err := reg.Record(ctx, database.Entry{ExternalID: "x"}); !errors.Is(err, boom) {
		t.Errorf("expected injected record error, got %v", err)
	}
	if _, err := reg.Lookup(ctx, "Records", "x"); !errors.Is(err, boom) {
		t.Errorf("expected injected lookup error, got %v", err)
	}
	if _, err := reg.LookupFace(ctx, "Records", "face-1"); !errors.Is(err, boom) {
		t.Errorf("expected injected lookup error, got %v", err)
	}
}
