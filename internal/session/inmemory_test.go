package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEnsureFolder_Idempotent(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	first, err := repo.EnsureFolder(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Name != DefaultFolderName {
		t.Errorf("expected default folder name, got %q", first.Name)
	}

	second, err := repo.EnsureFolder(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("folder must be stable per owner: %q vs %q", first.ID, second.ID)
	}

	other, err := repo.EnsureFolder(ctx, "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other.ID == first.ID {
		t.Error("different owners must get different folders")
	}
}

func TestInsertAndGet(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	err := repo.Insert(ctx, &Session{
		SID: "s1", OwnerID: "alice", Name: "s1",
		PosUUIDs: []string{"aaa"},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.GetBySID(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SID != "s1" || got.OwnerID != "alice" {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.UpdatedAt.IsZero() || got.CreatedAt.IsZero() {
		t.Error("timestamps should be set on insert")
	}

	// The returned record is a copy; mutating it must not leak back.
	got.PosUUIDs[0] = "mutated"
	again, _ := repo.GetBySID(ctx, "s1")
	if again.PosUUIDs[0] != "aaa" {
		t.Error("stored state mutated through returned copy")
	}
}

func TestGetBySID_NotFound(t *testing.T) {
	repo := NewInMemoryRepository()
	if _, err := repo.GetBySID(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestListByOwner_NewestFirst(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, sid := range []string{"old", "mid", "new"} {
		err := repo.Insert(ctx, &Session{
			SID: sid, OwnerID: "alice", Name: sid,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("insert %s: %v", sid, err)
		}
	}
	if err := repo.Insert(ctx, &Session{SID: "other", OwnerID: "bob"}); err != nil {
		t.Fatalf("insert other: %v", err)
	}

	out, err := repo.ListByOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(out))
	}
	for i, want := range []string{"new", "mid", "old"} {
		if out[i].SID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, out[i].SID)
		}
	}
}

func TestUpdateMetadata(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	if err := repo.Insert(ctx, &Session{SID: "s1", OwnerID: "alice", Name: "s1", Description: "orig"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	name := "renamed"
	got, err := repo.UpdateMetadata(ctx, "s1", &name, nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Name != "renamed" {
		t.Errorf("name not updated: %q", got.Name)
	}
	if got.Description != "orig" {
		t.Errorf("nil description must leave value unchanged, got %q", got.Description)
	}

	if _, err := repo.UpdateMetadata(ctx, "missing", &name, nil); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSetLabels_Replaces(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	if err := repo.Insert(ctx, &Session{SID: "s1", OwnerID: "alice", PosUUIDs: []string{"old"}}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := repo.SetLabels(ctx, "s1", []string{"p1", "p2"}, []string{"n1"}); err != nil {
		t.Fatalf("set labels: %v", err)
	}
	got, _ := repo.GetBySID(ctx, "s1")
	if len(got.PosUUIDs) != 2 || len(got.NegUUIDs) != 1 {
		t.Errorf("labels not replaced: %+v", got)
	}
	if !got.HasLabels() {
		t.Error("HasLabels should report true")
	}

	// Full replacement with empty sets clears the labels.
	if err := repo.SetLabels(ctx, "s1", nil, nil); err != nil {
		t.Fatalf("clear labels: %v", err)
	}
	got, _ = repo.GetBySID(ctx, "s1")
	if got.HasLabels() {
		t.Errorf("expected labels cleared, got %+v", got)
	}

	if err := repo.SetLabels(ctx, "missing", nil, nil); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
