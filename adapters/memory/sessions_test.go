package memory

import (
	"context"
	"testing"

	"github.com/magicsketchbook/server/domain/entities"
)

func TestGetMissingSession(t *testing.T) {
	store := NewSessionStore()

	session, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if session != nil {
		t.Errorf("Expected nil for missing session, got %+v", session)
	}

	if _, err := store.Get(context.Background(), ""); err == nil {
		t.Error("Expected error for empty session id")
	}
}

func TestSaveAndGet(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	session := entities.NewSession("sess-1")
	session.AddEntry(entities.RoleUser, "안녕")

	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("Expected stored session")
	}
	if len(loaded.Entries) != 1 || loaded.Entries[0].Text != "안녕" {
		t.Errorf("Entries mismatch: %+v", loaded.Entries)
	}

	// Mutating the loaded copy must not affect the store.
	loaded.AddEntry(entities.RoleAgent, "응!")
	again, _ := store.Get(ctx, "sess-1")
	if len(again.Entries) != 1 {
		t.Errorf("Store state leaked: %d entries", len(again.Entries))
	}
}

func TestSaveReplacesSession(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	session := entities.NewSession("sess-1")
	store.Save(ctx, session)

	session.AddEntry(entities.RoleUser, "첫 마디")
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, _ := store.Get(ctx, "sess-1")
	if len(loaded.Entries) != 1 {
		t.Errorf("Expected replaced session with 1 entry, got %d", len(loaded.Entries))
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	store := NewSessionStore()

	if err := store.Save(context.Background(), nil); err == nil {
		t.Error("Expected error for nil session")
	}

	bad := entities.NewSession("")
	if err := store.Save(context.Background(), bad); err == nil {
		t.Error("Expected validation error for empty session id")
	}
}
