package profile

import (
	"path/filepath"
	"testing"

	"github.com/jobpilot/automation/internal/types"
)

func TestCSVStoreCreateAndGet(t *testing.T) {
	store := NewCSVStore(filepath.Join(t.TempDir(), "profiles.csv"))

	created, err := store.Create(newTestProfile("alice"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatal("expected created_at/updated_at to be stamped")
	}

	got, ok := store.Get("alice")
	if !ok {
		t.Fatal("expected profile to be found")
	}
	if got.UserID != "alice" {
		t.Errorf("UserID = %q, want alice", got.UserID)
	}
}

func TestCSVStoreCreateDuplicateRejected(t *testing.T) {
	store := NewCSVStore(filepath.Join(t.TempDir(), "profiles.csv"))
	if _, err := store.Create(newTestProfile("alice")); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}
	if _, err := store.Create(newTestProfile("alice")); err == nil {
		t.Fatal("expected duplicate user_id to be rejected")
	}
}

func TestCSVStoreDelete(t *testing.T) {
	store := NewCSVStore(filepath.Join(t.TempDir(), "profiles.csv"))
	store.Create(newTestProfile("alice"))

	if !store.Delete("alice") {
		t.Fatal("expected delete to succeed")
	}
	if _, ok := store.Get("alice"); ok {
		t.Fatal("expected profile to be gone after delete")
	}
	if store.Delete("alice") {
		t.Fatal("expected second delete to report false")
	}
}

func TestCSVStoreLoadRoundTripsNestedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.csv")

	store := NewCSVStore(path)
	p := newTestProfile("alice")
	if _, err := store.Create(p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	cv := &types.CVRecord{Filename: "resume.pdf", Skills: []string{"Go", "SQL"}}
	if _, err := store.UpdateCVInfo("alice", "/tmp/resume.pdf", cv); err != nil {
		t.Fatalf("UpdateCVInfo() error = %v", err)
	}

	reloaded := NewCSVStore(path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	got, ok := reloaded.Get("alice")
	if !ok {
		t.Fatal("expected profile to survive a reload from disk")
	}
	if len(got.Preferences.Titles) != 1 || got.Preferences.Titles[0] != "Software Engineer" {
		t.Errorf("Preferences.Titles = %v, want [Software Engineer]", got.Preferences.Titles)
	}
	if got.ParsedCVData == nil || len(got.ParsedCVData.Skills) != 2 {
		t.Fatalf("expected parsed CV data with 2 skills, got %+v", got.ParsedCVData)
	}
	if got.CurrentCVPath != "/tmp/resume.pdf" {
		t.Errorf("CurrentCVPath = %q", got.CurrentCVPath)
	}
}

func TestCSVStoreAll(t *testing.T) {
	store := NewCSVStore(filepath.Join(t.TempDir(), "profiles.csv"))
	store.Create(newTestProfile("alice"))
	store.Create(newTestProfile("bob"))

	if got := len(store.All()); got != 2 {
		t.Errorf("All() returned %d profiles, want 2", got)
	}
}
