package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	prefs, err := Load(path)
	if err != nil || prefs != (Preferences{}) {
		t.Fatalf("missing file should load empty, got %+v %v", prefs, err)
	}

	want := Preferences{BaseURL: "http://exec:8080", Timeout: 5 * time.Second, DefaultTimeMs: 2500}
	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	if err := Clear(path); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := Clear(path); err != nil {
		t.Fatalf("Clear twice: %v", err)
	}
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
