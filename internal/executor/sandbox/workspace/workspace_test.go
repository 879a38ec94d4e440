package workspace

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"execsvc/pkg/errors"
)

func TestMaterializeAndRelease(t *testing.T) {
	m := NewMaterializer(t.TempDir())
	payload := []byte("#!/bin/sh\necho hi\n")

	ws, err := m.Materialize(payload, 1024)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	info, err := os.Stat(ws.Path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm()&0o100 == 0 {
		t.Fatalf("owner execute bit not set: %v", info.Mode())
	}
	got, err := os.ReadFile(ws.Path)
	if err != nil || !bytes.Equal(got, payload) {
		t.Fatalf("content mismatch: %q %v", got, err)
	}

	if err := ws.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(ws.Dir); !os.IsNotExist(err) {
		t.Fatalf("workspace still exists: %v", err)
	}
	if err := ws.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
}

func TestMaterializeUniqueNames(t *testing.T) {
	m := NewMaterializer(t.TempDir())
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		ws, err := m.Materialize(nil, 10)
		if err != nil {
			t.Fatalf("Materialize: %v", err)
		}
		if seen[ws.Path] {
			t.Fatalf("duplicate path %s", ws.Path)
		}
		seen[ws.Path] = true
		defer ws.Release()
	}
}

func TestMaterializeTooLarge(t *testing.T) {
	root := t.TempDir()
	m := NewMaterializer(root)
	_, err := m.Materialize(make([]byte, 11), 10)
	if !errors.Is(err, errors.ExecutableTooLarge) {
		t.Fatalf("expected ExecutableTooLarge, got %v", err)
	}
	if details := errors.GetError(err).Details; details["size"] != 11 || details["limit"] != int64(10) {
		t.Fatalf("unexpected details %v", details)
	}
	entries, _ := os.ReadDir(root)
	if len(entries) != 0 {
		t.Fatalf("nothing should be created on rejection, found %d entries", len(entries))
	}
}

func TestMaterializeBadRoot(t *testing.T) {
	file := t.TempDir() + "/file"
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}
	m := NewMaterializer(file)
	_, err := m.Materialize([]byte("x"), 10)
	if !errors.Is(err, errors.MaterializationFailed) {
		t.Fatalf("expected MaterializationFailed, got %v", err)
	}
}

func TestMaterializeRelativeRootIsAbsolute(t *testing.T) {
	base := t.TempDir()
	t.Chdir(base)

	ws, err := NewMaterializer("work").Materialize([]byte("x"), 10)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	defer ws.Release()

	if !filepath.IsAbs(ws.Dir) || !filepath.IsAbs(ws.Path) {
		t.Fatalf("workspace paths must be absolute: %s %s", ws.Dir, ws.Path)
	}
	if filepath.Dir(ws.Dir) != filepath.Join(base, "work") {
		t.Fatalf("workspace %s not under %s", ws.Dir, filepath.Join(base, "work"))
	}
}
