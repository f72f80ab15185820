package fileutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestSpoolDirLifecycle(t *testing.T) {
	root := filepath.Join(t.TempDir(), "spool")

	spool, err := NewSpoolDir(root, "job-1")
	if err != nil {
		t.Fatalf("NewSpoolDir: %v", err)
	}
	if spool.Path() != filepath.Join(root, "job-1") {
		t.Fatalf("unexpected path: %q", spool.Path())
	}
	if got := spool.File(7); got != filepath.Join(root, "job-1", "7") {
		t.Fatalf("unexpected file path: %q", got)
	}
	if err := os.WriteFile(spool.File(0), []byte("img"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := spool.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(spool.Path()); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected spool dir removed, stat err=%v", err)
	}
	if err := spool.Remove(); err != nil {
		t.Fatalf("second Remove should be a no-op: %v", err)
	}
}

func TestNewSpoolDirRejectsReuseAndBadIDs(t *testing.T) {
	root := t.TempDir()
	if _, err := NewSpoolDir(root, "job"); err != nil {
		t.Fatal(err)
	}
	if _, err := NewSpoolDir(root, "job"); err == nil {
		t.Fatal("expected error when spool dir already exists")
	}
	for _, id := range []string{"", "..", "a/b", `a\b`} {
		if _, err := NewSpoolDir(root, id); err == nil {
			t.Fatalf("expected error for id %q", id)
		}
	}
}

func TestRemoveIfExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := RemoveIfExists(path); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := RemoveIfExists(path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Fatal("expected file removed")
	}
}

func TestNilSpoolRemove(t *testing.T) {
	var s *SpoolDir
	if err := s.Remove(); err != nil {
		t.Fatal(err)
	}
}
