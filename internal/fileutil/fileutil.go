package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SpoolDir is a per-job scratch directory holding downloaded bodies until
// they are copied into the archive.
type SpoolDir struct {
	path string
}

// NewSpoolDir creates root/<id>. The directory must not already exist so that
// two jobs never share spooled files.
func NewSpoolDir(root, id string) (*SpoolDir, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return nil, fmt.Errorf("spool id %q is not a single path element", id)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create spool root: %w", err)
	}
	path := filepath.Join(root, id)
	if err := os.Mkdir(path, 0o700); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	return &SpoolDir{path: path}, nil
}

// Path returns the directory path.
func (s *SpoolDir) Path() string { return s.path }

// File returns the spool path for the item at index.
func (s *SpoolDir) File(index int) string {
	return filepath.Join(s.path, strconv.Itoa(index))
}

// Remove deletes the directory and everything in it. Calling Remove on an
// already removed directory is a no-op.
func (s *SpoolDir) Remove() error {
	if s == nil || s.path == "" {
		return nil
	}
	if err := os.RemoveAll(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove spool dir: %w", err)
	}
	return nil
}

// RemoveIfExists deletes path, ignoring a missing file.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
