package archive

import (
	"errors"
	"fmt"
)

var (
	// ErrLocked is returned by Create when another process holds the
	// output's lock file.
	ErrLocked = errors.New("output archive is locked by another process")
	// ErrInvalidEntryName marks entry names that are empty, absolute or
	// escape the archive root.
	ErrInvalidEntryName = errors.New("invalid entry name")
	// ErrClosed is returned by Add after Close or Abort.
	ErrClosed = errors.New("archive writer closed")
)

// ArchiveWriteError reports a failure while producing the output archive.
// It is fatal to the conversion.
type ArchiveWriteError struct {
	Entry string
	Op    string
	Err   error
}

func (e *ArchiveWriteError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("archive %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("archive %s %s: %v", e.Op, e.Entry, e.Err)
}

func (e *ArchiveWriteError) Unwrap() error { return e.Err }

func writeError(op, entry string, err error) *ArchiveWriteError {
	return &ArchiveWriteError{Entry: entry, Op: op, Err: err}
}
