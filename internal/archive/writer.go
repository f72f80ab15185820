package archive

import (
	"archive/zip"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/klauspost/compress/flate"

	"ndjsonconv/internal/fileutil"
	"ndjsonconv/internal/logging"
)

const (
	partialSuffix     = ".partial"
	lockSuffix        = ".lock"
	defaultQueueSize  = 64
	defaultBufferSize = 1 << 20
)

// DefaultModTime is stamped on every entry so identical input produces
// identical archives.
var DefaultModTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Entry is one archive member. Data is used when SourcePath is empty.
type Entry struct {
	Name       string
	Data       []byte
	SourcePath string
}

// Options configures a Writer.
type Options struct {
	// CompressionLevel is a deflate level between -1 (default) and 9.
	CompressionLevel int
	// ModTime overrides DefaultModTime.
	ModTime time.Time
	// OnEntry runs on the writer goroutine after each entry is handled,
	// with the number of entries handled so far.
	OnEntry   func(handled int, name string)
	Logger    *slog.Logger
	QueueSize int
}

// Writer streams entries into a zip archive from a single goroutine. The
// archive is written to <path>.partial and renamed into place by Close.
// Add must not be called concurrently with Close or Abort.
type Writer struct {
	path        string
	partialPath string
	lock        *flock.Flock
	file        *os.File
	buf         *bufio.Writer
	zw          *zip.Writer
	opts        Options
	logger      *slog.Logger

	queue chan Entry
	done  chan struct{}
	names map[string]struct{}

	mu      sync.Mutex
	err     error
	handled int
	written int

	closeOnce  sync.Once
	finishOnce sync.Once
	finishErr  error
}

// Create locks path and opens the partial archive next to it.
func Create(path string, opts Options) (*Writer, error) {
	if opts.CompressionLevel < flate.HuffmanOnly || opts.CompressionLevel > flate.BestCompression {
		return nil, writeError("create", "", fmt.Errorf("compression level %d out of range", opts.CompressionLevel))
	}
	if opts.ModTime.IsZero() {
		opts.ModTime = DefaultModTime
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	lock := flock.New(path + lockSuffix)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, writeError("lock", "", fmt.Errorf("acquire lock: %w", err))
	}
	if !ok {
		return nil, writeError("lock", "", ErrLocked)
	}

	partial := path + partialSuffix
	file, err := os.OpenFile(partial, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		releaseLock(lock)
		return nil, writeError("create", "", err)
	}

	buf := bufio.NewWriterSize(file, defaultBufferSize)
	zw := zip.NewWriter(buf)
	level := opts.CompressionLevel
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})

	w := &Writer{
		path:        path,
		partialPath: partial,
		lock:        lock,
		file:        file,
		buf:         buf,
		zw:          zw,
		opts:        opts,
		logger:      logger,
		queue:       make(chan Entry, opts.QueueSize),
		done:        make(chan struct{}),
		names:       make(map[string]struct{}),
	}
	go w.run()
	return w, nil
}

// Path returns the final archive path.
func (w *Writer) Path() string { return w.path }

// Add validates the entry name and queues the entry. It returns the first
// write failure seen so far, if any.
func (w *Writer) Add(ctx context.Context, entry Entry) error {
	name, err := NormalizeEntryPath(entry.Name)
	if err != nil {
		return err
	}
	entry.Name = name
	if err := w.Err(); err != nil {
		return err
	}
	select {
	case <-w.done:
		return writeError("add", name, ErrClosed)
	default:
	}
	select {
	case w.queue <- entry:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the first write failure.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Written returns the number of entries stored in the archive.
func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

func (w *Writer) run() {
	defer close(w.done)
	for entry := range w.queue {
		if w.Err() != nil {
			continue
		}
		stored, err := w.write(entry)
		w.mu.Lock()
		if err != nil && w.err == nil {
			w.err = err
		}
		if stored {
			w.written++
		}
		w.handled++
		handled := w.handled
		w.mu.Unlock()
		if err == nil && w.opts.OnEntry != nil {
			w.opts.OnEntry(handled, entry.Name)
		}
	}
}

// write stores one entry. A repeated name keeps the first entry.
func (w *Writer) write(entry Entry) (bool, error) {
	if _, dup := w.names[entry.Name]; dup {
		logging.WarnWithContext(w.logger, "duplicate archive entry skipped", "archive_duplicate_entry",
			logging.String("entry", entry.Name),
			logging.String(logging.FieldErrorHint, "two images share a file stem; rename one of them in the source export"),
			logging.String(logging.FieldImpact, "the later entry is not in the archive"),
		)
		return false, nil
	}
	w.names[entry.Name] = struct{}{}

	header := &zip.FileHeader{
		Name:     entry.Name,
		Method:   zip.Deflate,
		Modified: w.opts.ModTime,
	}
	header.SetMode(0o644)
	dst, err := w.zw.CreateHeader(header)
	if err != nil {
		return false, writeError("header", entry.Name, err)
	}
	if entry.SourcePath == "" {
		if _, err := dst.Write(entry.Data); err != nil {
			return false, writeError("write", entry.Name, err)
		}
		return true, nil
	}
	src, err := os.Open(entry.SourcePath)
	if err != nil {
		return false, writeError("open", entry.Name, err)
	}
	defer src.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return false, writeError("copy", entry.Name, err)
	}
	return true, nil
}

// Close drains the queue, finalizes the archive and renames it into place.
// On failure the partial file is removed and the error is returned.
func (w *Writer) Close() error {
	return w.finish(false)
}

// Abort drains the queue without finalizing and removes the partial file.
func (w *Writer) Abort() error {
	return w.finish(true)
}

func (w *Writer) finish(abort bool) error {
	w.finishOnce.Do(func() {
		w.closeOnce.Do(func() { close(w.queue) })
		<-w.done

		if abort {
			w.finishErr = w.cleanup()
			return
		}
		if err := w.Err(); err != nil {
			w.finishErr = errors.Join(err, w.cleanup())
			return
		}
		if err := w.finalize(); err != nil {
			w.finishErr = errors.Join(err, w.cleanup())
			return
		}
		releaseLock(w.lock)
	})
	return w.finishErr
}

func (w *Writer) finalize() error {
	if err := w.zw.Close(); err != nil {
		return writeError("finalize", "", err)
	}
	if err := w.buf.Flush(); err != nil {
		return writeError("flush", "", err)
	}
	if err := w.file.Sync(); err != nil {
		return writeError("sync", "", err)
	}
	if err := w.file.Close(); err != nil {
		return writeError("close", "", err)
	}
	w.file = nil
	if err := os.Rename(w.partialPath, w.path); err != nil {
		return writeError("rename", "", err)
	}
	return nil
}

func (w *Writer) cleanup() error {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	var err error
	if removeErr := fileutil.RemoveIfExists(w.partialPath); removeErr != nil {
		err = writeError("cleanup", "", removeErr)
	}
	releaseLock(w.lock)
	return err
}

// releaseLock unlocks but leaves the lock file in place. Removing it would
// let a waiting writer hold a lock on an unlinked inode while a newcomer
// locks a fresh file at the same path.
func releaseLock(lock *flock.Flock) {
	_ = lock.Unlock()
}
