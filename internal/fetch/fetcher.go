package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ndjsonconv/internal/logging"
)

const (
	defaultConcurrency = 100
	defaultTimeout     = 30 * time.Second
	defaultMaxBytes    = 50 << 20
	defaultUserAgent   = "ndjsonconv"
)

// Config controls download behavior.
type Config struct {
	Concurrency       int
	Timeout           time.Duration
	MaxBytes          int64
	AllowPrivateHosts bool
	UserAgent         string
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = defaultMaxBytes
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		c.UserAgent = defaultUserAgent
	}
	return c
}

// Request is one image to download. Index names the spool file and ties the
// result back to the image record.
type Request struct {
	Index int
	URL   string
	File  string
}

// Result is the outcome of one Request. Err is a *DownloadError for failed
// downloads and the context error when the run was cancelled.
type Result struct {
	Request Request
	Path    string
	Bytes   int64
	Elapsed time.Duration
	Err     error
}

// Fetcher downloads images into a spool directory.
type Fetcher struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the default HTTP client. The caller's client is
// used as-is, so the dial-time host guard only applies when its transport
// installs one.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithLogger sets the logger used for per-download debug lines.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New creates a Fetcher. Zero Config fields fall back to defaults.
func New(cfg Config, opts ...Option) *Fetcher {
	cfg = cfg.withDefaults()
	f := &Fetcher{
		cfg:    cfg,
		client: &http.Client{Transport: newTransport(cfg)},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func newTransport(cfg Config) *http.Transport {
	dialer := &net.Dialer{Timeout: cfg.Timeout, KeepAlive: 30 * time.Second}
	if !cfg.AllowPrivateHosts {
		dialer.Control = dialControl
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	transport.MaxIdleConnsPerHost = cfg.Concurrency
	transport.ResponseHeaderTimeout = cfg.Timeout
	return transport
}

// Spool names the destination file of each request.
type Spool interface {
	File(index int) string
}

// Run downloads reqs into spool using min(Concurrency, len(reqs)) workers and
// streams one Result per request that was started. The channel is closed
// once every worker has exited; after cancellation, requests not yet started
// produce no Result.
func (f *Fetcher) Run(ctx context.Context, spool Spool, reqs []Request) <-chan Result {
	workers := min(f.cfg.Concurrency, len(reqs))
	results := make(chan Result, max(workers, 1))
	if workers == 0 {
		close(results)
		return results
	}

	jobs := make(chan Request)
	var g errgroup.Group
	g.Go(func() error {
		defer close(jobs)
		for _, req := range reqs {
			select {
			case jobs <- req:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})
	for range workers {
		g.Go(func() error {
			for req := range jobs {
				if ctx.Err() != nil {
					continue
				}
				result := f.fetch(ctx, spool.File(req.Index), req)
				select {
				case results <- result:
				case <-ctx.Done():
				}
			}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()
	return results
}

func (f *Fetcher) fetch(ctx context.Context, dest string, req Request) Result {
	start := time.Now()
	n, err := f.Fetch(ctx, dest, req.URL)
	result := Result{Request: req, Bytes: n, Elapsed: time.Since(start), Err: err}
	if err == nil {
		result.Path = dest
		f.logger.Debug("image downloaded",
			logging.String("file", req.File),
			logging.Int64("bytes", n),
			logging.Duration("elapsed", result.Elapsed),
		)
	}
	return result
}

// Fetch downloads rawURL into dest and returns the number of bytes written.
// On failure dest is removed and the error is a *DownloadError, or the
// context error when ctx itself was cancelled.
func (f *Fetcher) Fetch(ctx context.Context, dest, rawURL string) (int64, error) {
	parsed, err := validateURL(rawURL, f.cfg.AllowPrivateHosts)
	if err != nil {
		return 0, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return 0, newDownloadError(rawURL, errors.Join(ErrInvalidURL, err), "build request: %v", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, f.classify(ctx, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, newDownloadError(rawURL, ErrStatus, "server returned %d", resp.StatusCode)
	}
	if resp.ContentLength > f.cfg.MaxBytes {
		return 0, newDownloadError(rawURL, ErrTooLarge, "response too large (%d bytes, max %d)", resp.ContentLength, f.cfg.MaxBytes)
	}

	n, err := writeLimited(dest, resp.Body, f.cfg.MaxBytes)
	if err != nil {
		_ = os.Remove(dest)
		if errors.Is(err, ErrTooLarge) {
			return 0, newDownloadError(rawURL, ErrTooLarge, "response too large (max %d bytes)", f.cfg.MaxBytes)
		}
		return 0, f.classify(ctx, rawURL, err)
	}
	return n, nil
}

// classify maps transport failures onto DownloadError reasons. A cancelled
// parent context is returned unchanged so callers can tell it apart from a
// per-request timeout.
func (f *Fetcher) classify(ctx context.Context, rawURL string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	switch {
	case errors.Is(err, ErrForbiddenHost):
		return newDownloadError(rawURL, ErrForbiddenHost, "private or local ips are not allowed")
	case errors.Is(err, context.DeadlineExceeded), isTimeout(err):
		return newDownloadError(rawURL, ErrTimeout, "timed out after %s", f.cfg.Timeout)
	default:
		return newDownloadError(rawURL, err, "%v", err)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func writeLimited(dest string, body io.Reader, limit int64) (int64, error) {
	file, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, fmt.Errorf("create spool file: %w", err)
	}
	n, copyErr := io.Copy(file, io.LimitReader(body, limit+1))
	closeErr := file.Close()
	if copyErr != nil {
		return n, fmt.Errorf("read body: %w", copyErr)
	}
	if closeErr != nil {
		return n, fmt.Errorf("close spool file: %w", closeErr)
	}
	if n > limit {
		return n, ErrTooLarge
	}
	return n, nil
}
