package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidURL marks URLs that fail to parse or use a scheme other
	// than http or https.
	ErrInvalidURL = errors.New("invalid url")
	// ErrForbiddenHost marks local, private and otherwise non-routable
	// destinations.
	ErrForbiddenHost = errors.New("forbidden host")
	// ErrTooLarge marks bodies above the configured size cap.
	ErrTooLarge = errors.New("response too large")
	// ErrStatus marks non-2xx responses.
	ErrStatus = errors.New("unexpected status")
	// ErrTimeout marks requests that ran past the per-request timeout.
	ErrTimeout = errors.New("timeout")
)

// DownloadError describes a single failed image download. It is recoverable:
// the conversion counts it and carries on without the image.
type DownloadError struct {
	URL    string
	Reason string
	Err    error
}

func (e *DownloadError) Error() string {
	if e.Reason == "" && e.Err != nil {
		return fmt.Sprintf("download %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("download %s: %s", e.URL, e.Reason)
}

func (e *DownloadError) Unwrap() error { return e.Err }

func newDownloadError(rawURL string, err error, format string, args ...any) *DownloadError {
	return &DownloadError{URL: rawURL, Reason: fmt.Sprintf(format, args...), Err: err}
}
