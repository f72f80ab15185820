package ingest

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingHeader is reported when the stream ends without a dataset line.
	ErrMissingHeader = errors.New("missing dataset header")
	// ErrDuplicateHeader is reported for a second dataset line.
	ErrDuplicateHeader = errors.New("duplicate dataset header")
	// ErrImageBeforeHeader is reported for an image line preceding the header.
	ErrImageBeforeHeader = errors.New("image record before dataset header")
)

// SchemaError is a fatal ingestion failure tied to a source line.
type SchemaError struct {
	Line   int
	Field  string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, 3)
	if e.Line > 0 {
		parts = append(parts, fmt.Sprintf("line %d", e.Line))
	}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	reason := strings.TrimSpace(e.Reason)
	if reason == "" && e.Err != nil {
		reason = e.Err.Error()
	} else if e.Err != nil && !strings.Contains(reason, e.Err.Error()) {
		reason = reason + ": " + e.Err.Error()
	}
	if reason == "" {
		reason = "invalid record"
	}
	parts = append(parts, reason)
	return "schema error: " + strings.Join(parts, ": ")
}

func (e *SchemaError) Unwrap() error { return e.Err }

func schemaErr(line int, field, reason string) *SchemaError {
	return &SchemaError{Line: line, Field: field, Reason: reason}
}

func schemaWrap(line int, field string, err error) *SchemaError {
	return &SchemaError{Line: line, Field: field, Err: err}
}
