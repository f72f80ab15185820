package annotation

import "fmt"

// AnnotationError describes a single malformed annotation. It is recoverable:
// the annotation is dropped and the remaining annotations of the image are
// kept.
type AnnotationError struct {
	Line   int
	File   string
	Kind   string
	Index  int
	Reason string
}

func (e *AnnotationError) Error() string {
	return fmt.Sprintf("line %d: %s: %s[%d]: %s", e.Line, e.File, e.Kind, e.Index, e.Reason)
}
