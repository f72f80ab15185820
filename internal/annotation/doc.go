// Package annotation holds the in-memory dataset model shared by ingestion,
// the format encoders, and the conversion orchestrator.
//
// A Dataset carries the task type and the ordered class list; each
// ImageRecord carries exactly one annotation variant list matching that task.
// The geometry helpers here (clamping, denormalization, polygon bounds) are
// pure and perform no I/O, so encoders can call them from any goroutine.
package annotation
