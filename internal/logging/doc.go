// Package logging assembles structured slog loggers and formatting helpers used
// across ndjsonconv.
//
// It owns the configurable console/JSON handlers, the optional per-run JSON
// log file with age-based retention, and context helpers that tag log lines
// with the conversion job ID and phase. The package also provides a no-op
// logger for tests and library callers that do not care about output.
//
// Console output always goes to stderr so that machine-readable results on
// stdout stay clean.
package logging
