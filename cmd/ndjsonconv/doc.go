// Package main hosts the ndjsonconv CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration, builds the logger and hands
// the work to internal/convert. Progress goes to stderr and results go to
// stdout so the summary can be piped or parsed with --json.
//
// Keep this package lean: behaviour belongs in the internal packages and is
// surfaced here through commands and flags.
package main
