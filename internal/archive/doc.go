// Package archive assembles the output zip.
//
// A Writer owns the output path for its lifetime: it holds a lock file next
// to the target, writes into a partial file from a single goroutine and only
// renames the result into place once every entry has been stored. Entries
// are deflated with klauspost/compress and stamped with a fixed modification
// time.
package archive
