// Package convert runs a conversion job end to end: it parses the NDJSON
// export, downloads the images, encodes labels in the chosen format and
// writes the archive.
//
// The goroutine calling Run is the only one that mutates job state. Download
// and encoder workers hand results back over channels, and the archive is
// written by the archive package's single writer goroutine. Progress is
// reported per phase in the order parsing, downloading, converting, zipping;
// a label-only job skips downloading.
package convert
