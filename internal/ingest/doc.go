// Package ingest reads newline-delimited JSON annotation exports into the
// annotation model.
//
// Parsing is strictly line oriented: each line is decoded on its own and the
// only state carried between lines is the dataset header, the accumulated
// image records, and the set of file names seen so far. Any schema violation
// aborts ingestion with a line-numbered SchemaError; malformed geometry on a
// single annotation is recoverable and reported through Result.Dropped.
package ingest
