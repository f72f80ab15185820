// Package config loads, normalizes, and validates ndjsonconv configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the NDJSONCONV_CONCURRENCY
// environment override. The Config type centralizes the download, archive,
// path, and logging knobs the CLI and conversion pipeline need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
