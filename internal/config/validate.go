package config

import (
	"fmt"
	"sort"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDownload() error {
	if err := ensurePositiveMap(map[string]int{
		"download.concurrency":     c.Download.Concurrency,
		"download.timeout_seconds": c.Download.TimeoutSeconds,
		"download.max_image_mib":   c.Download.MaxImageMiB,
	}); err != nil {
		return err
	}
	if c.Download.Concurrency > maxConcurrency {
		return fmt.Errorf("download.concurrency must be at most %d, got %d", maxConcurrency, c.Download.Concurrency)
	}
	if c.Download.MaxImageMiB > maxImageMiBLimit {
		return fmt.Errorf("download.max_image_mib must be at most %d, got %d", maxImageMiBLimit, c.Download.MaxImageMiB)
	}
	return nil
}

func (c *Config) validateArchive() error {
	level := c.Archive.CompressionLevel
	if level < minimumCompressionLevel || level > maximumCompressionLevel {
		return fmt.Errorf("archive.compression_level must be between %d and %d, got %d",
			minimumCompressionLevel, maximumCompressionLevel, level)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q (want debug, info, warn, or error)", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
