package preflight

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"ndjsonconv/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Path   string
	Passed bool
	Detail string
}

// Error carries the first failing check.
type Error struct {
	Result Result
}

func (e *Error) Error() string {
	return fmt.Sprintf("preflight %s: %s: %s", strings.ToLower(e.Result.Name), e.Result.Path, e.Result.Detail)
}

// ErrFailed matches any *Error with errors.Is.
var ErrFailed = errors.New("preflight failed")

func (e *Error) Is(target error) bool { return target == ErrFailed }

// ForConversion checks the input file and output location of a conversion
// job before any work is started.
func ForConversion(inputPath, outputPath string) []Result {
	return []Result{
		CheckReadableFile("Input file", inputPath),
		CheckOutputPath("Output archive", outputPath),
	}
}

// ForConfig checks the directories named in cfg. The log directory is only
// checked when configured.
func ForConfig(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{CheckDirectoryAccess("Spool directory", cfg.Paths.SpoolDir)}
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	return results
}

// FirstFailure returns the first failing result as an *Error, or nil.
func FirstFailure(results []Result) error {
	for _, r := range results {
		if !r.Passed {
			return &Error{Result: r}
		}
	}
	return nil
}

func parentDir(path string) string {
	dir := filepath.Dir(path)
	if dir == "" {
		return "."
	}
	return dir
}
