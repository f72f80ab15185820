package convert

import (
	"context"
	"fmt"

	"ndjsonconv/internal/annotation"
	"ndjsonconv/internal/formats"
)

// ErrCancelled is returned when the caller cancels a conversion. Partial
// output has already been removed when it is returned.
var ErrCancelled = fmt.Errorf("conversion cancelled: %w", context.Canceled)

// Request describes one conversion job.
type Request struct {
	FilePath      string
	Format        string
	OutputPath    string
	IncludeImages bool
}

// Phase names a stage of the conversion pipeline.
type Phase string

const (
	PhaseParsing     Phase = "parsing"
	PhaseDownloading Phase = "downloading"
	PhaseConverting  Phase = "converting"
	PhaseZipping     Phase = "zipping"
)

// Phases lists the phases in execution order.
func Phases() []Phase {
	return []Phase{PhaseParsing, PhaseDownloading, PhaseConverting, PhaseZipping}
}

func (p Phase) rank() int {
	for i, phase := range Phases() {
		if phase == p {
			return i
		}
	}
	return -1
}

// ProgressEvent reports work done within a phase. Current never decreases
// within a phase and phases never regress.
type ProgressEvent struct {
	Phase   Phase   `json:"phase"`
	Current int     `json:"current"`
	Total   int     `json:"total"`
	Item    *string `json:"item,omitempty"`
}

// Result summarizes a finished conversion. FailedDownloads and DownloadTotal
// are set only when images were requested.
type Result struct {
	ArchivePath        string          `json:"zip_path"`
	FileCount          int             `json:"file_count"`
	ImageCount         int             `json:"image_count"`
	FailedDownloads    *int            `json:"failed_downloads,omitempty"`
	DownloadTotal      *int            `json:"download_total,omitempty"`
	DroppedAnnotations int             `json:"dropped_annotations"`
	Format             formats.Format  `json:"format"`
	Task               annotation.Task `json:"task"`
	JobID              string          `json:"job_id"`
}

// AllDownloadsFailed reports whether images were requested and none of them
// could be fetched.
func (r *Result) AllDownloadsFailed() bool {
	return r != nil && r.DownloadTotal != nil && r.FailedDownloads != nil &&
		*r.DownloadTotal > 0 && *r.FailedDownloads == *r.DownloadTotal
}
