package formats

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"ndjsonconv/internal/annotation"
)

// Format identifies a target dataset convention.
type Format string

const (
	FormatYOLO      Format = "yolo"
	FormatDarknet   Format = "yolo_darknet"
	FormatCOCO      Format = "coco"
	FormatPascalVOC Format = "pascal_voc"
	FormatCreateML  Format = "createml"
)

// ErrUnknownFormat is returned by Lookup for identifiers that match no format
// or alias.
var ErrUnknownFormat = errors.New("unknown format")

// UnsupportedTaskError reports a dataset task the chosen format cannot
// represent. It is raised before any download or archive work starts.
type UnsupportedTaskError struct {
	Format    Format
	Task      annotation.Task
	Supported []annotation.Task
}

func (e *UnsupportedTaskError) Error() string {
	names := make([]string, len(e.Supported))
	for i, t := range e.Supported {
		names[i] = string(t)
	}
	return fmt.Sprintf("format %s does not support task %q (supported: %s)", e.Format, e.Task, strings.Join(names, ", "))
}

// Entry is one archive member produced by an encoder.
type Entry struct {
	Name string
	Data []byte
}

// Meta carries job-level values encoders may embed in aggregate documents.
type Meta struct {
	// Created is the job clock; it is written wherever a format records a
	// creation date so output stays reproducible under a pinned clock.
	Created time.Time
}

// Encoder turns the dataset model into the files of one convention. Encoders
// perform no I/O and are safe for concurrent use.
type Encoder interface {
	Format() Format
	Tasks() []annotation.Task
	// ImagePath returns the archive path of the image, or false when the
	// image is not placed (e.g. an unlabeled classification image).
	ImagePath(ds annotation.Dataset, rec annotation.ImageRecord) (string, bool)
	// EncodeLabel returns the per-image label entry, or false when the
	// format keeps no per-image label for this task.
	EncodeLabel(ds annotation.Dataset, rec annotation.ImageRecord) (Entry, bool, error)
	// EncodeConfig returns the shared files. recs lists the images present
	// in the archive, in input order.
	EncodeConfig(ds annotation.Dataset, recs []annotation.ImageRecord, meta Meta) ([]Entry, error)
}

// Info describes a registered format for listings.
type Info struct {
	Format      Format
	Aliases     []string
	Tasks       []annotation.Task
	Description string
}

type registration struct {
	info    Info
	encoder Encoder
}

var registry = []registration{
	{
		info:    Info{Format: FormatYOLO, Description: "Ultralytics YOLO (data.yaml, per-image txt labels)"},
		encoder: yoloEncoder{},
	},
	{
		info:    Info{Format: FormatDarknet, Aliases: []string{"darknet"}, Description: "Darknet YOLO (obj.names, obj.data, image lists)"},
		encoder: darknetEncoder{},
	},
	{
		info:    Info{Format: FormatCOCO, Description: "COCO JSON (single annotations document)"},
		encoder: cocoEncoder{},
	},
	{
		info:    Info{Format: FormatPascalVOC, Aliases: []string{"voc"}, Description: "Pascal VOC XML (one document per image)"},
		encoder: vocEncoder{},
	},
	{
		info:    Info{Format: FormatCreateML, Description: "Apple CreateML JSON (one document per split)"},
		encoder: createMLEncoder{},
	},
}

// canonicalID folds case with a fresh Caser per call; Casers carry state and
// must not be shared between goroutines.
func canonicalID(raw string) string {
	id := cases.Fold().String(strings.TrimSpace(raw))
	return strings.ReplaceAll(id, "-", "_")
}

// Lookup resolves a format identifier or alias, ignoring case.
func Lookup(id string) (Encoder, error) {
	key := canonicalID(id)
	for _, reg := range registry {
		if key == string(reg.info.Format) || slices.Contains(reg.info.Aliases, key) {
			return reg.encoder, nil
		}
	}
	return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownFormat, strings.TrimSpace(id), strings.Join(IDs(), ", "))
}

// IDs returns the canonical identifiers in registry order.
func IDs() []string {
	ids := make([]string, len(registry))
	for i, reg := range registry {
		ids[i] = string(reg.info.Format)
	}
	return ids
}

// Infos lists every registered format.
func Infos() []Info {
	out := make([]Info, len(registry))
	for i, reg := range registry {
		info := reg.info
		info.Tasks = reg.encoder.Tasks()
		out[i] = info
	}
	return out
}

// CheckTask returns *UnsupportedTaskError when enc cannot encode task.
func CheckTask(enc Encoder, task annotation.Task) error {
	if slices.Contains(enc.Tasks(), task) {
		return nil
	}
	return &UnsupportedTaskError{Format: enc.Format(), Task: task, Supported: enc.Tasks()}
}
