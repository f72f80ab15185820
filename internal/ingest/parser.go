package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path"
	"strconv"
	"strings"

	"ndjsonconv/internal/annotation"
	"ndjsonconv/internal/logging"
)

const (
	initialLineBuffer = 64 * 1024
	// DefaultMaxLineBytes bounds a single NDJSON line.
	DefaultMaxLineBytes = 64 * 1024 * 1024
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Options tunes a Parse call.
type Options struct {
	// OnDataset runs as soon as the header is decoded. A non-nil error aborts
	// ingestion and is returned unchanged.
	OnDataset func(annotation.Dataset) error
	// OnLine runs after each physical line is processed.
	OnLine func(line int)
	// MaxLineBytes overrides DefaultMaxLineBytes.
	MaxLineBytes int
	Logger       *slog.Logger
}

// Result is the outcome of a successful ingestion.
type Result struct {
	Dataset annotation.Dataset
	Images  []annotation.ImageRecord
	Dropped []*annotation.AnnotationError
	Lines   int
}

// ParseFile opens path and parses it.
func ParseFile(ctx context.Context, filePath string, opts Options) (*Result, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open ndjson: %w", err)
	}
	defer file.Close()
	return Parse(ctx, file, opts)
}

// Parse consumes r line by line.
func Parse(ctx context.Context, r io.Reader, opts Options) (*Result, error) {
	p := &parser{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "ingest"),
		files:  make(map[string]int),

		inferredDims: make(map[int]int),
	}
	maxLine := opts.MaxLineBytes
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(initialLineBuffer, maxLine)), maxLine)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw := scanner.Bytes()
		if line == 1 {
			raw = bytes.TrimPrefix(raw, utf8BOM)
		}
		if err := p.parseLine(line, bytes.TrimSpace(raw)); err != nil {
			return nil, err
		}
		if opts.OnLine != nil {
			opts.OnLine(line)
		}
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, schemaErr(line+1, "", fmt.Sprintf("line exceeds %d bytes", maxLine))
		}
		return nil, fmt.Errorf("read ndjson: %w", err)
	}
	if p.dataset == nil {
		return nil, schemaWrap(line, "", ErrMissingHeader)
	}

	ds := *p.dataset
	if ds.Task == annotation.TaskPose && ds.KeypointCount() == 0 {
		ds.InferredKptDims = 2
		if p.inferredDims[3] > 0 && p.inferredDims[2] == 0 {
			ds.InferredKptDims = 3
		}
	}

	return &Result{
		Dataset: ds,
		Images:  p.images,
		Dropped: p.dropped,
		Lines:   line,
	}, nil
}

type parser struct {
	opts    Options
	logger  *slog.Logger
	dataset *annotation.Dataset
	images  []annotation.ImageRecord
	dropped []*annotation.AnnotationError
	files   map[string]int
	// inferredDims counts pose rows by keypoint layout when kpt_shape is
	// not declared.
	inferredDims map[int]int
}

type envelope struct {
	Type string `json:"type"`
}

type headerLine struct {
	Task        *string         `json:"task"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	URL         string          `json:"url"`
	Version     json.RawMessage `json:"version"`
	KptShape    []int           `json:"kpt_shape"`
	ClassNames  json.RawMessage `json:"class_names"`
}

type imageLine struct {
	File        *string                    `json:"file"`
	URL         string                     `json:"url"`
	Width       *float64                   `json:"width"`
	Height      *float64                   `json:"height"`
	Split       string                     `json:"split"`
	Annotations map[string]json.RawMessage `json:"annotations"`
}

func (p *parser) parseLine(line int, raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return schemaWrap(line, "", fmt.Errorf("malformed json: %w", err))
	}
	switch env.Type {
	case "dataset":
		if p.dataset != nil {
			return schemaWrap(line, "type", ErrDuplicateHeader)
		}
		ds, err := parseHeader(line, raw)
		if err != nil {
			return err
		}
		p.dataset = &ds
		if p.opts.OnDataset != nil {
			if err := p.opts.OnDataset(ds); err != nil {
				return err
			}
		}
		p.logger.Debug("dataset header parsed",
			logging.Int("line", line),
			logging.String("task", string(ds.Task)),
			logging.Int("classes", ds.ClassNames.Len()),
		)
	case "image":
		if p.dataset == nil {
			return schemaWrap(line, "type", ErrImageBeforeHeader)
		}
		rec, err := p.parseImage(line, raw)
		if err != nil {
			return err
		}
		if first, dup := p.files[rec.File]; dup {
			return schemaErr(line, "file", fmt.Sprintf("duplicate file %q (first seen on line %d)", rec.File, first))
		}
		p.files[rec.File] = line
		rec.Index = len(p.images)
		p.images = append(p.images, rec)
	default:
		// Unknown record types are skipped for forward compatibility.
	}
	return nil
}

func parseHeader(line int, raw []byte) (annotation.Dataset, error) {
	var hdr headerLine
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return annotation.Dataset{}, schemaWrap(line, "", fmt.Errorf("malformed dataset header: %w", err))
	}
	if hdr.Task == nil {
		return annotation.Dataset{}, schemaErr(line, "task", "required field missing")
	}
	task, err := annotation.ParseTask(*hdr.Task)
	if err != nil {
		return annotation.Dataset{}, schemaWrap(line, "task", err)
	}
	if len(hdr.ClassNames) == 0 || string(hdr.ClassNames) == "null" {
		return annotation.Dataset{}, schemaErr(line, "class_names", "required field missing")
	}
	names, err := decodeClassNames(hdr.ClassNames)
	if err != nil {
		return annotation.Dataset{}, schemaWrap(line, "class_names", err)
	}
	if len(hdr.KptShape) > 0 {
		if len(hdr.KptShape) != 2 || hdr.KptShape[0] <= 0 || (hdr.KptShape[1] != 2 && hdr.KptShape[1] != 3) {
			return annotation.Dataset{}, schemaErr(line, "kpt_shape", fmt.Sprintf("expected [keypoints, 2|3], got %v", hdr.KptShape))
		}
	}
	return annotation.Dataset{
		Task:        task,
		Name:        strings.TrimSpace(hdr.Name),
		Description: hdr.Description,
		URL:         hdr.URL,
		Version:     parseVersion(hdr.Version),
		KptShape:    hdr.KptShape,
		ClassNames:  names,
	}, nil
}

// decodeClassNames walks the object token by token so that the declaration
// order survives. A plain array of names is accepted as ids 0..n-1.
func decodeClassNames(raw json.RawMessage) (annotation.ClassNames, error) {
	var names annotation.ClassNames
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return names, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return names, fmt.Errorf("expected object, got %v", tok)
	}
	switch delim {
	case '{':
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return names, err
			}
			key, _ := keyTok.(string)
			id, err := strconv.Atoi(strings.TrimSpace(key))
			if err != nil {
				return names, fmt.Errorf("class id %q is not an integer", key)
			}
			var label string
			if err := dec.Decode(&label); err != nil {
				return names, fmt.Errorf("class %q: %w", key, err)
			}
			if err := names.Add(id, label); err != nil {
				return names, err
			}
		}
	case '[':
		id := 0
		for dec.More() {
			var label string
			if err := dec.Decode(&label); err != nil {
				return names, fmt.Errorf("class %d: %w", id, err)
			}
			if err := names.Add(id, label); err != nil {
				return names, err
			}
			id++
		}
	default:
		return names, fmt.Errorf("expected object, got %v", delim)
	}
	return names, nil
}

func parseVersion(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return v
		}
	}
	return 0
}

func (p *parser) parseImage(line int, raw []byte) (annotation.ImageRecord, error) {
	var img imageLine
	if err := json.Unmarshal(raw, &img); err != nil {
		return annotation.ImageRecord{}, schemaWrap(line, "", fmt.Errorf("malformed image record: %w", err))
	}
	if img.File == nil {
		return annotation.ImageRecord{}, schemaErr(line, "file", "required field missing")
	}
	file, err := cleanFileName(*img.File)
	if err != nil {
		return annotation.ImageRecord{}, schemaWrap(line, "file", err)
	}
	width, err := dimension(line, "width", img.Width)
	if err != nil {
		return annotation.ImageRecord{}, err
	}
	height, err := dimension(line, "height", img.Height)
	if err != nil {
		return annotation.ImageRecord{}, err
	}

	rec := annotation.ImageRecord{
		Line:   line,
		File:   file,
		URL:    strings.TrimSpace(img.URL),
		Width:  width,
		Height: height,
		Split:  annotation.ParseSplit(img.Split),
	}
	if err := p.decodeAnnotations(&rec, img.Annotations); err != nil {
		return annotation.ImageRecord{}, err
	}
	return rec, nil
}

func dimension(line int, field string, v *float64) (int, error) {
	if v == nil {
		return 0, schemaErr(line, field, "required field missing")
	}
	if *v <= 0 || *v != math.Trunc(*v) || *v > math.MaxInt32 {
		return 0, schemaErr(line, field, fmt.Sprintf("must be a positive integer, got %v", *v))
	}
	return int(*v), nil
}

// cleanFileName normalizes separators and rejects names that would escape
// the archive directory they are placed in.
func cleanFileName(raw string) (string, error) {
	name := strings.ReplaceAll(strings.TrimSpace(raw), "\\", "/")
	if name == "" {
		return "", errors.New("must not be empty")
	}
	if strings.HasPrefix(name, "/") || (len(name) >= 2 && name[1] == ':') {
		return "", fmt.Errorf("%q must be a relative path", raw)
	}
	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%q escapes the image directory", raw)
	}
	return cleaned, nil
}
