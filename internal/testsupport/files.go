package testsupport

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// WriteNDJSON marshals each record onto its own line at path. Strings are
// written verbatim so tests can include deliberately malformed lines.
func WriteNDJSON(t testing.TB, path string, records ...any) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	var buf bytes.Buffer
	for _, rec := range records {
		switch v := rec.(type) {
		case string:
			buf.WriteString(v)
		default:
			data, err := json.Marshal(v)
			if err != nil {
				t.Fatalf("marshal ndjson record: %v", err)
			}
			buf.Write(data)
		}
		buf.WriteByte('\n')
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// DatasetHeader builds a header record for task with class ids 0..n-1.
func DatasetHeader(task string, names ...string) map[string]any {
	classes := make(map[string]string, len(names))
	for i, name := range names {
		classes[strconv.Itoa(i)] = name
	}
	return map[string]any{
		"type":        "dataset",
		"task":        task,
		"name":        "fixture",
		"class_names": classes,
	}
}

// ImageRecord builds an image record. annotations may be nil.
func ImageRecord(file, url string, width, height int, split string, annotations map[string]any) map[string]any {
	rec := map[string]any{
		"type":   "image",
		"file":   file,
		"url":    url,
		"width":  width,
		"height": height,
		"split":  split,
	}
	if annotations != nil {
		rec["annotations"] = annotations
	}
	return rec
}

// PNG returns a small encoded PNG image.
func PNG(t testing.TB, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0x80, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
