package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ndjsonconv/internal/formats"
	"ndjsonconv/internal/testsupport"
)

func writeDetectExport(t *testing.T, dir, baseURL string) string {
	t.Helper()
	path := filepath.Join(dir, "export.ndjson")
	box := map[string]any{"bboxes": [][]float64{{1, 0.5, 0.5, 0.25, 0.25}}}
	testsupport.WriteNDJSON(t, path,
		testsupport.DatasetHeader("detect", "cat", "dog"),
		testsupport.ImageRecord("a.png", baseURL+"/a.png", 4, 4, "train", box),
		testsupport.ImageRecord("b.png", baseURL+"/missing.png", 4, 4, "val", box),
	)
	return path
}

func TestConvertCommandJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	server := newPNGServer(t)
	input := writeDetectExport(t, env.baseDir, server.URL)
	output := filepath.Join(env.baseDir, "out.zip")

	stdout, stderr, err := runCLI(t, []string{"convert", input, "--format", "YOLO", "--output", output, "--json", "--concurrency", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("convert: %v (stderr=%s)", err, stderr)
	}

	var got struct {
		ZipPath         string `json:"zip_path"`
		ImageCount      int    `json:"image_count"`
		FailedDownloads *int   `json:"failed_downloads"`
		DownloadTotal   *int   `json:"download_total"`
		Format          string `json:"format"`
		Task            string `json:"task"`
	}
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("decode result %q: %v", stdout, err)
	}
	if got.ZipPath != output || got.ImageCount != 1 || got.Format != "yolo" || got.Task != "detect" {
		t.Fatalf("unexpected result %+v", got)
	}
	if got.FailedDownloads == nil || *got.FailedDownloads != 1 || got.DownloadTotal == nil || *got.DownloadTotal != 2 {
		t.Fatalf("unexpected download counts %+v", got)
	}
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("archive missing: %v", err)
	}
	for _, phase := range []string{"parsing", "downloading", "converting", "zipping"} {
		requireContains(t, stderr, phase)
	}
}

func TestConvertCommandSummaryWithoutImages(t *testing.T) {
	env := setupCLITestEnv(t)
	input := writeDetectExport(t, env.baseDir, "http://unused.invalid")
	output := filepath.Join(env.baseDir, "labels.zip")

	stdout, _, err := runCLI(t, []string{"convert", input, "-f", "coco", "-o", output, "--no-images"}, env.configPath)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	requireContains(t, stdout, output)
	requireContains(t, stdout, "Dropped annotations")
	requireContains(t, stdout, "Detection")
	if strings.Contains(stdout, "Failed downloads") {
		t.Fatalf("label-only summary should not report downloads:\n%s", stdout)
	}
}

func TestConvertCommandUnsupportedTask(t *testing.T) {
	env := setupCLITestEnv(t)
	input := filepath.Join(env.baseDir, "classify.ndjson")
	testsupport.WriteNDJSON(t, input,
		testsupport.DatasetHeader("classify", "cat"),
		testsupport.ImageRecord("a.png", "", 4, 4, "train", map[string]any{"classification": 0}),
	)
	output := filepath.Join(env.baseDir, "out.zip")

	_, _, err := runCLI(t, []string{"convert", input, "--format", "coco", "--output", output}, env.configPath)
	var unsupported *formats.UnsupportedTaskError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedTaskError, got %v", err)
	}
	if _, statErr := os.Stat(output); !os.IsNotExist(statErr) {
		t.Fatalf("expected no archive, stat err=%v", statErr)
	}
}

func TestConvertCommandFlagValidation(t *testing.T) {
	env := setupCLITestEnv(t)
	input := writeDetectExport(t, env.baseDir, "http://unused.invalid")
	output := filepath.Join(env.baseDir, "out.zip")

	cases := []struct {
		name string
		args []string
		want string
	}{
		{"missing format", []string{"convert", input, "--output", output}, "format"},
		{"missing output", []string{"convert", input, "--format", "yolo"}, "output"},
		{"bad concurrency", []string{"convert", input, "--format", "yolo", "--output", output, "--concurrency", "0"}, "--concurrency"},
		{"unknown format", []string{"convert", input, "--format", "tfrecord", "--output", output}, "tfrecord"},
		{"missing input", []string{"convert", filepath.Join(env.baseDir, "nope.ndjson"), "--format", "yolo", "--output", output}, "does not exist"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := runCLI(t, tc.args, env.configPath)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestFormatsCommand(t *testing.T) {
	out, _, err := runCLI(t, []string{"formats"}, "")
	if err != nil {
		t.Fatalf("formats: %v", err)
	}
	for _, id := range formats.IDs() {
		requireContains(t, out, id)
	}

	out, _, err = runCLI(t, []string{"formats", "--json"}, "")
	if err != nil {
		t.Fatalf("formats --json: %v", err)
	}
	var rows []formatRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode formats: %v", err)
	}
	got := make([]string, len(rows))
	for i, row := range rows {
		got[i] = row.Format
	}
	if diff := cmp.Diff(formats.IDs(), got); diff != "" {
		t.Fatalf("format ids (-want +got):\n%s", diff)
	}
}
