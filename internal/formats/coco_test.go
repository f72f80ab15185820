package formats_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"ndjsonconv/internal/annotation"
	"ndjsonconv/internal/formats"
)

type cocoDoc struct {
	Info struct {
		Description string `json:"description"`
		Version     string `json:"version"`
		Year        int    `json:"year"`
		DateCreated string `json:"date_created"`
	} `json:"info"`
	Categories []struct {
		ID        int      `json:"id"`
		Name      string   `json:"name"`
		Keypoints []string `json:"keypoints"`
	} `json:"categories"`
	Images []struct {
		ID       int    `json:"id"`
		FileName string `json:"file_name"`
		Width    int    `json:"width"`
		Height   int    `json:"height"`
	} `json:"images"`
	Annotations []struct {
		ID           int         `json:"id"`
		ImageID      int         `json:"image_id"`
		CategoryID   int         `json:"category_id"`
		BBox         []float64   `json:"bbox"`
		Area         float64     `json:"area"`
		Segmentation [][]float64 `json:"segmentation"`
		Keypoints    []float64   `json:"keypoints"`
		NumKeypoints *int        `json:"num_keypoints"`
	} `json:"annotations"`
}

func encodeCOCO(t *testing.T, ds annotation.Dataset, recs []annotation.ImageRecord) cocoDoc {
	t.Helper()
	meta := formats.Meta{Created: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	entries, err := mustLookup(t, "coco").EncodeConfig(ds, recs, meta)
	if err != nil {
		t.Fatalf("EncodeConfig: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "_annotations.coco.json" {
		t.Fatalf("unexpected entries %v", entryNames(entries))
	}
	var doc cocoDoc
	if err := json.Unmarshal(entries[0].Data, &doc); err != nil {
		t.Fatalf("parse coco: %v", err)
	}
	return doc
}

func TestCOCODetectRoundTrip(t *testing.T) {
	ds := newDataset(t, annotation.TaskDetect, "cat", "dog")
	boxes := []annotation.BBox{
		{ClassID: 1, CX: 0.5, CY: 0.5, W: 0.25, H: 0.5},
		{ClassID: 0, CX: 0.123456, CY: 0.654321, W: 0.111111, H: 0.222222},
	}
	recs := []annotation.ImageRecord{
		{File: "a.jpg", Width: 640, Height: 480, Split: annotation.SplitTrain, BBoxes: boxes},
		{File: "b.jpg", Width: 100, Height: 50, Split: annotation.SplitValid, BBoxes: boxes[:1]},
	}
	doc := encodeCOCO(t, ds, recs)

	if doc.Info.Description != "pets" || doc.Info.Version != "2" || doc.Info.Year != 2024 || doc.Info.DateCreated != "2024-05-01T12:00:00Z" {
		t.Fatalf("unexpected info %+v", doc.Info)
	}
	if len(doc.Categories) != 2 || doc.Categories[1].ID != 1 || doc.Categories[1].Name != "dog" {
		t.Fatalf("unexpected categories %+v", doc.Categories)
	}
	if len(doc.Images) != 2 || doc.Images[0].ID != 1 || doc.Images[1].FileName != "valid/images/b.jpg" {
		t.Fatalf("unexpected images %+v", doc.Images)
	}

	var ids, imageIDs []int
	for _, ann := range doc.Annotations {
		ids = append(ids, ann.ID)
		imageIDs = append(imageIDs, ann.ImageID)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, ids); diff != "" {
		t.Fatalf("annotation ids (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 1, 2}, imageIDs); diff != "" {
		t.Fatalf("annotation image ids (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]float64{240, 120, 160, 240}, doc.Annotations[0].BBox); diff != "" {
		t.Fatalf("bbox mismatch (-want +got):\n%s", diff)
	}
	if doc.Annotations[0].Area != 38400 || doc.Annotations[0].CategoryID != 1 {
		t.Fatalf("unexpected first annotation %+v", doc.Annotations[0])
	}

	for i, box := range boxes {
		ann := doc.Annotations[i]
		w, h := float64(recs[0].Width), float64(recs[0].Height)
		got := annotation.BBox{
			CX: (ann.BBox[0] + ann.BBox[2]/2) / w,
			CY: (ann.BBox[1] + ann.BBox[3]/2) / h,
			W:  ann.BBox[2] / w,
			H:  ann.BBox[3] / h,
		}
		for _, pair := range [][2]float64{{got.CX, box.CX}, {got.CY, box.CY}, {got.W, box.W}, {got.H, box.H}} {
			if math.Abs(pair[0]-pair[1]) > 1e-4 {
				t.Fatalf("box %d did not round-trip: got %+v want %+v", i, got, box)
			}
		}
	}
}

func TestCOCOSegmentDerivesBoxFromPolygon(t *testing.T) {
	ds := newDataset(t, annotation.TaskSegment, "cat")
	recs := []annotation.ImageRecord{{
		File: "s.jpg", Width: 100, Height: 100, Split: annotation.SplitTrain,
		Polygons: []annotation.Polygon{{Points: []annotation.Point{{X: 0.1, Y: 0.1}, {X: 0.5, Y: 0.1}, {X: 0.5, Y: 0.5}, {X: 0.1, Y: 0.5}}}},
	}}
	doc := encodeCOCO(t, ds, recs)
	ann := doc.Annotations[0]
	if diff := cmp.Diff([]float64{10, 10, 40, 40}, ann.BBox); diff != "" {
		t.Fatalf("bbox mismatch (-want +got):\n%s", diff)
	}
	if ann.Area != 1600 {
		t.Fatalf("area = %v, want 1600", ann.Area)
	}
	if diff := cmp.Diff([][]float64{{10, 10, 50, 10, 50, 50, 10, 50}}, ann.Segmentation); diff != "" {
		t.Fatalf("segmentation mismatch (-want +got):\n%s", diff)
	}
}

func TestCOCOPoseKeypoints(t *testing.T) {
	ds := newDataset(t, annotation.TaskPose, "person")
	ds.KptShape = []int{3, 3}
	recs := []annotation.ImageRecord{{
		File: "p.jpg", Width: 200, Height: 100, Split: annotation.SplitTrain,
		Keypoints: []annotation.Keypoints{{
			Points: []annotation.Keypoint{
				{X: 0.25, Y: 0.5, V: annotation.VisibilityVisible},
				{X: 0.9, Y: 0.9, V: annotation.VisibilityAbsent},
				{X: 0.75, Y: 0.25, V: annotation.VisibilityOccluded},
			},
		}},
	}}
	doc := encodeCOCO(t, ds, recs)

	if diff := cmp.Diff([]string{"keypoint_0", "keypoint_1", "keypoint_2"}, doc.Categories[0].Keypoints); diff != "" {
		t.Fatalf("keypoint names (-want +got):\n%s", diff)
	}
	ann := doc.Annotations[0]
	if diff := cmp.Diff([]float64{50, 50, 2, 0, 0, 0, 150, 25, 1}, ann.Keypoints); diff != "" {
		t.Fatalf("keypoints mismatch (-want +got):\n%s", diff)
	}
	if ann.NumKeypoints == nil || *ann.NumKeypoints != 2 {
		t.Fatalf("num_keypoints = %v, want 2", ann.NumKeypoints)
	}
	if diff := cmp.Diff([]float64{50, 25, 100, 25}, ann.BBox); diff != "" {
		t.Fatalf("box from keypoints (-want +got):\n%s", diff)
	}
}

func TestCOCOHasNoPerImageLabels(t *testing.T) {
	ds := newDataset(t, annotation.TaskDetect, "cat")
	rec := annotation.ImageRecord{File: "a.jpg", Width: 1, Height: 1, Split: annotation.SplitTrain}
	if _, ok, _ := mustLookup(t, "coco").EncodeLabel(ds, rec); ok {
		t.Fatal("coco should not emit per-image labels")
	}
	if p, _ := mustLookup(t, "coco").ImagePath(ds, rec); p != "train/images/a.jpg" {
		t.Fatalf("unexpected image path %q", p)
	}
}
