package formats_test

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ndjsonconv/internal/annotation"
)

type vocDoc struct {
	Folder    string `xml:"folder"`
	Filename  string `xml:"filename"`
	Path      string `xml:"path"`
	Database  string `xml:"source>database"`
	Width     int    `xml:"size>width"`
	Height    int    `xml:"size>height"`
	Depth     int    `xml:"size>depth"`
	Segmented int    `xml:"segmented"`
	Objects   []struct {
		Name string `xml:"name"`
		XMin int    `xml:"bndbox>xmin"`
		YMin int    `xml:"bndbox>ymin"`
		XMax int    `xml:"bndbox>xmax"`
		YMax int    `xml:"bndbox>ymax"`
	} `xml:"object"`
}

func TestVOCDetectDocument(t *testing.T) {
	ds := newDataset(t, annotation.TaskDetect, "cat", "dog")
	rec := annotation.ImageRecord{
		File: "a.jpg", Width: 640, Height: 480, Split: annotation.SplitTrain,
		BBoxes: []annotation.BBox{
			{ClassID: 1, CX: 0.5, CY: 0.5, W: 0.25, H: 0.5},
			{ClassID: 0, CX: 0.98, CY: 0.02, W: 0.1, H: 0.1},
		},
	}
	entry, ok, err := mustLookup(t, "voc").EncodeLabel(ds, rec)
	if err != nil || !ok {
		t.Fatalf("EncodeLabel: ok=%v err=%v", ok, err)
	}
	if entry.Name != "train/labels/a.xml" {
		t.Fatalf("unexpected label path %q", entry.Name)
	}
	if !strings.HasPrefix(string(entry.Data), xml.Header) {
		t.Fatalf("missing xml header: %q", entry.Data)
	}

	var doc vocDoc
	if err := xml.Unmarshal(entry.Data, &doc); err != nil {
		t.Fatalf("parse voc: %v", err)
	}
	if doc.Folder != "train/images" || doc.Filename != "a.jpg" || doc.Path != "train/images/a.jpg" {
		t.Fatalf("unexpected location fields %+v", doc)
	}
	if doc.Database != "pets" || doc.Width != 640 || doc.Height != 480 || doc.Depth != 3 || doc.Segmented != 0 {
		t.Fatalf("unexpected header fields %+v", doc)
	}
	if len(doc.Objects) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(doc.Objects))
	}
	first := doc.Objects[0]
	if first.Name != "dog" || first.XMin != 240 || first.YMin != 120 || first.XMax != 400 || first.YMax != 360 {
		t.Fatalf("unexpected first object %+v", first)
	}
	second := doc.Objects[1]
	if second.XMax != 640 || second.YMin != 0 {
		t.Fatalf("edge box not clamped to image bounds: %+v", second)
	}
}

func TestVOCEmptyImageHasNoObjects(t *testing.T) {
	ds := newDataset(t, annotation.TaskDetect, "cat")
	rec := annotation.ImageRecord{File: "empty.jpg", Width: 10, Height: 10, Split: annotation.SplitValid}
	entry, ok, err := mustLookup(t, "voc").EncodeLabel(ds, rec)
	if err != nil || !ok {
		t.Fatalf("EncodeLabel: ok=%v err=%v", ok, err)
	}
	if strings.Contains(string(entry.Data), "<object>") {
		t.Fatalf("unexpected object element: %s", entry.Data)
	}
}

func TestVOCSegmentUsesPolygonBounds(t *testing.T) {
	ds := newDataset(t, annotation.TaskSegment, "cat")
	rec := annotation.ImageRecord{
		File: "s.jpg", Width: 100, Height: 100, Split: annotation.SplitTrain,
		Polygons: []annotation.Polygon{{Points: []annotation.Point{{X: 0.1, Y: 0.2}, {X: 0.6, Y: 0.2}, {X: 0.4, Y: 0.7}}}},
	}
	entry, _, err := mustLookup(t, "pascal_voc").EncodeLabel(ds, rec)
	if err != nil {
		t.Fatalf("EncodeLabel: %v", err)
	}
	var doc vocDoc
	if err := xml.Unmarshal(entry.Data, &doc); err != nil {
		t.Fatalf("parse voc: %v", err)
	}
	if doc.Segmented != 1 {
		t.Fatalf("segmented = %d, want 1", doc.Segmented)
	}
	got := []int{doc.Objects[0].XMin, doc.Objects[0].YMin, doc.Objects[0].XMax, doc.Objects[0].YMax}
	if diff := cmp.Diff([]int{10, 20, 60, 70}, got); diff != "" {
		t.Fatalf("bndbox mismatch (-want +got):\n%s", diff)
	}
}

func TestVOCClassifyFolders(t *testing.T) {
	ds := newDataset(t, annotation.TaskClassify, "cat", "dog")
	enc := mustLookup(t, "voc")
	rec := annotation.ImageRecord{File: "a.jpg", Split: annotation.SplitValid, Label: &annotation.ClassLabel{ClassID: 0}}
	if p, ok := enc.ImagePath(ds, rec); !ok || p != "valid/cat/a.jpg" {
		t.Fatalf("unexpected path %q (%v)", p, ok)
	}
	if _, ok, _ := enc.EncodeLabel(ds, rec); ok {
		t.Fatal("classification has no xml documents")
	}
}
