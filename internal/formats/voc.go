package formats

import (
	"encoding/xml"
	"fmt"
	"math"
	"path"
	"strings"

	"ndjsonconv/internal/annotation"
)

const vocDatabase = "NDJSON Convert"

type vocEncoder struct{}

type vocAnnotation struct {
	XMLName   xml.Name    `xml:"annotation"`
	Folder    string      `xml:"folder"`
	Filename  string      `xml:"filename"`
	Path      string      `xml:"path"`
	Source    vocSource   `xml:"source"`
	Size      vocSize     `xml:"size"`
	Segmented int         `xml:"segmented"`
	Objects   []vocObject `xml:"object"`
}

type vocSource struct {
	Database string `xml:"database"`
}

type vocSize struct {
	Width  int `xml:"width"`
	Height int `xml:"height"`
	Depth  int `xml:"depth"`
}

type vocObject struct {
	Name      string    `xml:"name"`
	Pose      string    `xml:"pose"`
	Truncated int       `xml:"truncated"`
	Difficult int       `xml:"difficult"`
	BndBox    vocBndBox `xml:"bndbox"`
}

type vocBndBox struct {
	XMin int `xml:"xmin"`
	YMin int `xml:"ymin"`
	XMax int `xml:"xmax"`
	YMax int `xml:"ymax"`
}

func (vocEncoder) Format() Format { return FormatPascalVOC }

func (vocEncoder) Tasks() []annotation.Task {
	return []annotation.Task{annotation.TaskDetect, annotation.TaskSegment, annotation.TaskClassify}
}

func (vocEncoder) ImagePath(ds annotation.Dataset, rec annotation.ImageRecord) (string, bool) {
	if ds.Task == annotation.TaskClassify {
		return classFolderPath(ds, rec)
	}
	return splitImagePath(rec), true
}

func (e vocEncoder) EncodeLabel(ds annotation.Dataset, rec annotation.ImageRecord) (Entry, bool, error) {
	if ds.Task == annotation.TaskClassify {
		return Entry{}, false, nil
	}
	imagePath, _ := e.ImagePath(ds, rec)
	doc := vocAnnotation{
		Folder:   path.Dir(imagePath),
		Filename: path.Base(rec.File),
		Path:     imagePath,
		Source:   vocSource{Database: vocSourceName(ds)},
		Size:     vocSize{Width: rec.Width, Height: rec.Height, Depth: 3},
	}

	switch ds.Task {
	case annotation.TaskDetect:
		for _, b := range rec.BBoxes {
			doc.Objects = append(doc.Objects, vocObjectFor(ds, b, rec))
		}
	case annotation.TaskSegment:
		doc.Segmented = 1
		for _, p := range rec.Polygons {
			doc.Objects = append(doc.Objects, vocObjectFor(ds, p.Bounds(), rec))
		}
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Entry{}, false, fmt.Errorf("encode voc xml for %s: %w", rec.File, err)
	}
	out := make([]byte, 0, len(xml.Header)+len(data)+1)
	out = append(out, xml.Header...)
	out = append(out, data...)
	out = append(out, '\n')
	return Entry{Name: splitLabelPath(rec, ".xml"), Data: out}, true, nil
}

func (vocEncoder) EncodeConfig(annotation.Dataset, []annotation.ImageRecord, Meta) ([]Entry, error) {
	return nil, nil
}

func vocSourceName(ds annotation.Dataset) string {
	if name := strings.TrimSpace(ds.Name); name != "" {
		return name
	}
	return vocDatabase
}

// vocObjectFor converts a normalized box into integer pixel corners clamped
// to the image bounds.
func vocObjectFor(ds annotation.Dataset, b annotation.BBox, rec annotation.ImageRecord) vocObject {
	px := b.Pixels(rec.Width, rec.Height)
	return vocObject{
		Name: ds.ClassNames.NameOrPlaceholder(b.ClassID),
		Pose: "Unspecified",
		BndBox: vocBndBox{
			XMin: clampInt(int(math.Round(px.XMin)), 0, rec.Width),
			YMin: clampInt(int(math.Round(px.YMin)), 0, rec.Height),
			XMax: clampInt(int(math.Round(px.XMax())), 0, rec.Width),
			YMax: clampInt(int(math.Round(px.YMax())), 0, rec.Height),
		},
	}
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
