package formats

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"ndjsonconv/internal/annotation"
)

const (
	cocoFileName         = "_annotations.coco.json"
	cocoDefaultKeypoints = 17
	cocoContributor      = "ndjsonconv"
)

type cocoEncoder struct{}

type cocoDocument struct {
	Info        cocoInfo         `json:"info"`
	Licenses    []cocoLicense    `json:"licenses"`
	Categories  []cocoCategory   `json:"categories"`
	Images      []cocoImage      `json:"images"`
	Annotations []cocoAnnotation `json:"annotations"`
}

type cocoInfo struct {
	Description string `json:"description"`
	URL         string `json:"url"`
	Version     string `json:"version"`
	Year        int    `json:"year"`
	Contributor string `json:"contributor"`
	DateCreated string `json:"date_created"`
}

type cocoLicense struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type cocoCategory struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	Supercategory string   `json:"supercategory"`
	Keypoints     []string `json:"keypoints,omitempty"`
	Skeleton      [][2]int `json:"skeleton,omitempty"`
}

type cocoImage struct {
	ID           int    `json:"id"`
	FileName     string `json:"file_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	License      int    `json:"license"`
	DateCaptured string `json:"date_captured"`
}

type cocoAnnotation struct {
	ID           int         `json:"id"`
	ImageID      int         `json:"image_id"`
	CategoryID   int         `json:"category_id"`
	BBox         [4]float64  `json:"bbox"`
	Area         float64     `json:"area"`
	IsCrowd      int         `json:"iscrowd"`
	Segmentation [][]float64 `json:"segmentation"`
	Keypoints    []float64   `json:"keypoints,omitempty"`
	NumKeypoints *int        `json:"num_keypoints,omitempty"`
}

func (cocoEncoder) Format() Format { return FormatCOCO }

func (cocoEncoder) Tasks() []annotation.Task {
	return []annotation.Task{annotation.TaskDetect, annotation.TaskSegment, annotation.TaskPose}
}

func (cocoEncoder) ImagePath(_ annotation.Dataset, rec annotation.ImageRecord) (string, bool) {
	return splitImagePath(rec), true
}

func (cocoEncoder) EncodeLabel(annotation.Dataset, annotation.ImageRecord) (Entry, bool, error) {
	return Entry{}, false, nil
}

func (e cocoEncoder) EncodeConfig(ds annotation.Dataset, recs []annotation.ImageRecord, meta Meta) ([]Entry, error) {
	created := meta.Created
	if created.IsZero() {
		created = time.Now()
	}
	stamp := created.UTC().Format(time.RFC3339)

	doc := cocoDocument{
		Info: cocoInfo{
			Description: cocoDescription(ds),
			URL:         ds.URL,
			Version:     strconv.Itoa(ds.Version),
			Year:        created.UTC().Year(),
			Contributor: cocoContributor,
			DateCreated: stamp,
		},
		Licenses:    []cocoLicense{{ID: 1, Name: "Unknown"}},
		Categories:  cocoCategories(ds, recs),
		Images:      make([]cocoImage, 0, len(recs)),
		Annotations: []cocoAnnotation{},
	}

	nextID := 1
	for i, rec := range recs {
		imageID := i + 1
		fileName, _ := e.ImagePath(ds, rec)
		doc.Images = append(doc.Images, cocoImage{
			ID:           imageID,
			FileName:     fileName,
			Width:        rec.Width,
			Height:       rec.Height,
			License:      1,
			DateCaptured: stamp,
		})
		for _, ann := range cocoAnnotations(ds, rec) {
			ann.ID = nextID
			ann.ImageID = imageID
			doc.Annotations = append(doc.Annotations, ann)
			nextID++
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode coco document: %w", err)
	}
	return []Entry{{Name: cocoFileName, Data: append(data, '\n')}}, nil
}

func cocoDescription(ds annotation.Dataset) string {
	if name := strings.TrimSpace(ds.Name); name != "" {
		return name
	}
	if desc := strings.TrimSpace(ds.Description); desc != "" {
		return desc
	}
	return "Converted from NDJSON"
}

// cocoCategories lists every class id up to the largest declared one so
// that category_id equals the class id used by the other formats.
func cocoCategories(ds annotation.Dataset, recs []annotation.ImageRecord) []cocoCategory {
	var keypointNames []string
	var skeleton [][2]int
	if ds.Task == annotation.TaskPose {
		n := keypointCount(ds, recs)
		if n == 0 {
			n = cocoDefaultKeypoints
		}
		keypointNames = make([]string, n)
		for k := range keypointNames {
			keypointNames[k] = "keypoint_" + strconv.Itoa(k)
		}
		skeleton = [][2]int{}
	}
	dense := ds.ClassNames.Dense()
	out := make([]cocoCategory, len(dense))
	for id, name := range dense {
		out[id] = cocoCategory{
			ID:            id,
			Name:          name,
			Supercategory: "none",
			Keypoints:     keypointNames,
			Skeleton:      skeleton,
		}
	}
	return out
}

func cocoAnnotations(ds annotation.Dataset, rec annotation.ImageRecord) []cocoAnnotation {
	var out []cocoAnnotation
	switch ds.Task {
	case annotation.TaskDetect:
		for _, b := range rec.BBoxes {
			px := b.Pixels(rec.Width, rec.Height)
			out = append(out, cocoAnnotation{
				CategoryID:   b.ClassID,
				BBox:         pixelBox(px),
				Area:         round4(px.Area()),
				Segmentation: [][]float64{},
			})
		}
	case annotation.TaskSegment:
		for _, p := range rec.Polygons {
			px := p.Bounds().Pixels(rec.Width, rec.Height)
			flat := make([]float64, 0, len(p.Points)*2)
			for _, pt := range p.Points {
				x, y := pt.Pixels(rec.Width, rec.Height)
				flat = append(flat, round4(x), round4(y))
			}
			out = append(out, cocoAnnotation{
				CategoryID:   p.ClassID,
				BBox:         pixelBox(px),
				Area:         round4(p.PixelArea(rec.Width, rec.Height)),
				Segmentation: [][]float64{flat},
			})
		}
	case annotation.TaskPose:
		for _, k := range rec.Keypoints {
			box := k.Box
			if box.W == 0 && box.H == 0 {
				box = annotation.BoundsOfKeypoints(k.Points)
			}
			px := box.Pixels(rec.Width, rec.Height)
			flat := make([]float64, 0, len(k.Points)*3)
			for _, kp := range k.Points {
				if kp.V == annotation.VisibilityAbsent {
					flat = append(flat, 0, 0, 0)
					continue
				}
				x, y := annotation.Point{X: kp.X, Y: kp.Y}.Pixels(rec.Width, rec.Height)
				flat = append(flat, round4(x), round4(y), float64(kp.V))
			}
			visible := k.VisibleCount()
			out = append(out, cocoAnnotation{
				CategoryID:   k.ClassID,
				BBox:         pixelBox(px),
				Area:         round4(px.Area()),
				Segmentation: [][]float64{},
				Keypoints:    flat,
				NumKeypoints: &visible,
			})
		}
	}
	return out
}

func pixelBox(p annotation.PixelBox) [4]float64 {
	return [4]float64{round4(p.XMin), round4(p.YMin), round4(p.W), round4(p.H)}
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
