package annotation

import (
	"path"
	"strings"
)

// Dataset is the header of a conversion job.
type Dataset struct {
	Task        Task
	Name        string
	Description string
	URL         string
	Version     int
	// KptShape is [keypoints, dims] for pose datasets; nil when absent.
	KptShape []int
	// InferredKptDims is set by ingestion when KptShape is absent: 3 when
	// every pose row carried visibility triples, otherwise 2.
	InferredKptDims int
	ClassNames      ClassNames
}

// KeypointCount returns the declared keypoints per instance, or 0 when the
// header does not declare kpt_shape.
func (d Dataset) KeypointCount() int {
	if len(d.KptShape) == 0 {
		return 0
	}
	return d.KptShape[0]
}

// KeypointDims returns 2 or 3. A declared kpt_shape wins, then the layout
// inferred during ingestion; pairs are the fallback.
func (d Dataset) KeypointDims() int {
	if len(d.KptShape) > 1 {
		return d.KptShape[1]
	}
	if d.InferredKptDims == 3 {
		return 3
	}
	return 2
}

// ImageRecord is one image line of the export. Exactly one of the annotation
// slices is populated, matching the dataset task.
type ImageRecord struct {
	Index  int
	Line   int
	File   string
	URL    string
	Width  int
	Height int
	Split  Split

	BBoxes    []BBox
	Polygons  []Polygon
	Keypoints []Keypoints
	Label     *ClassLabel
}

// Stem returns the file name without its extension, keeping any directory
// prefix.
func (r ImageRecord) Stem() string {
	return FileStem(r.File)
}

// HasURL reports whether the record carries a download location.
func (r ImageRecord) HasURL() bool {
	return strings.TrimSpace(r.URL) != ""
}

// FileStem strips the final extension from name.
func FileStem(name string) string {
	ext := path.Ext(name)
	if ext == "" || ext == name {
		return name
	}
	return strings.TrimSuffix(name, ext)
}

// BBox is a center-based box in normalized coordinates.
type BBox struct {
	ClassID int
	CX      float64
	CY      float64
	W       float64
	H       float64
}

// Point is a normalized (x, y) pair.
type Point struct {
	X float64
	Y float64
}

// Polygon is an ordered outline in normalized coordinates.
type Polygon struct {
	ClassID int
	Points  []Point
}

// Visibility follows the COCO keypoint convention.
type Visibility int

const (
	VisibilityAbsent   Visibility = 0
	VisibilityOccluded Visibility = 1
	VisibilityVisible  Visibility = 2
)

// Valid reports whether v is one of the three defined states.
func (v Visibility) Valid() bool {
	return v >= VisibilityAbsent && v <= VisibilityVisible
}

// Keypoint is a normalized point with visibility.
type Keypoint struct {
	X float64
	Y float64
	V Visibility
}

// Keypoints is one pose instance: its enclosing box plus the keypoint list.
type Keypoints struct {
	ClassID int
	Box     BBox
	Points  []Keypoint
}

// VisibleCount returns the number of keypoints with non-zero visibility.
func (k Keypoints) VisibleCount() int {
	n := 0
	for _, p := range k.Points {
		if p.V != VisibilityAbsent {
			n++
		}
	}
	return n
}

// ClassLabel is the single label of a classification image.
type ClassLabel struct {
	ClassID int
}
