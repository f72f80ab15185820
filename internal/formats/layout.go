package formats

import (
	"bytes"
	"path"
	"strconv"
	"strings"

	"ndjsonconv/internal/annotation"
)

func splitImagePath(rec annotation.ImageRecord) string {
	return path.Join(string(rec.Split), "images", rec.File)
}

func splitLabelPath(rec annotation.ImageRecord, ext string) string {
	return path.Join(string(rec.Split), "labels", rec.Stem()+ext)
}

// classFolderPath places a classification image under {split}/{class}/{file}.
// Images without a label are not placed.
func classFolderPath(ds annotation.Dataset, rec annotation.ImageRecord) (string, bool) {
	if rec.Label == nil {
		return "", false
	}
	return path.Join(string(rec.Split), folderName(ds.ClassNames, rec.Label.ClassID), rec.File), true
}

// folderName turns a class label into a single path element.
func folderName(names annotation.ClassNames, id int) string {
	name := strings.TrimSpace(names.NameOrPlaceholder(id))
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "class_" + strconv.Itoa(id)
	}
	return name
}

// yoloLines renders the Ultralytics label lines shared by yolo and darknet.
func yoloLines(ds annotation.Dataset, rec annotation.ImageRecord) []byte {
	var buf bytes.Buffer
	switch ds.Task {
	case annotation.TaskDetect:
		for _, b := range rec.BBoxes {
			writeBox(&buf, b.Clamped())
			buf.WriteByte('\n')
		}
	case annotation.TaskSegment:
		for _, p := range rec.Polygons {
			buf.WriteString(strconv.Itoa(p.ClassID))
			for _, pt := range p.Points {
				c := pt.Clamped()
				writeFloat(&buf, c.X)
				writeFloat(&buf, c.Y)
			}
			buf.WriteByte('\n')
		}
	case annotation.TaskPose:
		dims := ds.KeypointDims()
		for _, k := range rec.Keypoints {
			box := k.Box.Clamped()
			box.ClassID = k.ClassID
			writeBox(&buf, box)
			for _, pt := range k.Points {
				writeFloat(&buf, annotation.Clamp01(pt.X))
				writeFloat(&buf, annotation.Clamp01(pt.Y))
				if dims == 3 {
					buf.WriteByte(' ')
					buf.WriteString(strconv.Itoa(int(pt.V)))
				}
			}
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

func writeBox(buf *bytes.Buffer, b annotation.BBox) {
	buf.WriteString(strconv.Itoa(b.ClassID))
	writeFloat(buf, b.CX)
	writeFloat(buf, b.CY)
	writeFloat(buf, b.W)
	writeFloat(buf, b.H)
}

func writeFloat(buf *bytes.Buffer, v float64) {
	buf.WriteByte(' ')
	buf.WriteString(strconv.FormatFloat(v, 'f', 6, 64))
}

// nameList renders one class name per line, indexed by class id.
func nameList(ds annotation.Dataset) []byte {
	var buf bytes.Buffer
	for _, name := range ds.ClassNames.Dense() {
		buf.WriteString(name)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// keypointCount returns the declared keypoints per instance, or the largest
// instance seen when kpt_shape is absent.
func keypointCount(ds annotation.Dataset, recs []annotation.ImageRecord) int {
	if n := ds.KeypointCount(); n > 0 {
		return n
	}
	n := 0
	for _, rec := range recs {
		for _, k := range rec.Keypoints {
			n = max(n, len(k.Points))
		}
	}
	return n
}
