package ingest

import (
	"encoding/json"
	"fmt"
	"math"

	"ndjsonconv/internal/annotation"
	"ndjsonconv/internal/logging"
)

// annotationKeys lists the accepted `annotations` keys per task, preferred
// key first.
var annotationKeys = map[annotation.Task][]string{
	annotation.TaskDetect:   {"bboxes"},
	annotation.TaskSegment:  {"segments", "polygons"},
	annotation.TaskPose:     {"pose", "keypoints"},
	annotation.TaskClassify: {"classification", "labels", "class"},
}

func (p *parser) decodeAnnotations(rec *annotation.ImageRecord, raw map[string]json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	task := p.dataset.Task
	var (
		key     string
		payload json.RawMessage
	)
	for _, candidate := range annotationKeys[task] {
		if value, ok := raw[candidate]; ok && len(value) > 0 && string(value) != "null" {
			key, payload = candidate, value
			break
		}
	}
	if payload == nil {
		return nil
	}

	if task == annotation.TaskClassify {
		return p.decodeClassification(rec, key, payload)
	}

	var rows [][]float64
	if err := json.Unmarshal(payload, &rows); err != nil {
		return schemaWrap(rec.Line, "annotations."+key, err)
	}
	for i, row := range rows {
		var err error
		switch task {
		case annotation.TaskDetect:
			err = p.appendBBox(rec, key, i, row)
		case annotation.TaskSegment:
			err = p.appendPolygon(rec, key, i, row)
		case annotation.TaskPose:
			err = p.appendPose(rec, key, i, row)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// classID validates the leading value of a row. A non-integral id is a
// malformed annotation; an id absent from class_names is fatal.
func (p *parser) classID(rec *annotation.ImageRecord, key string, index int, v float64) (int, *annotation.AnnotationError, error) {
	if v != math.Trunc(v) || v < 0 || v > math.MaxInt32 {
		return 0, p.annotationErr(rec, key, index, fmt.Sprintf("class id %v is not a non-negative integer", v)), nil
	}
	id := int(v)
	if !p.dataset.ClassNames.Has(id) {
		return 0, nil, schemaErr(rec.Line, "annotations."+key, fmt.Sprintf("class id %d is not declared in class_names", id))
	}
	return id, nil, nil
}

func (p *parser) appendBBox(rec *annotation.ImageRecord, key string, index int, row []float64) error {
	if len(row) < 5 {
		p.drop(p.annotationErr(rec, key, index, fmt.Sprintf("expected 5 values, got %d", len(row))))
		return nil
	}
	id, annErr, err := p.classID(rec, key, index, row[0])
	if err != nil {
		return err
	}
	if annErr != nil {
		p.drop(annErr)
		return nil
	}
	rec.BBoxes = append(rec.BBoxes, annotation.BBox{
		ClassID: id, CX: row[1], CY: row[2], W: row[3], H: row[4],
	}.Clamped())
	return nil
}

func (p *parser) appendPolygon(rec *annotation.ImageRecord, key string, index int, row []float64) error {
	if len(row) < 1 {
		p.drop(p.annotationErr(rec, key, index, "empty row"))
		return nil
	}
	id, annErr, err := p.classID(rec, key, index, row[0])
	if err != nil {
		return err
	}
	if annErr != nil {
		p.drop(annErr)
		return nil
	}
	coords := row[1:]
	if len(coords)%2 != 0 {
		p.drop(p.annotationErr(rec, key, index, fmt.Sprintf("odd coordinate count %d", len(coords))))
		return nil
	}
	if len(coords)/2 < 3 {
		p.drop(p.annotationErr(rec, key, index, fmt.Sprintf("polygon needs at least 3 points, got %d", len(coords)/2)))
		return nil
	}
	points := make([]annotation.Point, 0, len(coords)/2)
	for i := 0; i < len(coords); i += 2 {
		points = append(points, annotation.Point{X: coords[i], Y: coords[i+1]}.Clamped())
	}
	rec.Polygons = append(rec.Polygons, annotation.Polygon{ClassID: id, Points: points})
	return nil
}

func (p *parser) appendPose(rec *annotation.ImageRecord, key string, index int, row []float64) error {
	if len(row) < 5 {
		p.drop(p.annotationErr(rec, key, index, fmt.Sprintf("expected at least 5 values, got %d", len(row))))
		return nil
	}
	id, annErr, err := p.classID(rec, key, index, row[0])
	if err != nil {
		return err
	}
	if annErr != nil {
		p.drop(annErr)
		return nil
	}
	rest := row[5:]
	dims, reason := keypointDims(*p.dataset, rest)
	if reason != "" {
		p.drop(p.annotationErr(rec, key, index, reason))
		return nil
	}

	points := make([]annotation.Keypoint, 0, len(rest)/dims)
	for i := 0; i < len(rest); i += dims {
		kp := annotation.Keypoint{X: annotation.Clamp01(rest[i]), Y: annotation.Clamp01(rest[i+1])}
		if dims == 3 {
			v := rest[i+2]
			if v != math.Trunc(v) || !annotation.Visibility(v).Valid() {
				p.drop(p.annotationErr(rec, key, index, fmt.Sprintf("keypoint %d visibility %v not in {0,1,2}", i/dims, v)))
				return nil
			}
			kp.V = annotation.Visibility(v)
		} else if rest[i] > 0 || rest[i+1] > 0 {
			kp.V = annotation.VisibilityVisible
		}
		points = append(points, kp)
	}
	if p.dataset.KeypointCount() == 0 {
		p.inferredDims[dims]++
	}

	rec.Keypoints = append(rec.Keypoints, annotation.Keypoints{
		ClassID: id,
		Box:     annotation.BBox{ClassID: id, CX: row[1], CY: row[2], W: row[3], H: row[4]}.Clamped(),
		Points:  points,
	})
	return nil
}

// keypointDims decides how the trailing values of a pose row are grouped.
// kpt_shape wins when declared. Otherwise triples are used only when every
// third value is a visibility flag, and pairs are the fallback.
func keypointDims(ds annotation.Dataset, rest []float64) (int, string) {
	n := len(rest)
	if count := ds.KeypointCount(); count > 0 {
		dims := ds.KeypointDims()
		if n != count*dims {
			return 0, fmt.Sprintf("expected %d keypoint values for kpt_shape %v, got %d", count*dims, ds.KptShape, n)
		}
		return dims, ""
	}
	switch {
	case n%3 == 0 && visibilityTriples(rest):
		return 3, ""
	case n%2 == 0:
		return 2, ""
	case n%3 == 0:
		return 3, ""
	default:
		return 0, fmt.Sprintf("keypoint value count %d is neither pairs nor triples", n)
	}
}

func visibilityTriples(rest []float64) bool {
	for i := 2; i < len(rest); i += 3 {
		v := rest[i]
		if v != math.Trunc(v) || !annotation.Visibility(v).Valid() {
			return false
		}
	}
	return true
}

func (p *parser) decodeClassification(rec *annotation.ImageRecord, key string, payload json.RawMessage) error {
	var ids []float64
	var single float64
	if err := json.Unmarshal(payload, &single); err == nil {
		ids = []float64{single}
	} else if err := json.Unmarshal(payload, &ids); err != nil {
		return schemaWrap(rec.Line, "annotations."+key, err)
	}

	for i, raw := range ids {
		id, annErr, err := p.classID(rec, key, i, raw)
		if err != nil {
			return err
		}
		if annErr != nil {
			p.drop(annErr)
			continue
		}
		if rec.Label != nil {
			logging.WarnWithContext(p.logger, "multiple classification labels on image; keeping the last",
				"classification_label_override",
				logging.String("file", rec.File),
				logging.Int("line", rec.Line),
				logging.Int("previous_class", rec.Label.ClassID),
				logging.Int("class", id),
				logging.String(logging.FieldImpact, "earlier labels are ignored"),
			)
		}
		rec.Label = &annotation.ClassLabel{ClassID: id}
	}
	return nil
}

func (p *parser) annotationErr(rec *annotation.ImageRecord, key string, index int, reason string) *annotation.AnnotationError {
	return &annotation.AnnotationError{Line: rec.Line, File: rec.File, Kind: key, Index: index, Reason: reason}
}

func (p *parser) drop(err *annotation.AnnotationError) {
	p.dropped = append(p.dropped, err)
	p.logger.Debug("annotation dropped", logging.Error(err))
}
