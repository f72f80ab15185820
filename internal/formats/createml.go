package formats

import (
	"encoding/json"
	"fmt"
	"path"

	"ndjsonconv/internal/annotation"
)

const createMLFileName = "_annotations.createml.json"

type createMLEncoder struct{}

type createMLCoordinates struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type createMLObject struct {
	Label       string              `json:"label"`
	Coordinates createMLCoordinates `json:"coordinates"`
}

type createMLDetection struct {
	Image       string           `json:"image"`
	ImageURL    string           `json:"imageURL,omitempty"`
	Annotations []createMLObject `json:"annotations"`
}

type createMLClassification struct {
	Image string `json:"image"`
	Label string `json:"label"`
}

func (createMLEncoder) Format() Format { return FormatCreateML }

func (createMLEncoder) Tasks() []annotation.Task {
	return []annotation.Task{annotation.TaskDetect, annotation.TaskClassify}
}

// ImagePath keeps images next to their split document, which references
// them by file name.
func (createMLEncoder) ImagePath(ds annotation.Dataset, rec annotation.ImageRecord) (string, bool) {
	if ds.Task == annotation.TaskClassify && rec.Label == nil {
		return "", false
	}
	return path.Join(string(rec.Split), rec.File), true
}

func (createMLEncoder) EncodeLabel(annotation.Dataset, annotation.ImageRecord) (Entry, bool, error) {
	return Entry{}, false, nil
}

// EncodeConfig writes one document per split that has images. Detection
// coordinates are center-based absolute pixels.
func (createMLEncoder) EncodeConfig(ds annotation.Dataset, recs []annotation.ImageRecord, _ Meta) ([]Entry, error) {
	bySplit := make(map[annotation.Split][]any)
	for _, rec := range recs {
		switch ds.Task {
		case annotation.TaskClassify:
			if rec.Label == nil {
				continue
			}
			bySplit[rec.Split] = append(bySplit[rec.Split], createMLClassification{
				Image: rec.File,
				Label: ds.ClassNames.NameOrPlaceholder(rec.Label.ClassID),
			})
		default:
			item := createMLDetection{Image: rec.File, ImageURL: rec.URL, Annotations: []createMLObject{}}
			for _, b := range rec.BBoxes {
				c := b.Clamped()
				item.Annotations = append(item.Annotations, createMLObject{
					Label: ds.ClassNames.NameOrPlaceholder(b.ClassID),
					Coordinates: createMLCoordinates{
						X:      round4(c.CX * float64(rec.Width)),
						Y:      round4(c.CY * float64(rec.Height)),
						Width:  round4(c.W * float64(rec.Width)),
						Height: round4(c.H * float64(rec.Height)),
					},
				})
			}
			bySplit[rec.Split] = append(bySplit[rec.Split], item)
		}
	}

	var entries []Entry
	for _, split := range annotation.Splits() {
		items, ok := bySplit[split]
		if !ok {
			continue
		}
		data, err := json.MarshalIndent(items, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode createml %s: %w", split, err)
		}
		entries = append(entries, Entry{Name: path.Join(string(split), createMLFileName), Data: append(data, '\n')})
	}
	return entries, nil
}
