package formats

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"ndjsonconv/internal/annotation"
)

type yoloEncoder struct{}

type yoloDataYAML struct {
	Path     string         `yaml:"path"`
	Train    string         `yaml:"train"`
	Val      string         `yaml:"val"`
	Test     string         `yaml:"test"`
	NC       int            `yaml:"nc"`
	Names    map[int]string `yaml:"names"`
	KptShape []int          `yaml:"kpt_shape,omitempty,flow"`
}

func (yoloEncoder) Format() Format { return FormatYOLO }

func (yoloEncoder) Tasks() []annotation.Task {
	return []annotation.Task{annotation.TaskDetect, annotation.TaskSegment, annotation.TaskPose, annotation.TaskClassify}
}

func (yoloEncoder) ImagePath(ds annotation.Dataset, rec annotation.ImageRecord) (string, bool) {
	if ds.Task == annotation.TaskClassify {
		return classFolderPath(ds, rec)
	}
	return splitImagePath(rec), true
}

func (yoloEncoder) EncodeLabel(ds annotation.Dataset, rec annotation.ImageRecord) (Entry, bool, error) {
	if ds.Task == annotation.TaskClassify {
		return Entry{}, false, nil
	}
	return Entry{Name: splitLabelPath(rec, ".txt"), Data: yoloLines(ds, rec)}, true, nil
}

func (yoloEncoder) EncodeConfig(ds annotation.Dataset, recs []annotation.ImageRecord, _ Meta) ([]Entry, error) {
	dense := ds.ClassNames.Dense()
	doc := yoloDataYAML{
		Path:  ".",
		Train: "train/images",
		Val:   "valid/images",
		Test:  "test/images",
		NC:    len(dense),
		Names: make(map[int]string, len(dense)),
	}
	if ds.Task == annotation.TaskClassify {
		doc.Train, doc.Val, doc.Test = "train", "valid", "test"
	}
	for id, name := range dense {
		doc.Names[id] = name
	}
	if ds.Task == annotation.TaskPose {
		if n := keypointCount(ds, recs); n > 0 {
			doc.KptShape = []int{n, ds.KeypointDims()}
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode data.yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode data.yaml: %w", err)
	}

	return []Entry{
		{Name: "data.yaml", Data: buf.Bytes()},
		{Name: "classes.txt", Data: nameList(ds)},
	}, nil
}
