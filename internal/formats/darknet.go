package formats

import (
	"bytes"
	"fmt"
	"path"

	"ndjsonconv/internal/annotation"
)

type darknetEncoder struct{}

func (darknetEncoder) Format() Format { return FormatDarknet }

func (darknetEncoder) Tasks() []annotation.Task {
	return []annotation.Task{annotation.TaskDetect, annotation.TaskSegment, annotation.TaskPose}
}

func (darknetEncoder) ImagePath(_ annotation.Dataset, rec annotation.ImageRecord) (string, bool) {
	return path.Join(string(rec.Split), rec.File), true
}

func (darknetEncoder) EncodeLabel(ds annotation.Dataset, rec annotation.ImageRecord) (Entry, bool, error) {
	return Entry{Name: path.Join(string(rec.Split), rec.Stem()+".txt"), Data: yoloLines(ds, rec)}, true, nil
}

// EncodeConfig writes obj.names, obj.data and one image list per split.
// train.txt and valid.txt are always present since darknet requires both.
func (e darknetEncoder) EncodeConfig(ds annotation.Dataset, recs []annotation.ImageRecord, _ Meta) ([]Entry, error) {
	lists := map[annotation.Split]*bytes.Buffer{}
	for _, split := range annotation.Splits() {
		lists[split] = &bytes.Buffer{}
	}
	for _, rec := range recs {
		p, _ := e.ImagePath(ds, rec)
		lists[rec.Split].WriteString(p)
		lists[rec.Split].WriteByte('\n')
	}

	var data bytes.Buffer
	fmt.Fprintf(&data, "classes = %d\n", len(ds.ClassNames.Dense()))
	fmt.Fprintf(&data, "train = %s\n", "train.txt")
	fmt.Fprintf(&data, "valid = %s\n", "valid.txt")
	hasTest := lists[annotation.SplitTest].Len() > 0
	if hasTest {
		fmt.Fprintf(&data, "test = %s\n", "test.txt")
	}
	fmt.Fprintf(&data, "names = %s\n", "obj.names")
	fmt.Fprintf(&data, "backup = %s\n", "backup/")

	entries := []Entry{
		{Name: "obj.names", Data: nameList(ds)},
		{Name: "obj.data", Data: data.Bytes()},
		{Name: "train.txt", Data: lists[annotation.SplitTrain].Bytes()},
		{Name: "valid.txt", Data: lists[annotation.SplitValid].Bytes()},
	}
	if hasTest {
		entries = append(entries, Entry{Name: "test.txt", Data: lists[annotation.SplitTest].Bytes()})
	}
	return entries, nil
}
