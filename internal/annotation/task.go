package annotation

import (
	"fmt"
	"strings"
)

// Task identifies which annotation variant a dataset carries.
type Task string

const (
	TaskDetect   Task = "detect"
	TaskSegment  Task = "segment"
	TaskPose     Task = "pose"
	TaskClassify Task = "classify"
)

// Tasks lists every task in declaration order.
func Tasks() []Task {
	return []Task{TaskDetect, TaskSegment, TaskPose, TaskClassify}
}

// ParseTask converts the header `task` value into a Task.
func ParseTask(raw string) (Task, error) {
	switch Task(strings.ToLower(strings.TrimSpace(raw))) {
	case TaskDetect:
		return TaskDetect, nil
	case TaskSegment:
		return TaskSegment, nil
	case TaskPose:
		return TaskPose, nil
	case TaskClassify:
		return TaskClassify, nil
	default:
		return "", fmt.Errorf("unknown task %q", raw)
	}
}

// Label returns the human-readable task name.
func (t Task) Label() string {
	switch t {
	case TaskDetect:
		return "Detection"
	case TaskSegment:
		return "Segmentation"
	case TaskPose:
		return "Pose"
	case TaskClassify:
		return "Classification"
	default:
		return string(t)
	}
}

// Split is the dataset partition an image belongs to.
type Split string

const (
	SplitTrain Split = "train"
	SplitValid Split = "valid"
	SplitTest  Split = "test"
)

// Splits lists the partitions in archive order.
func Splits() []Split {
	return []Split{SplitTrain, SplitValid, SplitTest}
}

// ParseSplit maps a raw split value onto a Split. "val" is accepted as an
// alias for valid; anything unrecognized falls back to train.
func ParseSplit(raw string) Split {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "valid", "val", "validation":
		return SplitValid
	case "test":
		return SplitTest
	default:
		return SplitTrain
	}
}
