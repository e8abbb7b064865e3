// Package models - Output class tables of the supported detection models.
package models

import "fmt"

// OutputClassSet is an ordered list of labels indexed by class id.
//
// Sets are built once at package initialization and only exposed through
// read accessors, so they can be shared by every request without locking.
type OutputClassSet struct {
	names     []string
	nameToIdx map[string]int
}

// newOutputClassSet copies names into an immutable set indexed by position.
func newOutputClassSet(names ...string) *OutputClassSet {
	set := &OutputClassSet{
		names:     append([]string(nil), names...),
		nameToIdx: make(map[string]int, len(names)),
	}
	for i, name := range set.names {
		set.nameToIdx[name] = i
	}
	return set
}

// Len returns the number of classes in the set.
func (s *OutputClassSet) Len() int {
	return len(s.names)
}

// Name returns the label for a class id, or "unknown_<id>" when the id is
// outside the table.
func (s *OutputClassSet) Name(idx int) string {
	if idx >= 0 && idx < len(s.names) {
		return s.names[idx]
	}
	return fmt.Sprintf("unknown_%d", idx)
}

// Index returns the class id for a label.
func (s *OutputClassSet) Index(name string) (int, bool) {
	idx, ok := s.nameToIdx[name]
	return idx, ok
}

// YOLOClasses is the 80 COCO classes without a background entry.
// YOLO models index directly into this zero-based list.
var YOLOClasses = newOutputClassSet(
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog", "horse",
	"sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack", "umbrella", "handbag", "tie",
	"suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove",
	"skateboard", "surfboard", "tennis racket", "bottle", "wine glass", "cup", "fork", "knife", "spoon",
	"bowl", "banana", "apple", "sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut",
	"cake", "chair", "couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator", "book",
	"clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
)
