// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-detect/common"
)

// DefaultIoUThreshold is the overlap at or above which a lower-confidence box
// is suppressed.
const DefaultIoUThreshold = 0.7

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// IoUThreshold is the overlap threshold for suppression.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// ClassAware, if true, suppresses only within the same label. The default
	// is class-agnostic suppression.
	ClassAware bool `json:"class_aware" yaml:"class_aware"`
}

// DefaultNMSConfig returns the class-agnostic configuration with a 0.7 IoU threshold.
func DefaultNMSConfig() *NMSConfig {
	return &NMSConfig{IoUThreshold: DefaultIoUThreshold}
}

// ApplyGreedyNMS performs greedy Non-Maximum Suppression.
//
// Candidates are stably sorted by descending confidence, so equal scores keep
// their input order. The loop repeatedly emits the highest-confidence
// remaining box and removes it along with every remaining box whose IoU with
// it is >= the threshold. The input slice is not modified.
//
// Arguments:
//   - candidates: Decoded detections in any order.
//   - config: NMS configuration. A nil config uses DefaultNMSConfig.
//
// Returns:
//   - The kept boxes in descending confidence order. Empty input yields an empty slice.
func ApplyGreedyNMS(candidates []common.BoundingBox, config *NMSConfig) []common.BoundingBox {
	if config == nil {
		config = DefaultNMSConfig()
	}

	n := len(candidates)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return candidates[order[i]].Confidence > candidates[order[j]].Confidence
	})

	filtered := make([]common.BoundingBox, 0, n)
	removed := make([]bool, n)

	for i := 0; i < n; i++ {
		if removed[i] {
			continue
		}

		anchor := candidates[order[i]]
		filtered = append(filtered, anchor)
		removed[i] = true

		for j := i + 1; j < n; j++ {
			if removed[j] {
				continue
			}

			other := candidates[order[j]]
			if config.ClassAware && other.Label != anchor.Label {
				continue
			}
			if common.IoU(anchor, other) >= config.IoUThreshold {
				removed[j] = true
			}
		}
	}

	return filtered
}
