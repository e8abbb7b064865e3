// Package detectors - YOLO output decoding and the end-to-end detection pipeline.
package detectors

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

// Detection defaults for YOLOv8 models.
const (
	DefaultConfidenceThreshold float32 = 0.5
	DefaultNMSThreshold        float32 = postprocess.DefaultIoUThreshold
)

// Config holds the detection thresholds.
type Config struct {
	// InputSize is the square network input edge S used to rescale boxes.
	InputSize int `json:"input_size" yaml:"input_size"`

	// ConfidenceThreshold drops cells whose best class score is below it.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`

	// NMSThreshold controls Non-Maximum Suppression IoU threshold.
	NMSThreshold float32 `json:"nms_threshold" yaml:"nms_threshold"`

	// ClassAware restricts suppression to boxes sharing a label.
	ClassAware bool `json:"class_aware" yaml:"class_aware"`

	// RelevantClasses lists labels to keep after suppression (empty = all classes).
	RelevantClasses []string `json:"relevant_classes" yaml:"relevant_classes"`
}

// DefaultConfig returns the thresholds for a 640x640 YOLOv8 model.
//
// @example
// config := DefaultConfig()
// detector := NewDetector(engine, config)
func DefaultConfig() Config {
	return Config{
		InputSize:           inference.DefaultInputSize,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		NMSThreshold:        DefaultNMSThreshold,
		RelevantClasses:     []string{},
	}
}

// Validate checks the thresholds are in range and every relevant class is a
// known label.
func (c Config) Validate() error {
	if c.InputSize <= 0 {
		return errors.Errorf("input_size must be positive, got %d", c.InputSize)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return errors.Errorf("confidence_threshold must be within [0, 1], got %v", c.ConfidenceThreshold)
	}
	if c.NMSThreshold <= 0 || c.NMSThreshold > 1 {
		return errors.Errorf("nms_threshold must be within (0, 1], got %v", c.NMSThreshold)
	}
	for _, name := range c.RelevantClasses {
		if _, ok := models.YOLOClasses.Index(name); !ok {
			return errors.Errorf("relevant_classes: unknown label %q", name)
		}
	}
	return nil
}

// NMSConfig returns the suppression settings.
func (c Config) NMSConfig() *postprocess.NMSConfig {
	return &postprocess.NMSConfig{
		IoUThreshold: c.NMSThreshold,
		ClassAware:   c.ClassAware,
	}
}
