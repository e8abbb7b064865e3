package inference

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Network layout constants for YOLOv8-style detectors.
const (
	// DefaultInputSize is the square edge length S of the network input.
	DefaultInputSize = 640
	// DefaultNumClasses is the number of object classes C.
	DefaultNumClasses = 80
	// DefaultNumCells is the number of candidate cells N.
	DefaultNumCells = 8400
	// BoxValues is the number of box coordinates per cell (xc, yc, w, h).
	BoxValues = 4
)

// Tensor is the network input: float32 values in [0, 1] with shape
// [1, 3, S, S], laid out channel-planar (all R, then all G, then all B).
type Tensor struct {
	Shape tensor.Shape
	Data  []float32
}

// RawOutput is the network output with shape [1, 4+C, N]. For cell i the
// values at k*N+i for k in 0..3 are center-x, center-y, width and height in
// network input pixels; the value at (4+c)*N+i is the score for class c.
type RawOutput struct {
	Shape tensor.Shape
	Data  []float32
}

// InputShape returns [1, 3, size, size].
func InputShape(size int) tensor.Shape {
	return tensor.Shape{1, 3, size, size}
}

// OutputShape returns [1, 4+numClasses, numCells].
func OutputShape(numClasses, numCells int) tensor.Shape {
	return tensor.Shape{1, BoxValues + numClasses, numCells}
}

// NewTensor allocates a zeroed input tensor for a size x size image.
func NewTensor(size int) *Tensor {
	shape := InputShape(size)
	return &Tensor{Shape: shape, Data: make([]float32, shape.TotalSize())}
}

// Size returns the spatial edge length S of the tensor.
func (t *Tensor) Size() int {
	if len(t.Shape) != 4 {
		return 0
	}
	return t.Shape[3]
}

// Validate checks the shape is [1, 3, S, S] and matches the data length.
func (t *Tensor) Validate() error {
	if len(t.Shape) != 4 || t.Shape[0] != 1 || t.Shape[1] != 3 || t.Shape[2] != t.Shape[3] {
		return errors.Errorf("invalid input tensor shape %v, want [1 3 S S]", t.Shape)
	}
	if len(t.Data) != t.Shape.TotalSize() {
		return errors.Errorf("input tensor holds %d floats, shape %v needs %d",
			len(t.Data), t.Shape, t.Shape.TotalSize())
	}
	return nil
}

// NewRawOutput wraps data as a [1, 4+numClasses, numCells] output.
func NewRawOutput(data []float32, numClasses, numCells int) (*RawOutput, error) {
	out := &RawOutput{Shape: OutputShape(numClasses, numCells), Data: data}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// NumClasses returns C.
func (o *RawOutput) NumClasses() int {
	if len(o.Shape) != 3 {
		return 0
	}
	return o.Shape[1] - BoxValues
}

// NumCells returns N.
func (o *RawOutput) NumCells() int {
	if len(o.Shape) != 3 {
		return 0
	}
	return o.Shape[2]
}

// Validate checks the shape is [1, 4+C, N] and matches the data length.
func (o *RawOutput) Validate() error {
	if len(o.Shape) != 3 || o.Shape[0] != 1 || o.Shape[1] < BoxValues || o.Shape[2] < 0 {
		return errors.Errorf("invalid output shape %v, want [1 4+C N]", o.Shape)
	}
	if len(o.Data) != o.Shape.TotalSize() {
		return errors.Errorf("output holds %d floats, shape %v needs %d",
			len(o.Data), o.Shape, o.Shape.TotalSize())
	}
	return nil
}
