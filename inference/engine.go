// Package inference - Network input/output tensors, preprocessing, and the inference engine contract.
package inference

import (
	"context"

	"github.com/pkg/errors"
)

// ErrInference wraps any failure reported by an Engine.
var ErrInference = errors.New("inference failed")

// Engine runs the detection network.
//
// Run takes a [1, 3, S, S] tensor and returns a [1, 4+C, N] output. It must be
// deterministic for a fixed model and input and safe to call from concurrent
// requests; any serialization around a native session is the engine's job.
type Engine interface {
	Run(ctx context.Context, in *Tensor) (*RawOutput, error)
	Close() error
}

// EngineFunc adapts a plain function to the Engine interface.
type EngineFunc func(ctx context.Context, in *Tensor) (*RawOutput, error)

// Run calls f(ctx, in).
func (f EngineFunc) Run(ctx context.Context, in *Tensor) (*RawOutput, error) {
	return f(ctx, in)
}

// Close is a no-op.
func (f EngineFunc) Close() error {
	return nil
}

// WrapInferenceError marks err as an ErrInference, keeping its message.
func WrapInferenceError(err error) error {
	if err == nil || errors.Is(err, ErrInference) {
		return err
	}
	return errors.WithMessage(ErrInference, err.Error())
}
