package providers

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/go-detect/inference"
)

// Runner executes one forward pass. Implementations are not required to be
// safe for concurrent use; the Pool hands each one to a single caller at a time.
type Runner interface {
	// Run copies input into the network, runs it, and returns a copy of the output.
	Run(input []float32) ([]float32, error)
	// Close releases the native resources.
	Close() error
}

// Session represents a model session from the onnxruntime with its input and
// output tensors bound.
type Session struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// NewSession creates a new ONNX Runtime session with preallocated input and
// output tensors.
//
// Order of operations:
//  1. Tensor allocation: fixed-shape buffers for the [1, 3, S, S] input and
//     the [1, 4+C, N] output.
//  2. Session options: threading, optimization level and the execution provider.
//  3. Session creation: loads the model and binds the tensors.
//
// InitializeRuntime must have been called first.
//
// Arguments:
//   - config: The runtime configuration.
//   - provider: The execution provider for the session.
//
// Returns:
//   - *Session: The session; Close releases it.
//   - error: An error if the session creation fails.
func NewSession(config Config, provider ExecutionProvider) (*Session, error) {
	inputShape := ort.NewShape(int64FromShape(inference.InputShape(config.InputSize))...)
	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}

	outputShape := ort.NewShape(int64FromShape(inference.OutputShape(config.NumClasses, config.NumCells))...)
	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "error creating output tensor")
	}

	options, err := OptimizedSessionOptions(config.Optimization, provider)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(
		config.ModelPath,
		[]string{config.InputName},
		[]string{config.OutputName},
		[]ort.Value{input},
		[]ort.Value{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrapf(err, "error creating ORT session for %s", config.ModelPath)
	}

	return &Session{session: session, input: input, output: output}, nil
}

// Run copies in into the bound input tensor, runs the model and returns a
// copy of the output tensor.
func (s *Session) Run(in []float32) ([]float32, error) {
	if s.session == nil {
		return nil, errors.New("session is closed")
	}

	dst := s.input.GetData()
	if len(in) != len(dst) {
		return nil, errors.Errorf("input holds %d floats, session expects %d", len(in), len(dst))
	}
	copy(dst, in)

	if err := s.session.Run(); err != nil {
		return nil, errors.Wrap(err, "error running ORT session")
	}

	src := s.output.GetData()
	out := make([]float32, len(src))
	copy(out, src)
	return out, nil
}

// Close releases the resources associated with the Session.
func (s *Session) Close() error {
	var err error
	if s.session != nil {
		err = s.session.Destroy()
		s.session = nil
	}
	if s.input != nil {
		s.input.Destroy()
		s.input = nil
	}
	if s.output != nil {
		s.output.Destroy()
		s.output = nil
	}
	return errors.Wrap(err, "error destroying ORT session")
}

func int64FromShape(shape []int) []int64 {
	out := make([]int64, len(shape))
	for i, d := range shape {
		out[i] = int64(d)
	}
	return out
}
