// Package providers - ONNX Runtime sessions, execution providers and the pooled inference engine.
package providers

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend represents different ONNX Runtime execution providers.
type ProviderBackend string

// ProviderOptions is a marker interface for provider-specific config.
type ProviderOptions interface {
	isProviderOptions()
}

// ExecutionProvider represents the contract that all execution providers must implement.
type ExecutionProvider interface {
	// Backend returns the backend identifier.
	Backend() ProviderBackend
	// Options returns the provider-specific options.
	Options() ProviderOptions
	// Apply appends the provider to the session options.
	Apply(options *ort.SessionOptions) error
}

// Backends lists every backend NewProvider accepts.
var Backends = []ProviderBackend{
	CPUProviderBackend,
	CoreMLProviderBackend,
	OpenVINOProviderBackend,
	CUDAProviderBackend,
}

// NewProvider creates the execution provider selected by config.Backend.
//
// Arguments:
//   - config: The runtime configuration carrying the backend and its options.
//
// Returns:
//   - ExecutionProvider: The new provider.
//   - error: An error if the backend is unknown.
func NewProvider(config Config) (ExecutionProvider, error) {
	switch config.Backend {
	case CPUProviderBackend, "":
		return NewCPUProvider(), nil
	case CoreMLProviderBackend:
		return NewCoreMLProvider(config.CoreML), nil
	case OpenVINOProviderBackend:
		return NewOpenVINOProvider(config.OpenVINO), nil
	case CUDAProviderBackend:
		return NewCUDAProvider(config.CUDA), nil
	default:
		return nil, errors.Errorf("no matching provider backend registered: %s", config.Backend)
	}
}
