package providers

import (
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/inference"
)

// Defaults for the runtime configuration.
const (
	DefaultInputName      = "images"
	DefaultOutputName     = "output0"
	DefaultPoolSize       = 2
	DefaultAcquireTimeout = 5 * time.Second
	DefaultWarmup         = 1
)

// Config is the ONNX Runtime engine configuration.
type Config struct {
	// Backend selects the execution provider.
	Backend ProviderBackend `json:"backend" yaml:"backend"`

	// LibraryPath is the onnxruntime shared library. Empty resolves it with
	// GetSharedLibPath.
	LibraryPath string `json:"library_path" yaml:"library_path"`

	// ModelPath specifies the path to the ONNX model file.
	ModelPath string `json:"model_path" yaml:"model_path"`

	// InputName and OutputName are the model's graph node names.
	InputName  string `json:"input_name"  yaml:"input_name"`
	OutputName string `json:"output_name" yaml:"output_name"`

	// InputSize is the square network input edge S.
	InputSize int `json:"input_size" yaml:"input_size"`
	// NumClasses is C in the [1, 4+C, N] output.
	NumClasses int `json:"num_classes" yaml:"num_classes"`
	// NumCells is N in the [1, 4+C, N] output.
	NumCells int `json:"num_cells" yaml:"num_cells"`

	// Optimization holds session tuning knobs.
	Optimization OptimizationConfig `json:"optimization" yaml:"optimization"`

	// PoolSize is the number of sessions kept loaded.
	PoolSize int `json:"pool_size" yaml:"pool_size"`
	// AcquireTimeout bounds how long a request waits for a free session.
	AcquireTimeout time.Duration `json:"acquire_timeout" yaml:"acquire_timeout"`
	// Warmup defines how many inference runs each session performs at load.
	Warmup int `json:"warmup" yaml:"warmup"`
	// Verbose enables ONNX Runtime's own verbose logging.
	Verbose bool `json:"verbose" yaml:"verbose"`

	// Provider-specific options, read for the selected Backend only.
	CoreML   CoreMLOptions   `json:"coreml"   yaml:"coreml"`
	OpenVINO OpenVINOOptions `json:"openvino" yaml:"openvino"`
	CUDA     CUDAOptions     `json:"cuda"     yaml:"cuda"`
}

// DefaultConfig returns a CPU configuration for a 640x640 80-class YOLOv8 model.
//
// @example
// config := DefaultConfig()
// config.ModelPath = "path/to/model.onnx"
// engine, err := NewEngine(config, logger)
func DefaultConfig() Config {
	return Config{
		Backend:        CPUProviderBackend,
		InputName:      DefaultInputName,
		OutputName:     DefaultOutputName,
		InputSize:      inference.DefaultInputSize,
		NumClasses:     inference.DefaultNumClasses,
		NumCells:       inference.DefaultNumCells,
		Optimization:   DefaultOptimizationConfig(DefaultPoolSize),
		PoolSize:       DefaultPoolSize,
		AcquireTimeout: DefaultAcquireTimeout,
		Warmup:         DefaultWarmup,
		OpenVINO: OpenVINOOptions{
			DeviceType: "CPU",
			Precision:  inference.PrecisionFP32,
		},
	}
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	known := false
	for _, b := range Backends {
		if c.Backend == b {
			known = true
			break
		}
	}
	if !known {
		return errors.Errorf("unknown backend %q", c.Backend)
	}
	if c.ModelPath == "" {
		return errors.New("model_path is required")
	}
	if c.InputName == "" || c.OutputName == "" {
		return errors.New("input_name and output_name are required")
	}
	if c.InputSize <= 0 {
		return errors.Errorf("input_size must be positive, got %d", c.InputSize)
	}
	if c.NumClasses < 0 || c.NumCells < 0 {
		return errors.Errorf("num_classes and num_cells must not be negative, got %d and %d",
			c.NumClasses, c.NumCells)
	}
	if c.PoolSize <= 0 {
		return errors.Errorf("pool_size must be positive, got %d", c.PoolSize)
	}
	if c.AcquireTimeout <= 0 {
		return errors.Errorf("acquire_timeout must be positive, got %s", c.AcquireTimeout)
	}
	if c.Warmup < 0 {
		return errors.Errorf("warmup must not be negative, got %d", c.Warmup)
	}
	if !c.OpenVINO.Precision.Valid() {
		return errors.Errorf("unknown openvino precision %q", c.OpenVINO.Precision)
	}
	if _, err := c.Optimization.GraphOptimization.Level(); err != nil {
		return err
	}
	return nil
}
