package providers

import (
	"runtime"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// GraphOptimization names an ONNX Runtime graph optimization level.
type GraphOptimization string

// GraphOptimization constants.
const (
	GraphOptimizationDisabled GraphOptimization = "disabled"
	GraphOptimizationBasic    GraphOptimization = "basic"
	GraphOptimizationExtended GraphOptimization = "extended"
	GraphOptimizationAll      GraphOptimization = "all"
)

// Level returns the native optimization level.
func (g GraphOptimization) Level() (ort.GraphOptimizationLevel, error) {
	switch g {
	case GraphOptimizationDisabled:
		return ort.GraphOptimizationLevelDisableAll, nil
	case GraphOptimizationBasic:
		return ort.GraphOptimizationLevelEnableBasic, nil
	case GraphOptimizationExtended, "":
		return ort.GraphOptimizationLevelEnableExtended, nil
	case GraphOptimizationAll:
		return ort.GraphOptimizationLevelEnableAll, nil
	default:
		return 0, errors.Errorf("unknown graph optimization level %q", g)
	}
}

// OptimizationConfig contains the ONNX Runtime session tuning knobs.
type OptimizationConfig struct {
	// GraphOptimization controls the level of graph rewrites done at load time.
	GraphOptimization GraphOptimization `json:"graph_optimization" yaml:"graph_optimization"`

	// Parallel runs independent graph nodes concurrently.
	Parallel bool `json:"parallel" yaml:"parallel"`

	// IntraOpNumThreads sets threads for parallelizing ops. 0 lets ORT decide.
	IntraOpNumThreads int `json:"intra_op_num_threads" yaml:"intra_op_num_threads"`

	// InterOpNumThreads sets threads for parallelizing independent ops. 0 lets ORT decide.
	InterOpNumThreads int `json:"inter_op_num_threads" yaml:"inter_op_num_threads"`
}

// DefaultOptimizationConfig splits the machine's cores between the sessions
// of a pool of the given size.
func DefaultOptimizationConfig(poolSize int) OptimizationConfig {
	if poolSize <= 0 {
		poolSize = 1
	}
	return OptimizationConfig{
		GraphOptimization: GraphOptimizationExtended,
		IntraOpNumThreads: maxInt(1, runtime.NumCPU()/poolSize),
		InterOpNumThreads: 1,
	}
}

// OptimizedSessionOptions builds session options from config and appends the
// execution provider.
//
// Arguments:
//   - config: Optimization configuration to apply.
//   - provider: The execution provider to register.
//
// Returns:
//   - *ort.SessionOptions: Configured session options; the caller must Destroy them.
//   - error: Configuration error if any.
func OptimizedSessionOptions(config OptimizationConfig, provider ExecutionProvider) (*ort.SessionOptions, error) {
	level, err := config.GraphOptimization.Level()
	if err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session options")
	}

	var mode ort.ExecutionMode = ort.ExecutionModeSequential
	if config.Parallel {
		mode = ort.ExecutionModeParallel
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"graph optimization level", func() error { return options.SetGraphOptimizationLevel(level) }},
		{"execution mode", func() error { return options.SetExecutionMode(mode) }},
		{"intra-op threads", func() error { return options.SetIntraOpNumThreads(config.IntraOpNumThreads) }},
		{"inter-op threads", func() error { return options.SetInterOpNumThreads(config.InterOpNumThreads) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			options.Destroy()
			return nil, errors.Wrapf(err, "failed to set %s", step.name)
		}
	}

	if provider != nil {
		if err := provider.Apply(options); err != nil {
			options.Destroy()
			return nil, errors.Wrapf(err, "failed to configure %s execution provider", provider.Backend())
		}
	}

	return options, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
