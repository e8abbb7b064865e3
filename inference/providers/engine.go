package providers

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-detect/inference"
)

// Engine is an inference.Engine backed by a pool of ONNX Runtime sessions.
type Engine struct {
	pool   *Pool
	config Config
	logger logrus.FieldLogger
}

var _ inference.Engine = (*Engine)(nil)

// NewEngine initializes the runtime, loads config.PoolSize sessions, and
// warms each one up.
//
// Arguments:
//   - config: The runtime configuration.
//   - logger: The logger for load and warmup events.
//
// Returns:
//   - *Engine: The engine; Close releases every session.
//   - error: An error if the runtime or any session fails to load.
func NewEngine(config Config, logger logrus.FieldLogger) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid runtime config")
	}
	if err := InitializeRuntime(config, logger); err != nil {
		return nil, err
	}

	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}

	logger = logger.WithFields(logrus.Fields{
		"model":   config.ModelPath,
		"backend": provider.Backend(),
	})

	factory := func() (Runner, error) {
		session, err := NewSession(config, provider)
		if err != nil {
			return nil, err
		}
		return session, nil
	}

	return NewEngineWithFactory(config, logger, factory)
}

// NewEngineWithFactory builds an Engine whose pool members come from factory.
func NewEngineWithFactory(config Config, logger logrus.FieldLogger, factory RunnerFactory) (*Engine, error) {
	start := time.Now()

	warm := func() (Runner, error) {
		runner, err := factory()
		if err != nil {
			return nil, err
		}
		if err := warmup(runner, config); err != nil {
			runner.Close()
			return nil, err
		}
		return runner, nil
	}

	pool, err := NewPool(config.PoolSize, config.AcquireTimeout, warm)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"pool_size": pool.Size(),
		"warmup":    config.Warmup,
		"elapsed":   time.Since(start),
	}).Info("inference engine ready")

	return &Engine{pool: pool, config: config, logger: logger}, nil
}

// Run executes the model on in. Errors from the session are reported as
// inference.ErrInference; context errors are returned as-is.
func (e *Engine) Run(ctx context.Context, in *inference.Tensor) (*inference.RawOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, inference.WrapInferenceError(err)
	}
	if in.Size() != e.config.InputSize {
		return nil, errors.WithMessagef(inference.ErrInference,
			"input size %d does not match model input size %d", in.Size(), e.config.InputSize)
	}

	runner, err := e.pool.Acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, inference.WrapInferenceError(err)
	}
	defer e.pool.Release(runner)

	data, err := runner.Run(in.Data)
	if err != nil {
		return nil, inference.WrapInferenceError(err)
	}

	out, err := inference.NewRawOutput(data, e.config.NumClasses, e.config.NumCells)
	if err != nil {
		return nil, inference.WrapInferenceError(err)
	}
	return out, nil
}

// Metrics returns the session pool usage counters.
func (e *Engine) Metrics() PoolMetrics {
	return e.pool.Metrics()
}

// Close releases every session.
func (e *Engine) Close() error {
	return e.pool.Close()
}

func warmup(runner Runner, config Config) error {
	if config.Warmup <= 0 {
		return nil
	}
	in := inference.NewTensor(config.InputSize)
	for i := 0; i < config.Warmup; i++ {
		if _, err := runner.Run(in.Data); err != nil {
			return errors.Wrapf(err, "warmup run %d failed", i)
		}
	}
	return nil
}
