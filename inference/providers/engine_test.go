package providers

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/inference"
)

func testEngineConfig() Config {
	config := DefaultConfig()
	config.ModelPath = "model.onnx"
	config.InputSize = 4
	config.NumClasses = 2
	config.NumCells = 3
	config.PoolSize = 1
	config.AcquireTimeout = time.Second
	config.Warmup = 2
	return config
}

func TestEngineRun(t *testing.T) {
	config := testEngineConfig()
	logger, hook := test.NewNullLogger()

	want := make([]float32, (4+2)*3)
	for i := range want {
		want[i] = float32(i)
	}
	runner := &fakeRunner{out: want}

	engine, err := NewEngineWithFactory(config, logger, func() (Runner, error) { return runner, nil })
	require.NoError(t, err)
	defer engine.Close()

	assert.Equal(t, int64(2), runner.runs.Load(), "warmup runs")
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)

	out, err := engine.Run(context.Background(), inference.NewTensor(4))
	require.NoError(t, err)
	assert.Equal(t, 2, out.NumClasses())
	assert.Equal(t, 3, out.NumCells())
	assert.Equal(t, want, out.Data)
	assert.Equal(t, int64(1), engine.Metrics().TotalAcquired)
}

func TestEngineRunErrors(t *testing.T) {
	config := testEngineConfig()
	config.Warmup = 0
	logger, _ := test.NewNullLogger()

	tests := []struct {
		name   string
		runner *fakeRunner
		input  *inference.Tensor
	}{
		{
			name:   "runner failure",
			runner: &fakeRunner{err: errors.New("kernel exploded")},
			input:  inference.NewTensor(4),
		},
		{
			name:   "output length mismatch",
			runner: &fakeRunner{out: make([]float32, 5)},
			input:  inference.NewTensor(4),
		},
		{
			name:   "input size mismatch",
			runner: &fakeRunner{out: make([]float32, 18)},
			input:  inference.NewTensor(8),
		},
		{
			name:   "malformed input",
			runner: &fakeRunner{out: make([]float32, 18)},
			input:  &inference.Tensor{Shape: inference.InputShape(4), Data: make([]float32, 3)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := NewEngineWithFactory(config, logger, func() (Runner, error) { return tt.runner, nil })
			require.NoError(t, err)
			defer engine.Close()

			_, err = engine.Run(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, inference.ErrInference), "got %v", err)
		})
	}
}

func TestEngineRunContextCanceled(t *testing.T) {
	config := testEngineConfig()
	config.Warmup = 0
	config.AcquireTimeout = time.Minute
	logger, _ := test.NewNullLogger()

	engine, err := NewEngineWithFactory(config, logger, func() (Runner, error) {
		return &fakeRunner{out: make([]float32, 18)}, nil
	})
	require.NoError(t, err)
	defer engine.Close()

	held, err := engine.pool.Acquire(context.Background())
	require.NoError(t, err)
	defer engine.pool.Release(held)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = engine.Run(ctx, inference.NewTensor(4))
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.False(t, errors.Is(err, inference.ErrInference))
}

func TestEngineWarmupFailure(t *testing.T) {
	config := testEngineConfig()
	logger, _ := test.NewNullLogger()
	runner := &fakeRunner{err: errors.New("bad model")}

	_, err := NewEngineWithFactory(config, logger, func() (Runner, error) { return runner, nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warmup run 0 failed")
	assert.True(t, runner.closed.Load())
}

func TestNewEngineInvalidConfig(t *testing.T) {
	logger, _ := test.NewNullLogger()
	config := DefaultConfig()

	_, err := NewEngine(config, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model_path is required")
}
