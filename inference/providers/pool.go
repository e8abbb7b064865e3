package providers

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrPoolClosed is returned by Acquire after Close.
	ErrPoolClosed = errors.New("session pool is closed")
	// ErrAcquireTimeout is returned when no session frees up within the timeout.
	ErrAcquireTimeout = errors.New("timeout waiting for available session")
)

// RunnerFactory creates one pool member.
type RunnerFactory func() (Runner, error)

// Pool keeps a fixed number of loaded sessions and hands each to one caller
// at a time.
type Pool struct {
	sessions chan Runner
	size     int
	timeout  time.Duration

	mu     sync.RWMutex
	closed bool

	metrics PoolMetrics
	mmu     sync.Mutex
}

// PoolMetrics is a snapshot of pool usage counters.
type PoolMetrics struct {
	Size            int           `json:"pool_size"`
	InUse           int           `json:"sessions_in_use"`
	TotalAcquired   int64         `json:"total_acquired"`
	TotalReleased   int64         `json:"total_released"`
	AcquireFailures int64         `json:"acquire_failures"`
	WaitTime        time.Duration `json:"wait_time_ns"`
}

// NewPool creates size runners with factory. If any creation fails the
// runners created so far are closed.
//
// Arguments:
//   - size: The number of runners.
//   - timeout: The maximum wait in Acquire.
//   - factory: Creates one runner.
//
// Returns:
//   - *Pool: The filled pool.
//   - error: The first factory error.
func NewPool(size int, timeout time.Duration, factory RunnerFactory) (*Pool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}

	pool := &Pool{
		sessions: make(chan Runner, size),
		size:     size,
		timeout:  timeout,
		metrics:  PoolMetrics{Size: size},
	}

	for i := 0; i < size; i++ {
		runner, err := factory()
		if err != nil {
			pool.Close()
			return nil, errors.Wrapf(err, "failed to initialize session %d", i)
		}
		pool.sessions <- runner
	}

	return pool, nil
}

// Size returns the number of runners the pool was created with.
func (p *Pool) Size() int {
	return p.size
}

// Acquire waits for a free runner until ctx is done or the pool timeout expires.
func (p *Pool) Acquire(ctx context.Context) (Runner, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, ErrPoolClosed
	}

	start := time.Now()
	defer func() {
		p.mmu.Lock()
		p.metrics.WaitTime += time.Since(start)
		p.mmu.Unlock()
	}()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case runner, ok := <-p.sessions:
		if !ok {
			return nil, ErrPoolClosed
		}
		p.mmu.Lock()
		p.metrics.InUse++
		p.metrics.TotalAcquired++
		p.mmu.Unlock()
		return runner, nil
	case <-timer.C:
		p.recordFailure()
		return nil, errors.WithMessagef(ErrAcquireTimeout, "waited %s", p.timeout)
	case <-ctx.Done():
		p.recordFailure()
		return nil, ctx.Err()
	}
}

// Release returns runner to the pool. After Close the runner is closed instead.
func (p *Pool) Release(runner Runner) {
	p.mmu.Lock()
	p.metrics.InUse--
	p.metrics.TotalReleased++
	p.mmu.Unlock()

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		runner.Close()
		return
	}
	p.sessions <- runner
}

// Close closes every idle runner. Runners still acquired are closed on Release.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.sessions)

	var first error
	for runner := range p.sessions {
		if err := runner.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Metrics returns a snapshot of the usage counters.
func (p *Pool) Metrics() PoolMetrics {
	p.mmu.Lock()
	defer p.mmu.Unlock()
	return p.metrics
}

func (p *Pool) recordFailure() {
	p.mmu.Lock()
	p.metrics.AcquireFailures++
	p.mmu.Unlock()
}
