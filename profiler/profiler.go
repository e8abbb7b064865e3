// Package profiler - Rolling operation timings and runtime statistics.
package profiler

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RuntimeProfiler aggregates named operation timings over a rolling window and
// optionally logs a periodic status report. It is safe for concurrent use.
type RuntimeProfiler struct {
	reportInterval time.Duration
	maxSamples     int
	logger         logrus.FieldLogger

	mu             sync.RWMutex
	startTime      time.Time
	operationTimes map[string]*TimeTracker

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// TimeTracker tracks timing statistics for one operation.
type TimeTracker struct {
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// ReportInterval specifies how often Start logs a status report (default: 1m).
	ReportInterval time.Duration
	// MaxSamples specifies how many recent durations are averaged (default: 600).
	MaxSamples int
	// Logger receives the periodic report (default: logrus.StandardLogger()).
	Logger logrus.FieldLogger
}

// OperationStats summarizes one operation. Avg covers the rolling window,
// Min, Max and Count cover the whole lifetime.
type OperationStats struct {
	Count int64         `json:"count"`
	Avg   time.Duration `json:"avg_ns"`
	Min   time.Duration `json:"min_ns"`
	Max   time.Duration `json:"max_ns"`
}

// Snapshot is a point-in-time view of the profiler.
type Snapshot struct {
	Uptime     time.Duration             `json:"uptime_ns"`
	Goroutines int                       `json:"goroutines"`
	HeapAlloc  uint64                    `json:"heap_alloc_bytes"`
	NumGC      uint32                    `json:"num_gc"`
	Operations map[string]OperationStats `json:"operations"`
}

// NewRuntimeProfiler creates a new runtime profiler with the specified options.
func NewRuntimeProfiler(opts ProfilingOptions) *RuntimeProfiler {
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = time.Minute
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 600
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	return &RuntimeProfiler{
		reportInterval: opts.ReportInterval,
		maxSamples:     opts.MaxSamples,
		logger:         opts.Logger,
		startTime:      time.Now(),
		operationTimes: make(map[string]*TimeTracker),
	}
}

// StartOperation begins timing an operation and returns the function that
// records it.
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		rp.Observe(name, time.Since(start))
	}
}

// Observe records one completed operation.
func (rp *RuntimeProfiler) Observe(name string, duration time.Duration) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	tracker, exists := rp.operationTimes[name]
	if !exists {
		tracker = &TimeTracker{
			durations: make([]time.Duration, 0, rp.maxSamples),
			minTime:   duration,
			maxTime:   duration,
		}
		rp.operationTimes[name] = tracker
	}

	tracker.durations = append(tracker.durations, duration)
	tracker.totalTime += duration
	if len(tracker.durations) > rp.maxSamples {
		tracker.totalTime -= tracker.durations[0]
		tracker.durations = tracker.durations[1:]
	}
	tracker.count++

	if duration < tracker.minTime {
		tracker.minTime = duration
	}
	if duration > tracker.maxTime {
		tracker.maxTime = duration
	}
}

// Snapshot returns the current statistics.
func (rp *RuntimeProfiler) Snapshot() Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	rp.mu.RLock()
	defer rp.mu.RUnlock()

	ops := make(map[string]OperationStats, len(rp.operationTimes))
	for name, tracker := range rp.operationTimes {
		stats := OperationStats{Count: tracker.count, Min: tracker.minTime, Max: tracker.maxTime}
		if n := len(tracker.durations); n > 0 {
			stats.Avg = tracker.totalTime / time.Duration(n)
		}
		ops[name] = stats
	}

	return Snapshot{
		Uptime:     time.Since(rp.startTime),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  mem.HeapAlloc,
		NumGC:      mem.NumGC,
		Operations: ops,
	}
}

// Start begins logging a status report every ReportInterval. Calling it on a
// running profiler is a no-op.
func (rp *RuntimeProfiler) Start() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.running {
		return
	}
	rp.running = true

	ctx, cancel := context.WithCancel(context.Background())
	rp.cancel = cancel

	rp.wg.Add(1)
	go func() {
		defer rp.wg.Done()

		ticker := time.NewTicker(rp.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rp.emitStatusReport()
			}
		}
	}()
}

// Stop stops the report loop and waits for it to exit.
func (rp *RuntimeProfiler) Stop() {
	rp.mu.Lock()
	if !rp.running {
		rp.mu.Unlock()
		return
	}
	rp.running = false
	cancel := rp.cancel
	rp.mu.Unlock()

	cancel()
	rp.wg.Wait()
}

func (rp *RuntimeProfiler) emitStatusReport() {
	snap := rp.Snapshot()

	rp.logger.WithFields(logrus.Fields{
		"uptime":     snap.Uptime.Truncate(time.Second),
		"goroutines": snap.Goroutines,
		"heap_alloc": formatBytes(snap.HeapAlloc),
		"num_gc":     snap.NumGC,
	}).Info("runtime status")

	names := make([]string, 0, len(snap.Operations))
	for name := range snap.Operations {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		stats := snap.Operations[name]
		rp.logger.WithFields(logrus.Fields{
			"operation": name,
			"count":     stats.Count,
			"avg":       stats.Avg.Truncate(time.Microsecond),
			"min":       stats.Min.Truncate(time.Microsecond),
			"max":       stats.Max.Truncate(time.Microsecond),
		}).Info("operation timings")
	}
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
