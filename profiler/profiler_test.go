package profiler

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	rp := NewRuntimeProfiler(ProfilingOptions{MaxSamples: 2})

	rp.Observe("inference", 10*time.Millisecond)
	rp.Observe("inference", 30*time.Millisecond)
	rp.Observe("inference", 20*time.Millisecond)
	rp.Observe("decode", time.Millisecond)

	snap := rp.Snapshot()
	require.Len(t, snap.Operations, 2)

	stats := snap.Operations["inference"]
	assert.Equal(t, int64(3), stats.Count)
	assert.Equal(t, 25*time.Millisecond, stats.Avg, "average covers the last two samples")
	assert.Equal(t, 10*time.Millisecond, stats.Min)
	assert.Equal(t, 30*time.Millisecond, stats.Max)

	assert.Equal(t, int64(1), snap.Operations["decode"].Count)
	assert.Positive(t, snap.Goroutines)
	assert.Positive(t, snap.HeapAlloc)
}

func TestStartOperation(t *testing.T) {
	rp := NewRuntimeProfiler(ProfilingOptions{})

	done := rp.StartOperation("sleep")
	time.Sleep(5 * time.Millisecond)
	done()

	stats := rp.Snapshot().Operations["sleep"]
	assert.Equal(t, int64(1), stats.Count)
	assert.GreaterOrEqual(t, stats.Min, 5*time.Millisecond)
}

func TestObserveConcurrent(t *testing.T) {
	rp := NewRuntimeProfiler(ProfilingOptions{MaxSamples: 10})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				rp.Observe("op", time.Duration(j)*time.Microsecond)
				_ = rp.Snapshot()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(800), rp.Snapshot().Operations["op"].Count)
}

func TestStatusReport(t *testing.T) {
	logger, hook := test.NewNullLogger()
	rp := NewRuntimeProfiler(ProfilingOptions{ReportInterval: 5 * time.Millisecond, Logger: logger})
	rp.Observe("detect", 3*time.Millisecond)

	rp.Start()
	rp.Start()
	assert.Eventually(t, func() bool {
		for _, entry := range hook.AllEntries() {
			if entry.Message == "operation timings" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	rp.Stop()
	rp.Stop()

	var sawStatus bool
	for _, entry := range hook.AllEntries() {
		assert.Equal(t, logrus.InfoLevel, entry.Level)
		if entry.Message == "runtime status" {
			sawStatus = true
		}
		if entry.Message == "operation timings" {
			assert.Equal(t, "detect", entry.Data["operation"])
		}
	}
	assert.True(t, sawStatus)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KiB", formatBytes(1536))
	assert.Equal(t, "2.0 MiB", formatBytes(2<<20))
}
