// Package benchmark - Throughput and latency benchmarks for the detection pipeline.
package benchmark

import (
	"runtime"
	"sort"
	"time"

	"github.com/nvr-ai/go-detect/inference/detectors"
)

// PerformanceMetrics captures the outcome of one scenario. Stage durations
// are per-image averages over the successful iterations.
type PerformanceMetrics struct {
	Scenario           Scenario       `json:"scenario"`
	Timestamp          time.Time      `json:"timestamp"`
	TotalDuration      time.Duration  `json:"total_duration"`
	PreprocessDuration time.Duration  `json:"preprocess_duration"`
	InferenceDuration  time.Duration  `json:"inference_duration"`
	DecodeDuration     time.Duration  `json:"decode_duration"`
	NMSDuration        time.Duration  `json:"nms_duration"`
	Latency            LatencyMetrics `json:"latency"`
	FramesPerSecond    float64        `json:"frames_per_second"`
	MemoryStats        MemoryMetrics  `json:"memory_stats"`
	CPUStats           CPUMetrics     `json:"cpu_stats"`
	DetectionCount     int            `json:"detection_count"`
	ErrorRate          float64        `json:"error_rate"`
}

// LatencyMetrics summarizes end-to-end Detect latencies.
type LatencyMetrics struct {
	Min  time.Duration `json:"min"`
	Mean time.Duration `json:"mean"`
	P50  time.Duration `json:"p50"`
	P95  time.Duration `json:"p95"`
	P99  time.Duration `json:"p99"`
	Max  time.Duration `json:"max"`
}

// MemoryMetrics captures memory usage statistics
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes    uint64 `json:"heap_sys_bytes"`
}

// CPUMetrics captures CPU usage statistics
type CPUMetrics struct {
	NumCPU     int `json:"num_cpu"`
	GOMAXPROCS int `json:"gomaxprocs"`
}

// Summarize computes latency statistics using nearest-rank percentiles.
// samples is sorted in place.
func Summarize(samples []time.Duration) LatencyMetrics {
	if len(samples) == 0 {
		return LatencyMetrics{}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	var total time.Duration
	for _, s := range samples {
		total += s
	}

	rank := func(p float64) time.Duration {
		idx := int(p*float64(len(samples))+0.999999) - 1
		if idx < 0 {
			idx = 0
		}
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		return samples[idx]
	}

	return LatencyMetrics{
		Min:  samples[0],
		Mean: total / time.Duration(len(samples)),
		P50:  rank(0.50),
		P95:  rank(0.95),
		P99:  rank(0.99),
		Max:  samples[len(samples)-1],
	}
}

// stageTotals accumulates detector stage timings for one scenario.
type stageTotals struct {
	count int
	sum   detectors.Timings
}

func (s *stageTotals) add(t detectors.Timings) {
	s.count++
	s.sum.Preprocess += t.Preprocess
	s.sum.Inference += t.Inference
	s.sum.Decode += t.Decode
	s.sum.NMS += t.NMS
}

func (s *stageTotals) mean() detectors.Timings {
	if s.count == 0 {
		return detectors.Timings{}
	}
	n := time.Duration(s.count)
	return detectors.Timings{
		Preprocess: s.sum.Preprocess / n,
		Inference:  s.sum.Inference / n,
		Decode:     s.sum.Decode / n,
		NMS:        s.sum.NMS / n,
	}
}

func memoryDelta(start, end runtime.MemStats) MemoryMetrics {
	return MemoryMetrics{
		AllocBytes:      end.Alloc,
		TotalAllocBytes: end.TotalAlloc - start.TotalAlloc,
		SysBytes:        end.Sys,
		NumGC:           end.NumGC - start.NumGC,
		HeapAllocBytes:  end.HeapAlloc,
		HeapSysBytes:    end.HeapSys,
	}
}
