package benchmark

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/inference/detectors"
	"github.com/nvr-ai/go-detect/util"
)

// Detector is the part of detectors.Detector a benchmark drives.
type Detector interface {
	Detect(ctx context.Context, data []byte) ([]common.BoundingBox, error)
}

// Suite manages and executes benchmark scenarios.
//
// Stage timings reach the suite through Observe, which is meant to be
// registered with detectors.WithObserver on the benchmarked detector.
type Suite struct {
	detector Detector
	corpus   []util.ImageFile
	logger   logrus.FieldLogger

	mu        sync.Mutex
	scenarios []Scenario
	results   []PerformanceMetrics
	stages    *stageTotals
}

// Option configures a Suite.
type Option func(*Suite)

// WithCorpus runs every scenario on the given images instead of synthetic
// ones. Resolution and Format of the scenario are then informational.
func WithCorpus(files []util.ImageFile) Option {
	return func(s *Suite) {
		s.corpus = files
	}
}

// WithLogger sets the progress logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Suite) {
		s.logger = logger
	}
}

// NewSuite creates a suite around detector.
func NewSuite(detector Detector, opts ...Option) *Suite {
	s := &Suite{
		detector: detector,
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Observe records the stage timings of one detection into the running
// scenario. Timings that arrive outside a scenario are dropped.
func (s *Suite) Observe(t detectors.Timings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stages != nil {
		s.stages.add(t)
	}
}

// AddScenario queues a scenario for RunAll.
func (s *Suite) AddScenario(scenario Scenario) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenarios = append(s.scenarios, scenario)
}

// RunScenario executes a single scenario and records its metrics.
func (s *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}

	inputs, err := s.inputs(scenario)
	if err != nil {
		return nil, err
	}

	for i := 0; i < scenario.WarmupRuns; i++ {
		if _, err := s.detector.Detect(ctx, inputs[i%len(inputs)]); err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	stages := &stageTotals{}
	s.mu.Lock()
	s.stages = stages
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.stages = nil
		s.mu.Unlock()
	}()

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	latencies := make([]time.Duration, 0, scenario.Iterations)
	detections, failures := 0, 0
	start := time.Now()

	for i := 0; i < scenario.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		t0 := time.Now()
		boxes, err := s.detector.Detect(ctx, inputs[i%len(inputs)])
		if err != nil {
			failures++
			continue
		}
		latencies = append(latencies, time.Since(t0))
		detections += len(boxes)
	}

	total := time.Since(start)

	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	s.mu.Lock()
	mean := stages.mean()
	s.mu.Unlock()

	metrics := PerformanceMetrics{
		Scenario:           scenario,
		Timestamp:          start,
		TotalDuration:      total,
		PreprocessDuration: mean.Preprocess,
		InferenceDuration:  mean.Inference,
		DecodeDuration:     mean.Decode,
		NMSDuration:        mean.NMS,
		Latency:            Summarize(latencies),
		MemoryStats:        memoryDelta(startMem, endMem),
		CPUStats:           CPUMetrics{NumCPU: runtime.NumCPU(), GOMAXPROCS: runtime.GOMAXPROCS(0)},
		DetectionCount:     detections,
		ErrorRate:          float64(failures) / float64(scenario.Iterations),
	}
	if secs := total.Seconds(); secs > 0 {
		metrics.FramesPerSecond = float64(len(latencies)) / secs
	}

	s.mu.Lock()
	s.results = append(s.results, metrics)
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"scenario":   scenario.Name,
		"fps":        strconv.FormatFloat(metrics.FramesPerSecond, 'f', 2, 64),
		"p50":        metrics.Latency.P50,
		"p95":        metrics.Latency.P95,
		"error_rate": metrics.ErrorRate,
	}).Info("scenario complete")

	return &metrics, nil
}

// RunAll executes every queued scenario in order. A failed scenario is
// logged and skipped.
func (s *Suite) RunAll(ctx context.Context) error {
	s.mu.Lock()
	scenarios := append([]Scenario(nil), s.scenarios...)
	s.mu.Unlock()

	for _, scenario := range scenarios {
		if _, err := s.RunScenario(ctx, scenario); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.WithError(err).WithField("scenario", scenario.Name).Warn("scenario failed")
		}
	}
	return nil
}

// Results returns a copy of the metrics recorded so far.
func (s *Suite) Results() []PerformanceMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PerformanceMetrics(nil), s.results...)
}

// SaveResults writes results.json and summary.csv into dir.
func (s *Suite) SaveResults(dir string) error {
	results := s.Results()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "error creating %s", dir)
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return errors.Wrap(err, "error encoding results")
	}
	if err := os.WriteFile(filepath.Join(dir, "results.json"), data, 0o644); err != nil {
		return errors.Wrap(err, "error writing results")
	}

	return saveSummaryCSV(filepath.Join(dir, "summary.csv"), results)
}

func saveSummaryCSV(path string, results []PerformanceMetrics) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "error creating %s", path)
	}
	defer f.Close()

	ms := func(d time.Duration) string {
		return strconv.FormatFloat(float64(d.Microseconds())/1000, 'f', 3, 64)
	}

	w := csv.NewWriter(f)
	_ = w.Write([]string{
		"scenario", "width", "height", "format", "iterations", "fps",
		"p50_ms", "p95_ms", "p99_ms", "preprocess_ms", "inference_ms", "decode_ms", "nms_ms",
		"detections", "error_rate",
	})
	for _, r := range results {
		_ = w.Write([]string{
			r.Scenario.Name,
			strconv.Itoa(r.Scenario.Resolution.Width),
			strconv.Itoa(r.Scenario.Resolution.Height),
			string(r.Scenario.Format),
			strconv.Itoa(r.Scenario.Iterations),
			strconv.FormatFloat(r.FramesPerSecond, 'f', 2, 64),
			ms(r.Latency.P50), ms(r.Latency.P95), ms(r.Latency.P99),
			ms(r.PreprocessDuration), ms(r.InferenceDuration), ms(r.DecodeDuration), ms(r.NMSDuration),
			strconv.Itoa(r.DetectionCount),
			strconv.FormatFloat(r.ErrorRate, 'f', 4, 64),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrapf(err, "error writing %s", path)
	}
	return nil
}

func (s *Suite) inputs(scenario Scenario) ([][]byte, error) {
	if len(s.corpus) > 0 {
		inputs := make([][]byte, len(s.corpus))
		for i, f := range s.corpus {
			inputs[i] = f.Data
		}
		return inputs, nil
	}

	data, err := SyntheticImage(scenario.Resolution, scenario.Format)
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %s", scenario.Name)
	}
	return [][]byte{data}, nil
}
