package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-detect/benchmark"
	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/inference/detectors"
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/util"
)

func main() {
	var (
		configFile    = flag.String("config", "", "Path to YAML service config")
		scenarioFile  = flag.String("scenarios", "", "Path to YAML scenario set")
		outputDir     = flag.String("output", "./benchmark_results", "Output directory for results")
		testImages    = flag.String("images", "", "Directory of images to use instead of synthetic frames")
		modelPath     = flag.String("model", "", "Path to ONNX model file")
		backend       = flag.String("backend", "", "Execution provider: cpu, coreml, openvino or cuda")
		comprehensive = flag.Bool("comprehensive", false, "Run every resolution and format")
		iterations    = flag.Int("iterations", 100, "Iterations per comprehensive scenario")
		timeout       = flag.Duration("timeout", 30*time.Minute, "Benchmark timeout duration")
	)
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	if *modelPath != "" {
		cfg.Runtime.ModelPath = *modelPath
	}
	if *backend != "" {
		cfg.Runtime.Backend = providers.ProviderBackend(*backend)
	}
	cfg.Runtime.PoolSize = 1
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("invalid config, -model or -config is required")
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		logrus.WithError(err).Fatal("failed to create logger")
	}

	engine, err := providers.NewEngine(cfg.Runtime, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to create inference engine")
	}
	defer providers.DestroyRuntime()
	defer engine.Close()

	var opts []benchmark.Option
	opts = append(opts, benchmark.WithLogger(logger))
	if *testImages != "" {
		files, err := util.LoadDirectoryImageFiles(*testImages)
		if err != nil {
			logger.WithError(err).Fatal("failed to load test images")
		}
		if len(files) == 0 {
			logger.WithField("dir", *testImages).Fatal("no images found")
		}
		opts = append(opts, benchmark.WithCorpus(files))
	}

	var suite *benchmark.Suite
	detector, err := detectors.NewDetector(engine, cfg.Detector,
		detectors.WithLogger(logger),
		detectors.WithObserver(func(t detectors.Timings) { suite.Observe(t) }),
	)
	if err != nil {
		logger.WithError(err).Fatal("failed to create detector")
	}
	suite = benchmark.NewSuite(detector, opts...)

	var set *benchmark.ScenarioSet
	switch {
	case *scenarioFile != "":
		set, err = benchmark.LoadScenarioSet(*scenarioFile)
		if err != nil {
			logger.WithError(err).Fatal("failed to load scenario file")
		}
	case *comprehensive:
		set = benchmark.ComprehensiveScenarios(*iterations)
	default:
		set = benchmark.QuickScenarios()
	}
	for _, scenario := range set.Scenarios {
		suite.AddScenario(scenario)
	}
	logger.WithFields(logrus.Fields{"set": set.Name, "scenarios": len(set.Scenarios)}).Info("starting benchmark")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	if err := suite.RunAll(ctx); err != nil {
		logger.WithError(err).Error("benchmark execution failed")
	}
	if err := suite.SaveResults(*outputDir); err != nil {
		logger.WithError(err).Error("failed to save results")
	}

	results := suite.Results()
	var best benchmark.PerformanceMetrics
	for _, r := range results {
		if r.FramesPerSecond > best.FramesPerSecond {
			best = r
		}
	}
	logger.WithFields(logrus.Fields{
		"duration":  time.Since(start).Truncate(time.Millisecond),
		"scenarios": len(results),
		"output":    *outputDir,
		"best":      best.Scenario.Name,
		"best_fps":  fmt.Sprintf("%.2f", best.FramesPerSecond),
	}).Info("benchmark complete")
}

func init() {
	flag.Usage = func() {
		name := filepath.Base(os.Args[0])
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", name)
		fmt.Fprintf(os.Stderr, "Measures detection throughput and per-stage latency.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -model ./yolov8n.onnx\n", name)
		fmt.Fprintf(os.Stderr, "  %s -model ./yolov8n.onnx -images ./frames\n", name)
		fmt.Fprintf(os.Stderr, "  %s -config ./detect.yaml -scenarios ./scenarios.yaml\n", name)
	}
}
