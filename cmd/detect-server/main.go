package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/inference/detectors"
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/profiler"
	"github.com/nvr-ai/go-detect/server"
)

func main() {
	var (
		configPath string
		addr       string
		modelPath  string
		backend    string
		staticDir  string
		poolSize   int
		logLevel   string
		report     time.Duration
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	flag.StringVar(&modelPath, "model", "", "Path to YOLOv8 ONNX model (overrides runtime.model_path)")
	flag.StringVar(&backend, "backend", "", "Execution provider: cpu, coreml, openvino or cuda")
	flag.StringVar(&staticDir, "static", "", "Directory served at / (overrides server.static_dir)")
	flag.IntVar(&poolSize, "pool-size", 0, "Number of inference sessions (overrides runtime.pool_size)")
	flag.StringVar(&logLevel, "log-level", "", "Log level (overrides log_level)")
	flag.DurationVar(&report, "report-interval", time.Minute, "How often runtime statistics are logged, 0 disables")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if modelPath != "" {
		cfg.Runtime.ModelPath = modelPath
	}
	if backend != "" {
		cfg.Runtime.Backend = providers.ProviderBackend(backend)
	}
	if staticDir != "" {
		cfg.Server.StaticDir = staticDir
	}
	if poolSize > 0 {
		cfg.Runtime.PoolSize = poolSize
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("invalid config")
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		logrus.WithError(err).Fatal("failed to create logger")
	}

	if err := run(cfg, logger, report); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
}

func run(cfg config.Config, logger *logrus.Logger, report time.Duration) error {
	engine, err := providers.NewEngine(cfg.Runtime, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.WithError(err).Warn("failed to close engine")
		}
		if err := providers.DestroyRuntime(); err != nil {
			logger.WithError(err).Warn("failed to destroy onnxruntime environment")
		}
	}()

	prof := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{ReportInterval: report, Logger: logger})
	if report > 0 {
		prof.Start()
		defer prof.Stop()
	}

	detector, err := detectors.NewDetector(engine, cfg.Detector,
		detectors.WithLogger(logger),
		detectors.WithObserver(func(t detectors.Timings) {
			prof.Observe("preprocess", t.Preprocess)
			prof.Observe("inference", t.Inference)
			prof.Observe("decode", t.Decode)
			prof.Observe("nms", t.NMS)
		}),
	)
	if err != nil {
		return err
	}

	srv := server.New(cfg.Server, detector,
		server.WithLogger(logger),
		server.WithMetrics(engine),
		server.WithProfiler(prof),
	)

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case err := <-errc:
		return err
	case s := <-sig:
		logger.WithField("signal", s.String()).Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
