// Package server - HTTP front end for the detection pipeline.
package server

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/profiler"
)

// ImageField is the multipart field /detect reads the upload from.
const ImageField = "image_file"

// Detector is the part of detectors.Detector the server needs.
type Detector interface {
	Detect(ctx context.Context, data []byte) ([]common.BoundingBox, error)
}

// MetricsSource reports session pool usage. *providers.Engine implements it.
type MetricsSource interface {
	Metrics() providers.PoolMetrics
}

// Server routes HTTP requests to a Detector.
type Server struct {
	config   config.ServerConfig
	detector Detector
	metrics  MetricsSource
	profiler *profiler.RuntimeProfiler
	logger   logrus.FieldLogger
	router   *mux.Router
	http     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics exposes pool usage on /metrics.
func WithMetrics(source MetricsSource) Option {
	return func(s *Server) {
		s.metrics = source
	}
}

// WithProfiler records request timings into p and exposes its snapshot on
// /metrics.
func WithProfiler(p *profiler.RuntimeProfiler) Option {
	return func(s *Server) {
		s.profiler = p
	}
}

// New builds the router for cfg.
func New(cfg config.ServerConfig, detector Detector, opts ...Option) *Server {
	s := &Server{
		config:   cfg,
		detector: detector,
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.HandleFunc("/detect", s.handleDetect).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	if cfg.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.StaticDir))).Methods(http.MethodGet)
	}
	s.router = r

	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.WithField("addr", s.config.Addr).Info("starting server")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server failed")
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
