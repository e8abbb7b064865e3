package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/profiler"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MetricsResponse is the body of /metrics.
type MetricsResponse struct {
	Pool    *providers.PoolMetrics `json:"pool,omitempty"`
	Runtime *profiler.Snapshot     `json:"runtime,omitempty"`
}

type detectResult struct {
	boxes []common.BoundingBox
	err   error
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	logger := loggerFrom(r.Context(), s.logger)

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendError(w, http.StatusRequestEntityTooLarge, "too_large", "upload exceeds the size limit")
			return
		}
		sendError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	file, _, err := r.FormFile(ImageField)
	if err != nil {
		sendError(w, http.StatusBadRequest, "missing_file", "multipart field "+ImageField+" is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		sendError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	start := time.Now()
	results := make(chan detectResult, 1)
	go func() {
		boxes, err := s.detector.Detect(ctx, data)
		results <- detectResult{boxes: boxes, err: err}
	}()

	var res detectResult
	select {
	case res = <-results:
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	if s.profiler != nil {
		s.profiler.Observe("http_detect", time.Since(start))
	}

	if res.err != nil {
		status, code := classify(res.err)
		logger.WithError(res.err).WithField("status", status).Warn("detection failed")
		sendError(w, status, code, res.err.Error())
		return
	}

	if res.boxes == nil {
		res.boxes = []common.BoundingBox{}
	}
	logger.WithField("boxes", len(res.boxes)).Debug("detection served")
	sendJSON(w, http.StatusOK, res.boxes)
}

// classify maps a pipeline error to an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, images.ErrImageDecode):
		return http.StatusBadRequest, "invalid_image"
	case errors.Is(err, images.ErrEmptyImage):
		return http.StatusBadRequest, "empty_image"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "canceled"
	case errors.Is(err, inference.ErrInference):
		return http.StatusInternalServerError, "inference_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var resp MetricsResponse
	if s.metrics != nil {
		m := s.metrics.Metrics()
		resp.Pool = &m
	}
	if s.profiler != nil {
		snap := s.profiler.Snapshot()
		resp.Runtime = &snap
	}
	sendJSON(w, http.StatusOK, resp)
}

func sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("failed to write response")
	}
}

func sendError(w http.ResponseWriter, status int, code, message string) {
	sendJSON(w, status, ErrorResponse{Code: code, Message: message})
}
