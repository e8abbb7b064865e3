package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference/detectors"
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/util"
)

const (
	// DefaultONNXModelPath is used when neither -model nor the config names one.
	DefaultONNXModelPath = "yolov8m.onnx"
	// DefaultTimeout bounds the detection of a single image.
	DefaultTimeout = 30 * time.Second
)

// FileResult is one line of -dir output.
type FileResult struct {
	File  string               `json:"file"`
	Frame int                  `json:"frame,omitempty"`
	Boxes []common.BoundingBox `json:"boxes"`
	Error string               `json:"error,omitempty"`
}

func main() {
	var (
		configPath string
		modelPath  string
		imagePath  string
		dirPath    string
		backend    string
		confidence float64
		nms        float64
		classAware bool
		timeout    time.Duration
		annotate   string
		verbose    bool
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&modelPath, "model", "", "Path to YOLOv8 ONNX model file (default "+DefaultONNXModelPath+")")
	flag.StringVar(&imagePath, "image", "", "Path to image file (.jpg, .jpeg, .png, .bmp, .webp)")
	flag.StringVar(&dirPath, "dir", "", "Directory of images, one JSON line is printed per file")
	flag.StringVar(&backend, "backend", "", "Execution provider: cpu, coreml, openvino or cuda")
	flag.Float64Var(&confidence, "confidence", -1, "Detection confidence threshold")
	flag.Float64Var(&nms, "nms", -1, "NMS IoU threshold")
	flag.BoolVar(&classAware, "class-aware", false, "Suppress overlapping boxes only within the same class")
	flag.DurationVar(&timeout, "timeout", DefaultTimeout, "Per image detection timeout")
	flag.StringVar(&annotate, "annotate", "", "Directory to write annotated copies of the inputs to")
	flag.BoolVar(&verbose, "v", false, "Enable debug logging")
	flag.Parse()

	if (imagePath == "") == (dirPath == "") {
		logrus.Fatal("exactly one of -image or -dir is required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	switch {
	case modelPath != "":
		cfg.Runtime.ModelPath = modelPath
	case cfg.Runtime.ModelPath == "":
		cfg.Runtime.ModelPath = DefaultONNXModelPath
	}
	if backend != "" {
		cfg.Runtime.Backend = providers.ProviderBackend(backend)
	}
	if confidence >= 0 {
		cfg.Detector.ConfidenceThreshold = float32(confidence)
	}
	if nms >= 0 {
		cfg.Detector.NMSThreshold = float32(nms)
	}
	if classAware {
		cfg.Detector.ClassAware = true
	}
	if verbose {
		cfg.LogLevel = logrus.DebugLevel.String()
	}
	cfg.Runtime.PoolSize = 1
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("invalid config")
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		logrus.WithError(err).Fatal("failed to create logger")
	}
	logger.SetOutput(os.Stderr)

	engine, err := providers.NewEngine(cfg.Runtime, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to create inference engine")
	}
	defer providers.DestroyRuntime()
	defer engine.Close()

	detector, err := detectors.NewDetector(engine, cfg.Detector, detectors.WithLogger(logger))
	if err != nil {
		logger.WithError(err).Fatal("failed to create detector")
	}

	if annotate != "" {
		if err := os.MkdirAll(annotate, 0o755); err != nil {
			logger.WithError(err).Fatal("failed to create annotation directory")
		}
	}

	if imagePath != "" {
		err = detectFile(detector, imagePath, timeout, annotate, os.Stdout)
	} else {
		err = detectDir(detector, dirPath, timeout, annotate, os.Stdout, logger)
	}
	if err != nil {
		logger.WithError(err).Error("detection failed")
		engine.Close()
		providers.DestroyRuntime()
		os.Exit(1)
	}
}

type imageDetector interface {
	Detect(ctx context.Context, data []byte) ([]common.BoundingBox, error)
}

func detect(d imageDetector, data []byte, timeout time.Duration) ([]common.BoundingBox, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	boxes, err := d.Detect(ctx, data)
	if boxes == nil {
		boxes = []common.BoundingBox{}
	}
	return boxes, err
}

// writeAnnotated draws boxes onto the image in data and saves it as
// <dir>/<name>.jpg. An empty dir disables annotation.
func writeAnnotated(dir, path string, data []byte, boxes []common.BoundingBox) error {
	if dir == "" {
		return nil
	}
	img, _, err := images.Decode(data)
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".jpg"
	return images.SaveAnnotated(filepath.Join(dir, name), images.Annotate(img, boxes))
}

// detectFile prints the boxes for one image as a JSON array.
func detectFile(d imageDetector, path string, timeout time.Duration, annotate string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "error reading %s", path)
	}

	boxes, err := detect(d, data, timeout)
	if err != nil {
		return errors.Wrap(err, path)
	}
	if err := writeAnnotated(annotate, path, data, boxes); err != nil {
		return err
	}
	return json.NewEncoder(out).Encode(boxes)
}

// detectDir prints one FileResult line per image in dir. Failed images are
// reported inline and do not stop the run.
func detectDir(d imageDetector, dir string, timeout time.Duration, annotate string, out io.Writer, logger logrus.FieldLogger) error {
	files, err := util.LoadDirectoryImageFiles(dir)
	if err != nil {
		return err
	}
	logger.WithField("files", len(files)).Info("processing directory")

	enc := json.NewEncoder(out)
	for _, file := range files {
		res := FileResult{File: file.Path}
		if file.Frame >= 0 {
			res.Frame = file.Frame
		}

		boxes, err := detect(d, file.Data, timeout)
		res.Boxes = boxes
		if err == nil {
			err = writeAnnotated(annotate, file.Path, file.Data, boxes)
		}
		if err != nil {
			res.Error = err.Error()
			logger.WithError(err).WithField("file", file.Path).Warn("detection failed")
		}
		if err := enc.Encode(res); err != nil {
			return errors.Wrap(err, "error writing result")
		}
	}
	return nil
}
