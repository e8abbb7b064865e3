//go:build gocv

package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/inference/detectors"
	"github.com/nvr-ai/go-detect/inference/providers"
)

func main() {
	var (
		configPath string
		modelPath  string
		deviceID   int
		showWindow bool
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&modelPath, "model", "yolov8m.onnx", "Path to YOLOv8 ONNX model file")
	flag.IntVar(&deviceID, "device", 0, "Video capture device id")
	flag.BoolVar(&showWindow, "show-window", true, "Show the annotated frames")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	if cfg.Runtime.ModelPath == "" {
		cfg.Runtime.ModelPath = modelPath
	}
	cfg.Runtime.PoolSize = 1
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("invalid config")
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

	detector, err := detectors.NewDetector(engine, cfg.Detector,
		detectors.WithLogger(logger),
		detectors.WithPreprocessor(inference.NewBlobPreprocessor(cfg.Detector.InputSize)),
	)
	if err != nil {
		logger.WithError(err).Fatal("failed to create detector")
	}

	webcam, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		logger.WithError(err).Fatal("failed to open capture device")
	}
	defer webcam.Close()

	var window *gocv.Window
	if showWindow {
		window = gocv.NewWindow("Detect")
		defer window.Close()
	}

	img := gocv.NewMat()
	defer img.Close()

	green := color.RGBA{0, 255, 0, 0}

	fps := 0.0
	frameCount := 0
	lastTime := time.Now()

	logger.WithField("device", deviceID).Info("start reading camera device")
	for {
		if ok := webcam.Read(&img); !ok {
			logger.WithField("device", deviceID).Error("cannot read device")
			return
		}
		if img.Empty() {
			continue
		}

		frameCount++
		if elapsed := time.Since(lastTime).Seconds(); elapsed >= 1.0 {
			fps = float64(frameCount) / elapsed
			frameCount = 0
			lastTime = time.Now()
		}

		frame, err := img.ToImage()
		if err != nil {
			logger.WithError(err).Warn("failed to convert frame")
			continue
		}

		boxes, err := detector.DetectImage(context.Background(), frame)
		if err != nil {
			logger.WithError(err).Warn("detection failed")
			continue
		}
		logger.WithFields(logrus.Fields{"boxes": len(boxes), "fps": fps}).Debug("frame")

		if window == nil {
			continue
		}
		for _, b := range boxes {
			rect := b.ToRect()
			gocv.Rectangle(&img, rect, green, 2)
			gocv.PutText(&img, fmt.Sprintf("%s %.2f", b.Label, b.Confidence),
				image.Pt(rect.Min.X, rect.Min.Y-5), gocv.FontHersheyPlain, 1.2, green, 2)
		}
		window.IMShow(img)
		window.WaitKey(1)
	}
}
