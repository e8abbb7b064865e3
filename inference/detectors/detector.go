package detectors

import (
	"context"
	"image"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

// Preprocessor builds network input tensors. inference.Preprocessor and the
// gocv-tagged inference.BlobPreprocessor implement it.
type Preprocessor interface {
	Prepare(data []byte) (*inference.Tensor, int, int, error)
	PrepareImage(img image.Image) (*inference.Tensor, int, int, error)
}

// Timings records how long each pipeline stage took for one request.
type Timings struct {
	Preprocess time.Duration
	Inference  time.Duration
	Decode     time.Duration
	NMS        time.Duration
}

// Total returns the sum of all stages.
func (t Timings) Total() time.Duration {
	return t.Preprocess + t.Inference + t.Decode + t.NMS
}

// Fields renders the timings as log fields in milliseconds.
func (t Timings) Fields() logrus.Fields {
	ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
	return logrus.Fields{
		"preprocess_ms": ms(t.Preprocess),
		"inference_ms":  ms(t.Inference),
		"decode_ms":     ms(t.Decode),
		"nms_ms":        ms(t.NMS),
		"total_ms":      ms(t.Total()),
	}
}

// Detector runs preprocess, inference, decode and suppression in order.
// It holds no per-request state and is safe for concurrent use when its
// engine is.
type Detector struct {
	engine       inference.Engine
	preprocessor Preprocessor
	decoder      *Decoder
	nms          *postprocess.NMSConfig
	relevant     map[string]bool
	logger       logrus.FieldLogger
	observer     func(Timings)
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger used for per-request timings.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(d *Detector) {
		d.logger = logger
	}
}

// WithObserver registers fn to receive the stage timings of every
// successful detection. fn must be safe for concurrent use.
func WithObserver(fn func(Timings)) Option {
	return func(d *Detector) {
		d.observer = fn
	}
}

// WithPreprocessor replaces the default nfnt/resize based preprocessor.
func WithPreprocessor(p Preprocessor) Option {
	return func(d *Detector) {
		d.preprocessor = p
	}
}

// NewDetector creates a Detector around engine.
//
// Arguments:
//   - engine: The inference engine; the Detector does not close it.
//   - config: The detection thresholds.
//   - opts: Optional logger and preprocessor overrides.
//
// Returns:
//   - *Detector: The detector.
//   - error: An error if config is invalid.
func NewDetector(engine inference.Engine, config Config, opts ...Option) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid detector config")
	}

	d := &Detector{
		engine:       engine,
		preprocessor: inference.NewPreprocessor(config.InputSize),
		decoder:      NewDecoder(config),
		nms:          config.NMSConfig(),
		logger:       logrus.StandardLogger(),
	}
	if len(config.RelevantClasses) > 0 {
		d.relevant = make(map[string]bool, len(config.RelevantClasses))
		for _, name := range config.RelevantClasses {
			d.relevant[name] = true
		}
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Detect decodes data and returns the final non-overlapping boxes in
// original image pixels, ordered by descending confidence.
//
// Returns images.ErrImageDecode or images.ErrEmptyImage for bad input and
// inference.ErrInference when the engine fails.
func (d *Detector) Detect(ctx context.Context, data []byte) ([]common.BoundingBox, error) {
	var timings Timings

	start := time.Now()
	in, width, height, err := d.preprocessor.Prepare(data)
	if err != nil {
		return nil, err
	}
	timings.Preprocess = time.Since(start)

	return d.run(ctx, in, width, height, timings)
}

// DetectImage is Detect for an already decoded image.
func (d *Detector) DetectImage(ctx context.Context, img image.Image) ([]common.BoundingBox, error) {
	var timings Timings

	start := time.Now()
	in, width, height, err := d.preprocessor.PrepareImage(img)
	if err != nil {
		return nil, err
	}
	timings.Preprocess = time.Since(start)

	return d.run(ctx, in, width, height, timings)
}

func (d *Detector) run(ctx context.Context, in *inference.Tensor, width, height int, timings Timings) ([]common.BoundingBox, error) {
	start := time.Now()
	raw, err := d.engine.Run(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := raw.Validate(); err != nil {
		return nil, inference.WrapInferenceError(err)
	}
	timings.Inference = time.Since(start)

	start = time.Now()
	candidates := d.decoder.Decode(raw, width, height)
	timings.Decode = time.Since(start)

	start = time.Now()
	boxes := postprocess.ApplyGreedyNMS(candidates, d.nms)
	timings.NMS = time.Since(start)

	boxes = d.filter(boxes)

	d.logger.WithFields(timings.Fields()).WithFields(logrus.Fields{
		"width":      width,
		"height":     height,
		"candidates": len(candidates),
		"boxes":      len(boxes),
	}).Debug("detection complete")

	if d.observer != nil {
		d.observer(timings)
	}

	return boxes, nil
}

func (d *Detector) filter(boxes []common.BoundingBox) []common.BoundingBox {
	if d.relevant == nil {
		return boxes
	}
	kept := boxes[:0]
	for _, b := range boxes {
		if d.relevant[b.Label] {
			kept = append(kept, b)
		}
	}
	return kept
}
