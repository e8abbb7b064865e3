package benchmark

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-detect/images"
)

// Scenario defines one benchmark run.
type Scenario struct {
	Name       string             `json:"name"        yaml:"name"`
	Resolution Resolution         `json:"resolution"  yaml:"resolution"`
	Format     images.ImageFormat `json:"format"      yaml:"format"`
	Iterations int                `json:"iterations"  yaml:"iterations"`
	WarmupRuns int                `json:"warmup_runs" yaml:"warmup_runs"`
}

// Validate checks that the scenario can run.
func (s Scenario) Validate() error {
	if s.Name == "" {
		return errors.New("scenario name is required")
	}
	if s.Iterations <= 0 {
		return errors.Errorf("scenario %s: iterations must be positive, got %d", s.Name, s.Iterations)
	}
	if s.WarmupRuns < 0 {
		return errors.Errorf("scenario %s: warmup_runs must not be negative, got %d", s.Name, s.WarmupRuns)
	}
	return nil
}

// ScenarioBuilder helps build scenarios with a fluent API.
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder starts a JPEG, 640x640 scenario with 100 iterations and
// 10 warmup runs.
func NewScenarioBuilder(name string) *ScenarioBuilder {
	res, _ := ResolutionByType(ResolutionTypeModel)
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:       name,
			Resolution: res,
			Format:     images.FormatJPEG,
			Iterations: 100,
			WarmupRuns: 10,
		},
	}
}

// WithResolution sets the image resolution.
func (sb *ScenarioBuilder) WithResolution(res Resolution) *ScenarioBuilder {
	sb.scenario.Resolution = res
	return sb
}

// WithImageFormat sets the encoding of synthetic images.
func (sb *ScenarioBuilder) WithImageFormat(format images.ImageFormat) *ScenarioBuilder {
	sb.scenario.Format = format
	return sb
}

// WithIterations sets the number of measured iterations.
func (sb *ScenarioBuilder) WithIterations(iterations int) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of unmeasured runs.
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// Build returns the configured scenario.
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

// ScenarioSet is a named collection of scenarios.
type ScenarioSet struct {
	Name        string     `json:"name"        yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Scenarios   []Scenario `json:"scenarios"   yaml:"scenarios"`
}

// QuickScenarios covers the model resolution and 1080p in JPEG.
func QuickScenarios() *ScenarioSet {
	set := &ScenarioSet{
		Name:        "quick",
		Description: "Model sized and Full HD JPEG frames",
	}
	for _, t := range []ResolutionType{ResolutionTypeModel, ResolutionTypeFHD1080p} {
		res, _ := ResolutionByType(t)
		set.Scenarios = append(set.Scenarios, NewScenarioBuilder(fmt.Sprintf("quick_%dx%d", res.Width, res.Height)).
			WithResolution(res).
			WithIterations(50).
			WithWarmupRuns(5).
			Build())
	}
	return set
}

// ComprehensiveScenarios covers every resolution in JPEG and PNG.
func ComprehensiveScenarios(iterations int) *ScenarioSet {
	set := &ScenarioSet{
		Name:        "comprehensive",
		Description: "All resolutions and encodings",
	}
	for _, res := range AllResolutions() {
		for _, format := range SyntheticFormats {
			set.Scenarios = append(set.Scenarios, NewScenarioBuilder(fmt.Sprintf("%dx%d_%s", res.Width, res.Height, format)).
				WithResolution(res).
				WithImageFormat(format).
				WithIterations(iterations).
				Build())
		}
	}
	return set
}

// LoadScenarioSet reads a ScenarioSet from a YAML file.
func LoadScenarioSet(path string) (*ScenarioSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading scenarios %s", path)
	}
	var set ScenarioSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, errors.Wrapf(err, "error parsing scenarios %s", path)
	}
	for _, s := range set.Scenarios {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return &set, nil
}

// SyntheticFormats lists the encodings SyntheticImage can produce.
var SyntheticFormats = []images.ImageFormat{images.FormatJPEG, images.FormatPNG}

// SyntheticImage renders a deterministic gradient with a few solid blocks at
// the scenario resolution and encodes it in the scenario format.
func SyntheticImage(res Resolution, format images.ImageFormat) ([]byte, error) {
	if res.Width <= 0 || res.Height <= 0 {
		return nil, errors.Errorf("invalid resolution %dx%d", res.Width, res.Height)
	}

	img := image.NewRGBA(image.Rect(0, 0, res.Width, res.Height))
	for y := 0; y < res.Height; y++ {
		for x := 0; x < res.Width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 255 / res.Width),
				G: uint8(y * 255 / res.Height),
				B: 96,
				A: 255,
			})
		}
	}
	for i, c := range []color.RGBA{{200, 30, 30, 255}, {30, 200, 30, 255}, {30, 30, 200, 255}} {
		block := image.Rect(
			res.Width*(1+3*i)/10, res.Height/3,
			res.Width*(3+3*i)/10, res.Height*2/3,
		)
		for y := block.Min.Y; y < block.Max.Y; y++ {
			for x := block.Min.X; x < block.Max.X; x++ {
				img.SetRGBA(x, y, c)
			}
		}
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case images.FormatJPEG, "":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	case images.FormatPNG:
		err = png.Encode(&buf, img)
	default:
		return nil, errors.Errorf("unsupported synthetic format %q", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error encoding %s", format)
	}
	return buf.Bytes(), nil
}
