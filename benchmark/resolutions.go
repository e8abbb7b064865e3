package benchmark

import (
	"fmt"
	"math"
	"sort"
)

// AspectRatio represents a camera aspect ratio by name (e.g., "16:9").
type AspectRatio string

// Standard aspect ratios for surveillance cameras.
const (
	AspectRatio11  AspectRatio = "1:1"
	AspectRatio169 AspectRatio = "16:9"
	AspectRatio43  AspectRatio = "4:3"
	AspectRatio54  AspectRatio = "5:4"
)

// ResolutionType names a camera resolution standard.
type ResolutionType string

// Resolution types that benchmarks can be generated for.
const (
	ResolutionTypeModel    ResolutionType = "model 640"
	ResolutionTypeNHD      ResolutionType = "nHD"
	ResolutionTypeVGA      ResolutionType = "VGA"
	ResolutionTypeHD720p   ResolutionType = "HD 720p"
	ResolutionType1MP54    ResolutionType = "1MP (5:4)"
	ResolutionTypeFHD1080p ResolutionType = "Full HD 1080p"
	ResolutionType3MP43    ResolutionType = "3MP (4:3)"
	ResolutionTypeQHD1440p ResolutionType = "QHD 1440p"
	ResolutionType4KUHD    ResolutionType = "4K UHD"
)

// Resolution describes the dimensions of a benchmark input image.
type Resolution struct {
	Name        ResolutionType `json:"name"         yaml:"name"`
	AspectRatio AspectRatio    `json:"aspect_ratio" yaml:"aspect_ratio"`
	Width       int            `json:"width"        yaml:"width"`
	Height      int            `json:"height"       yaml:"height"`
}

// MegaPixels returns the pixel count in millions, rounded to two decimals.
func (r Resolution) MegaPixels() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	mp := float64(r.Width*r.Height) / 1_000_000.0
	return math.Round(mp*100) / 100
}

// String returns a human-readable summary of the resolution.
func (r Resolution) String() string {
	return fmt.Sprintf("%s (%dx%d, %.2fMP)", r.Name, r.Width, r.Height, r.MegaPixels())
}

var resolutions = map[ResolutionType]Resolution{
	ResolutionTypeModel:    {Name: ResolutionTypeModel, AspectRatio: AspectRatio11, Width: 640, Height: 640},
	ResolutionTypeNHD:      {Name: ResolutionTypeNHD, AspectRatio: AspectRatio169, Width: 640, Height: 360},
	ResolutionTypeVGA:      {Name: ResolutionTypeVGA, AspectRatio: AspectRatio43, Width: 640, Height: 480},
	ResolutionTypeHD720p:   {Name: ResolutionTypeHD720p, AspectRatio: AspectRatio169, Width: 1280, Height: 720},
	ResolutionType1MP54:    {Name: ResolutionType1MP54, AspectRatio: AspectRatio54, Width: 1280, Height: 1024},
	ResolutionTypeFHD1080p: {Name: ResolutionTypeFHD1080p, AspectRatio: AspectRatio169, Width: 1920, Height: 1080},
	ResolutionType3MP43:    {Name: ResolutionType3MP43, AspectRatio: AspectRatio43, Width: 2048, Height: 1536},
	ResolutionTypeQHD1440p: {Name: ResolutionTypeQHD1440p, AspectRatio: AspectRatio169, Width: 2560, Height: 1440},
	ResolutionType4KUHD:    {Name: ResolutionType4KUHD, AspectRatio: AspectRatio169, Width: 3840, Height: 2160},
}

// AllResolutions returns every known resolution ordered by pixel count.
func AllResolutions() []Resolution {
	all := make([]Resolution, 0, len(resolutions))
	for _, res := range resolutions {
		all = append(all, res)
	}
	sort.Slice(all, func(i, j int) bool {
		pi, pj := all[i].Width*all[i].Height, all[j].Width*all[j].Height
		if pi != pj {
			return pi < pj
		}
		return all[i].Name < all[j].Name
	})
	return all
}

// ResolutionByType looks up a resolution by name.
func ResolutionByType(t ResolutionType) (Resolution, bool) {
	res, ok := resolutions[t]
	return res, ok
}

// HighestResolutionUnder returns the largest known resolution that fits
// within width x height.
func HighestResolutionUnder(width, height int) (Resolution, bool) {
	var highest Resolution
	var found bool

	for _, res := range AllResolutions() {
		if res.Width <= width && res.Height <= height {
			highest = res
			found = true
		}
	}
	return highest, found
}
