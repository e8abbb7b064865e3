package detectors

import (
	"github.com/chewxy/math32"

	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/models"
)

// Decoder turns raw YOLOv8 output into candidate boxes in original image pixels.
type Decoder struct {
	InputSize           int
	ConfidenceThreshold float32
	Classes             *models.OutputClassSet
}

// NewDecoder returns a Decoder using config's input size and threshold and
// the YOLO label table.
func NewDecoder(config Config) *Decoder {
	return &Decoder{
		InputSize:           config.InputSize,
		ConfidenceThreshold: config.ConfidenceThreshold,
		Classes:             models.YOLOClasses,
	}
}

// Decode extracts one candidate per cell whose best class score reaches the
// confidence threshold.
//
// C and N come from raw's shape [1, 4+C, N]. For each cell the class with
// the highest score wins; on ties the lowest class id is kept. NaN scores never
// win, and cells whose best score falls outside [threshold, 1] or whose box is
// not finite are skipped. Box corners
// are scaled from network input pixels to the original image size and ordered
// so that X1 <= X2 and Y1 <= Y2. Candidates are returned in cell order.
//
// Arguments:
//   - raw: The network output.
//   - originalWidth: The width of the image before resizing.
//   - originalHeight: The height of the image before resizing.
//
// Returns:
//   - []common.BoundingBox: The candidates, empty when N or C is zero.
func (d *Decoder) Decode(raw *inference.RawOutput, originalWidth, originalHeight int) []common.BoundingBox {
	numClasses, numCells := raw.NumClasses(), raw.NumCells()
	if numClasses <= 0 || numCells <= 0 {
		return []common.BoundingBox{}
	}

	output := raw.Data
	size := float32(d.InputSize)
	width, height := float32(originalWidth), float32(originalHeight)

	boxes := make([]common.BoundingBox, 0, 64)

	for idx := 0; idx < numCells; idx++ {
		classID := 0
		probability := math32.Inf(-1)
		for col := 0; col < numClasses; col++ {
			if p := output[numCells*(col+inference.BoxValues)+idx]; p > probability {
				probability = p
				classID = col
			}
		}

		if !(probability >= d.ConfidenceThreshold) || probability > 1 {
			continue
		}

		xc, yc := output[idx], output[numCells+idx]
		w, h := math32.Abs(output[2*numCells+idx]), math32.Abs(output[3*numCells+idx])
		if !finite(xc) || !finite(yc) || !finite(w) || !finite(h) {
			continue
		}

		boxes = append(boxes, common.BoundingBox{
			Label:      d.Classes.Name(classID),
			Confidence: probability,
			X1:         (xc - w/2) / size * width,
			Y1:         (yc - h/2) / size * height,
			X2:         (xc + w/2) / size * width,
			Y2:         (yc + h/2) / size * height,
		})
	}

	return boxes
}

func finite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}
