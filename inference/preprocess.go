package inference

import (
	"image"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/images"
)

// Preprocessor turns encoded images into network input tensors.
type Preprocessor struct {
	// Size is the square network input edge S.
	Size int
}

// NewPreprocessor returns a Preprocessor for a size x size network input.
// A non-positive size selects DefaultInputSize.
func NewPreprocessor(size int) *Preprocessor {
	if size <= 0 {
		size = DefaultInputSize
	}
	return &Preprocessor{Size: size}
}

// Prepare decodes data and builds the input tensor for it.
//
// Arguments:
//   - data: The encoded image (JPEG, PNG, GIF, BMP, TIFF or WebP).
//
// Returns:
//   - *Tensor: The [1, 3, S, S] input tensor.
//   - int: The original image width.
//   - int: The original image height.
//   - error: images.ErrImageDecode or images.ErrEmptyImage.
func (p *Preprocessor) Prepare(data []byte) (*Tensor, int, int, error) {
	rgb, orig, err := images.DecodeRGB(data, p.Size)
	if err != nil {
		return nil, 0, 0, err
	}

	t := NewTensor(p.Size)
	if err := PrepareInput(rgb, t.Data); err != nil {
		return nil, 0, 0, err
	}
	return t, orig.X, orig.Y, nil
}

// PrepareImage builds the input tensor for an already decoded image.
func (p *Preprocessor) PrepareImage(img image.Image) (*Tensor, int, int, error) {
	if err := images.Validate(img); err != nil {
		return nil, 0, 0, err
	}

	t := NewTensor(p.Size)
	if err := PrepareInput(images.ResizeRGB(img, p.Size), t.Data); err != nil {
		return nil, 0, 0, err
	}
	b := img.Bounds()
	return t, b.Dx(), b.Dy(), nil
}

// PrepareInput writes the pixels of a square RGB image into dst as planar
// float32 values scaled to [0, 1]: the red plane first, then green, then blue.
//
// Arguments:
//   - rgb: The resized image, Width == Height.
//   - dst: The destination buffer, at least 3*Width*Height floats.
//
// Returns:
//   - error: An error if dst is too small.
func PrepareInput(rgb *images.RGB, dst []float32) error {
	channelSize := rgb.Width * rgb.Height
	if len(dst) < channelSize*3 {
		return errors.Errorf("destination tensor only holds %d floats, needs %d "+
			"(make sure it's the right shape!)", len(dst), channelSize*3)
	}
	red := dst[0:channelSize]
	green := dst[channelSize : channelSize*2]
	blue := dst[channelSize*2 : channelSize*3]

	for i := 0; i < channelSize; i++ {
		red[i] = float32(rgb.Pix[i*3]) / 255.0
		green[i] = float32(rgb.Pix[i*3+1]) / 255.0
		blue[i] = float32(rgb.Pix[i*3+2]) / 255.0
	}
	return nil
}
