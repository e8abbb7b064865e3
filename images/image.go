// Package images - Image decoding and pixel buffer utilities for model input.
package images

import "github.com/pkg/errors"

// ImageFormat represents supported image formats.
type ImageFormat string

// ImageFormat constants, as reported by the registered decoders.
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
	// FormatGIF is the GIF image format.
	FormatGIF ImageFormat = "gif"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatBMP is the BMP image format.
	FormatBMP ImageFormat = "bmp"
	// FormatTIFF is the TIFF image format.
	FormatTIFF ImageFormat = "tiff"
)

var (
	// ErrImageDecode is returned when the input bytes are not a decodable image.
	ErrImageDecode = errors.New("image decode failed")
	// ErrEmptyImage is returned when a decoded image has zero width or height.
	ErrEmptyImage = errors.New("image has zero width or height")
)

// RGB is an image flattened to 8-bit interleaved R,G,B bytes in row-major order.
type RGB struct {
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
	// Pix holds Width*Height*3 bytes.
	Pix []byte `json:"-" yaml:"-"`
}

// At returns the R,G,B bytes of the pixel at (x, y).
func (r *RGB) At(x, y int) (byte, byte, byte) {
	i := (y*r.Width + x) * 3
	return r.Pix[i], r.Pix[i+1], r.Pix[i+2]
}
