package images

import (
	"bytes"
	"image"
	"image/draw"

	// Decoders registered with image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// Decode decodes image bytes of any registered format.
//
// Arguments:
//   - data: The encoded image.
//
// Returns:
//   - image.Image: The decoded image.
//   - ImageFormat: The format name reported by the decoder.
//   - error: ErrImageDecode if the bytes cannot be decoded, ErrEmptyImage if
//     the image has no pixels.
func Decode(data []byte) (image.Image, ImageFormat, error) {
	if len(data) == 0 {
		return nil, "", errors.WithMessage(ErrImageDecode, "empty input")
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.WithMessage(ErrImageDecode, err.Error())
	}
	if err := Validate(img); err != nil {
		return nil, ImageFormat(format), err
	}

	return img, ImageFormat(format), nil
}

// Validate reports ErrEmptyImage when img has zero width or height.
func Validate(img image.Image) error {
	if img == nil {
		return errors.WithMessage(ErrEmptyImage, "nil image")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return errors.WithMessagef(ErrEmptyImage, "%dx%d", b.Dx(), b.Dy())
	}
	return nil
}

// StripAlpha returns an opaque copy of img.
//
// Color values are un-premultiplied first so a translucent pixel keeps its
// color instead of fading towards black, then alpha is forced to 255.
func StripAlpha(img image.Image) *image.RGBA {
	b := img.Bounds()
	nrgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)

	for i := 3; i < len(nrgba.Pix); i += 4 {
		nrgba.Pix[i] = 0xff
	}

	return &image.RGBA{Pix: nrgba.Pix, Stride: nrgba.Stride, Rect: nrgba.Rect}
}

// Resize stretches img to exactly width x height using Lanczos3 resampling.
// The aspect ratio is not preserved.
func Resize(img image.Image, width, height int) image.Image {
	return resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
}

// ToRGB flattens img into interleaved RGB bytes, dropping any alpha.
func ToRGB(img image.Image) *RGB {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := &RGB{Width: w, Height: h, Pix: make([]byte, 0, w*h*3)}

	if rgba, ok := img.(*image.RGBA); ok && isOpaque(rgba) {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				i := rgba.PixOffset(x, y)
				out.Pix = append(out.Pix, rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2])
			}
		}
		return out
	}

	opaque := StripAlpha(img)
	for y := 0; y < h; y++ {
		row := opaque.Pix[y*opaque.Stride:]
		for x := 0; x < w; x++ {
			out.Pix = append(out.Pix, row[x*4], row[x*4+1], row[x*4+2])
		}
	}
	return out
}

// DecodeRGB decodes data, strips alpha, and stretches it to size x size.
//
// Arguments:
//   - data: The encoded image.
//   - size: The square output edge length in pixels.
//
// Returns:
//   - *RGB: The resized interleaved RGB pixels.
//   - image.Point: The original (pre-resize) width and height.
//   - error: ErrImageDecode or ErrEmptyImage.
func DecodeRGB(data []byte, size int) (*RGB, image.Point, error) {
	img, _, err := Decode(data)
	if err != nil {
		return nil, image.Point{}, err
	}
	return ResizeRGB(img, size), image.Pt(img.Bounds().Dx(), img.Bounds().Dy()), nil
}

// ResizeRGB strips alpha from img and stretches it to size x size.
func ResizeRGB(img image.Image, size int) *RGB {
	return ToRGB(Resize(StripAlpha(img), size, size))
}

func isOpaque(img *image.RGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0xff {
			return false
		}
	}
	return true
}
