package images

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/nvr-ai/go-detect/common"
)

var labelFont *truetype.Font

func init() {
	var err error
	labelFont, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// palette holds the box colors; a label always maps to the same entry.
var palette = []color.RGBA{
	{230, 25, 75, 255},
	{60, 180, 75, 255},
	{255, 225, 25, 255},
	{0, 130, 200, 255},
	{245, 130, 48, 255},
	{145, 30, 180, 255},
	{70, 240, 240, 255},
	{240, 50, 230, 255},
	{210, 245, 60, 255},
	{0, 128, 128, 255},
}

// LabelColor returns the color boxes of the given label are drawn in.
func LabelColor(label string) color.RGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(label))
	return palette[h.Sum32()%uint32(len(palette))]
}

// Annotate returns a copy of img with each box outlined and tagged with its
// label and confidence. Line width and text size scale with the image.
func Annotate(img image.Image, boxes []common.BoundingBox) image.Image {
	b := img.Bounds()
	short := math.Min(float64(b.Dx()), float64(b.Dy()))
	lineWidth := math.Max(2, short/200)
	fontSize := math.Max(10, short/40)

	dc := gg.NewContextForImage(img)
	dc.SetFontFace(truetype.NewFace(labelFont, &truetype.Options{Size: fontSize}))

	for _, box := range boxes {
		c := LabelColor(box.Label)
		x1, y1 := float64(box.X1), float64(box.Y1)
		x2, y2 := float64(box.X2), float64(box.Y2)

		dc.SetColor(c)
		dc.SetLineWidth(lineWidth)
		dc.DrawRectangle(x1, y1, x2-x1, y2-y1)
		dc.Stroke()

		text := fmt.Sprintf("%s %.2f", box.Label, box.Confidence)
		tw, th := dc.MeasureString(text)
		top := y1 - th - 4
		if top < 0 {
			top = y1
		}
		dc.DrawRectangle(x1, top, tw+4, th+4)
		dc.Fill()

		dc.SetColor(color.White)
		dc.DrawString(text, x1+2, top+th+1)
	}

	return dc.Image()
}

// SaveAnnotated writes img to path, picking the encoder from the file
// extension (.jpg, .png, .bmp, .tif, .gif).
func SaveAnnotated(path string, img image.Image) error {
	if err := imaging.Save(img, path); err != nil {
		return errors.Wrapf(err, "error saving %s", path)
	}
	return nil
}
