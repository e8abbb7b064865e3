package images

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/common"
)

func whiteImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}

func isWhite(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r == 0xffff && g == 0xffff && b == 0xffff
}

func TestAnnotate(t *testing.T) {
	src := whiteImage(200, 160)
	boxes := []common.BoundingBox{{Label: "person", Confidence: 0.9, X1: 20, Y1: 60, X2: 120, Y2: 140}}

	out := Annotate(src, boxes)

	require.Equal(t, src.Bounds(), out.Bounds())
	assert.False(t, isWhite(out.At(20, 100)), "left edge is stroked")
	assert.False(t, isWhite(out.At(70, 140)), "bottom edge is stroked")
	assert.True(t, isWhite(out.At(70, 100)), "interior is untouched")
	assert.False(t, isWhite(out.At(22, 50)), "label sits above the box")
	assert.True(t, isWhite(src.At(20, 100)), "source is not modified")
}

func TestAnnotateNoBoxes(t *testing.T) {
	src := whiteImage(20, 10)
	out := Annotate(src, nil)
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			require.True(t, isWhite(out.At(x, y)))
		}
	}
}

func TestLabelColor(t *testing.T) {
	assert.Equal(t, LabelColor("person"), LabelColor("person"))
	assert.Contains(t, palette, LabelColor("car"))
	assert.Contains(t, palette, LabelColor(""))
}

func TestSaveAnnotated(t *testing.T) {
	dir := t.TempDir()
	img := Annotate(whiteImage(64, 48), []common.BoundingBox{{Label: "dog", Confidence: 0.5, X1: 5, Y1: 20, X2: 40, Y2: 40}})

	for _, name := range []string{"out.jpg", "out.png"} {
		path := filepath.Join(dir, name)
		require.NoError(t, SaveAnnotated(path, img))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		decoded, _, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 64, 48), decoded.Bounds())
	}

	assert.Error(t, SaveAnnotated(filepath.Join(dir, "out.unknown"), img))
}
