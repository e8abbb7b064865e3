//go:build gocv

package inference

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-detect/images"
)

// BlobPreprocessor builds input tensors with OpenCV's blobFromImage.
//
// OpenCV resizes with bilinear interpolation, so values differ slightly from
// Preprocessor's Lanczos3 output. Layout and scaling are identical.
type BlobPreprocessor struct {
	Size int
}

// NewBlobPreprocessor returns a BlobPreprocessor for a size x size input.
func NewBlobPreprocessor(size int) *BlobPreprocessor {
	if size <= 0 {
		size = DefaultInputSize
	}
	return &BlobPreprocessor{Size: size}
}

// Prepare decodes data with OpenCV and builds the input tensor.
func (p *BlobPreprocessor) Prepare(data []byte) (*Tensor, int, int, error) {
	if len(data) == 0 {
		return nil, 0, 0, errors.WithMessage(images.ErrImageDecode, "empty input")
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, 0, 0, errors.WithMessage(images.ErrImageDecode, err.Error())
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, 0, 0, errors.WithMessage(images.ErrImageDecode, "opencv could not decode input")
	}

	t, err := p.fromMat(mat)
	if err != nil {
		return nil, 0, 0, err
	}
	return t, mat.Cols(), mat.Rows(), nil
}

// PrepareImage converts img to a Mat and builds the input tensor.
func (p *BlobPreprocessor) PrepareImage(img image.Image) (*Tensor, int, int, error) {
	if err := images.Validate(img); err != nil {
		return nil, 0, 0, err
	}

	mat, err := gocv.ImageToMatRGB(images.StripAlpha(img))
	if err != nil {
		return nil, 0, 0, errors.Wrap(err, "error converting image to mat")
	}
	defer mat.Close()

	t, err := p.fromMat(mat)
	if err != nil {
		return nil, 0, 0, err
	}
	b := img.Bounds()
	return t, b.Dx(), b.Dy(), nil
}

// fromMat expects a BGR Mat, which is what IMDecode and ImageToMatRGB produce.
func (p *BlobPreprocessor) fromMat(mat gocv.Mat) (*Tensor, error) {
	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(p.Size, p.Size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	data, err := blob.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "error reading blob data")
	}

	t := NewTensor(p.Size)
	if len(data) != len(t.Data) {
		return nil, errors.Errorf("blob holds %d floats, want %d", len(data), len(t.Data))
	}
	copy(t.Data, data)
	return t, nil
}
