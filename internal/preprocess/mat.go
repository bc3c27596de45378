package preprocess

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// FromMat renders a BGR (or gray, or BGRA) frame onto the canvas and packs
// it into an RGB tensor.
func FromMat(mat *gocv.Mat, p Placement, opts Options) ([]float32, error) {
	if mat == nil || mat.Empty() {
		return nil, ErrEmptyImage
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(*mat, &resized, image.Pt(p.Width, p.Height), 0, 0, gocv.InterpolationLinear)

	padded := gocv.NewMat()
	defer padded.Close()
	gocv.CopyMakeBorder(resized, &padded, p.Top, p.Bottom(), p.Left, p.Right(),
		gocv.BorderConstant, color.RGBA{A: 255})

	rgb := gocv.NewMat()
	defer rgb.Close()
	switch padded.Channels() {
	case 1:
		gocv.CvtColor(padded, &rgb, gocv.ColorGrayToRGB)
	case 4:
		gocv.CvtColor(padded, &rgb, gocv.ColorBGRAToRGB)
	default:
		gocv.CvtColor(padded, &rgb, gocv.ColorBGRToRGB)
	}

	if rgb.Rows() != p.Canvas || rgb.Cols() != p.Canvas {
		return nil, errors.Wrapf(ErrInvalidPlacement, "canvas rendered as %dx%d", rgb.Cols(), rgb.Rows())
	}

	tensor, err := Pack(rgb.ToBytes(), p.Canvas, 3, p.Canvas*3, opts)
	if err != nil {
		return nil, errors.Wrap(err, "pack frame")
	}
	return tensor, nil
}
