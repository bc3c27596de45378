package preprocess

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Canvas draws img resized and padded onto a black square canvas.
func Canvas(img image.Image, p Placement) (*image.NRGBA, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	resized := imaging.Resize(img, p.Width, p.Height, imaging.Linear)
	canvas := imaging.New(p.Canvas, p.Canvas, color.NRGBA{A: 255})
	return imaging.Paste(canvas, resized, image.Pt(p.Left, p.Top)), nil
}

// FromImage renders img onto the canvas and packs it into a tensor.
func FromImage(img image.Image, p Placement, opts Options) ([]float32, error) {
	canvas, err := Canvas(img, p)
	if err != nil {
		return nil, err
	}

	tensor, err := Pack(canvas.Pix, p.Canvas, 4, canvas.Stride, opts)
	if err != nil {
		return nil, errors.Wrap(err, "pack canvas")
	}
	return tensor, nil
}
