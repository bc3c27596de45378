// Package preprocess renders source frames into normalized inference tensors.
package preprocess

import (
	"github.com/pkg/errors"
)

// Layout is the memory order of the input tensor.
type Layout string

// Supported tensor layouts.
const (
	LayoutCHW Layout = "chw"
	LayoutHWC Layout = "hwc"
)

// Normalization maps 8-bit channel values into the model's input range.
type Normalization string

// Supported normalizations.
const (
	ZeroToOne     Normalization = "zero_to_one"
	MinusOneToOne Normalization = "minus_one_to_one"
)

var (
	// ErrEmptyImage is returned for a nil or empty source.
	ErrEmptyImage = errors.New("empty image")

	// ErrInvalidPlacement is returned when a placement does not fit its canvas.
	ErrInvalidPlacement = errors.New("invalid placement")

	// ErrUnsupported is returned for unknown layouts or normalizations.
	ErrUnsupported = errors.New("unsupported preprocessing option")
)

// Options controls tensor packing.
type Options struct {
	Layout        Layout        `yaml:"layout" json:"layout"`
	Normalization Normalization `yaml:"normalization" json:"normalization"`
}

// DefaultOptions returns planar RGB in [0,1], the reference model's input.
func DefaultOptions() Options {
	return Options{Layout: LayoutCHW, Normalization: ZeroToOne}
}

// Validate checks that the options are supported.
func (o Options) Validate() error {
	switch o.Layout {
	case LayoutCHW, LayoutHWC:
	default:
		return errors.Wrapf(ErrUnsupported, "layout %q", o.Layout)
	}
	switch o.Normalization {
	case ZeroToOne, MinusOneToOne:
	default:
		return errors.Wrapf(ErrUnsupported, "normalization %q", o.Normalization)
	}
	return nil
}

// Placement positions the resized source on a square canvas.
type Placement struct {
	Canvas int
	Width  int
	Height int
	Left   int
	Top    int
}

// Validate checks that the resized source lies inside the canvas.
func (p Placement) Validate() error {
	if p.Canvas <= 0 || p.Width <= 0 || p.Height <= 0 || p.Left < 0 || p.Top < 0 ||
		p.Left+p.Width > p.Canvas || p.Top+p.Height > p.Canvas {
		return errors.Wrapf(ErrInvalidPlacement, "%+v", p)
	}
	return nil
}

// Right returns the padding to the right of the resized source.
func (p Placement) Right() int {
	return p.Canvas - p.Left - p.Width
}

// Bottom returns the padding below the resized source.
func (p Placement) Bottom() int {
	return p.Canvas - p.Top - p.Height
}

// Pack converts a size x size image of interleaved 8-bit pixels into a
// float32 tensor. channels is the pixel width in bytes (3 for RGB, 4 for
// RGBA; alpha is ignored) and stride the row width in bytes.
func Pack(pix []byte, size, channels, stride int, opts Options) ([]float32, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if size <= 0 || channels < 3 || stride < size*channels || len(pix) < (size-1)*stride+size*channels {
		return nil, errors.Wrapf(ErrInvalidPlacement,
			"%d bytes for %dx%d image, %d channels, stride %d", len(pix), size, size, channels, stride)
	}

	scale, offset := normalization(opts.Normalization)
	plane := size * size
	out := make([]float32, plane*3)

	for y := 0; y < size; y++ {
		row := pix[y*stride:]
		for x := 0; x < size; x++ {
			px := row[x*channels : x*channels+3]
			i := y*size + x
			for c := 0; c < 3; c++ {
				v := float32(px[c])*scale + offset
				if opts.Layout == LayoutCHW {
					out[c*plane+i] = v
				} else {
					out[i*3+c] = v
				}
			}
		}
	}

	return out, nil
}

func normalization(n Normalization) (scale, offset float32) {
	if n == MinusOneToOne {
		return 2.0 / 255.0, -1
	}
	return 1.0 / 255.0, 0
}
