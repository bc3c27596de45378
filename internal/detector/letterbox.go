package detector

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"github.com/ayusman/fingers/internal/preprocess"
)

// Letterbox maps between a source frame and the square inference canvas.
// The scaled source fills one canvas dimension and is centred on the other.
type Letterbox struct {
	Scale        float32 `json:"scale"`
	PadX         float32 `json:"pad_x"`
	PadY         float32 `json:"pad_y"`
	CanvasSize   int     `json:"canvas_size"`
	SourceWidth  int     `json:"source_width"`
	SourceHeight int     `json:"source_height"`
}

// NewLetterbox computes the letterbox for a width x height source on a
// canvas x canvas input.
func NewLetterbox(width, height, canvas int) (Letterbox, error) {
	if canvas <= 0 {
		return Letterbox{}, errors.Wrapf(ErrInvalidCanvas, "canvas size %d", canvas)
	}
	if width <= 0 || height <= 0 {
		return Letterbox{}, errors.Wrapf(ErrInvalidFrame, "source size %dx%d", width, height)
	}

	size := float32(canvas)
	scale := size / float32(max(width, height))

	return Letterbox{
		Scale:        scale,
		PadX:         (size - float32(width)*scale) / 2,
		PadY:         (size - float32(height)*scale) / 2,
		CanvasSize:   canvas,
		SourceWidth:  width,
		SourceHeight: height,
	}, nil
}

// Forward maps a source pixel coordinate onto the canvas.
func (l Letterbox) Forward(x, y float32) (float32, float32) {
	return x*l.Scale + l.PadX, y*l.Scale + l.PadY
}

// Inverse maps a canvas pixel coordinate back to the source frame.
func (l Letterbox) Inverse(x, y float32) (float32, float32) {
	return (x - l.PadX) / l.Scale, (y - l.PadY) / l.Scale
}

// InverseNormalized maps a canvas-normalized point to a source-normalized one.
func (l Letterbox) InverseNormalized(x, y float32) (float32, float32) {
	size := float32(l.CanvasSize)
	sx, sy := l.Inverse(x*size, y*size)
	return sx / float32(l.SourceWidth), sy / float32(l.SourceHeight)
}

// Placement returns the integer resize and offset used to render the
// source onto the canvas.
func (l Letterbox) Placement() preprocess.Placement {
	w := roundPixels(float32(l.SourceWidth) * l.Scale)
	h := roundPixels(float32(l.SourceHeight) * l.Scale)
	return preprocess.Placement{
		Canvas: l.CanvasSize,
		Width:  min(max(w, 1), l.CanvasSize),
		Height: min(max(h, 1), l.CanvasSize),
		Left:   roundPixels(l.PadX),
		Top:    roundPixels(l.PadY),
	}
}

// Same reports whether l was built for the given source and canvas sizes.
func (l Letterbox) Same(width, height, canvas int) bool {
	return l.SourceWidth == width && l.SourceHeight == height && l.CanvasSize == canvas
}

func roundPixels(v float32) int {
	return int(math32.Floor(v + 0.5))
}
