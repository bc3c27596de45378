package detector

import "github.com/chewxy/math32"

// Box is an axis-aligned box in normalized [0,1] coordinates.
type Box struct {
	XMin float32 `json:"x_min"`
	YMin float32 `json:"y_min"`
	XMax float32 `json:"x_max"`
	YMax float32 `json:"y_max"`
}

// Width returns the box width, or 0 for an inverted box.
func (b Box) Width() float32 {
	return math32.Max(0, b.XMax-b.XMin)
}

// Height returns the box height, or 0 for an inverted box.
func (b Box) Height() float32 {
	return math32.Max(0, b.YMax-b.YMin)
}

// Area returns the box area.
func (b Box) Area() float32 {
	return b.Width() * b.Height()
}

// Center returns the box centre.
func (b Box) Center() Point {
	return Point{X: (b.XMin + b.XMax) / 2, Y: (b.YMin + b.YMax) / 2}
}

// Clamp limits every coordinate to [0,1].
func (b Box) Clamp() Box {
	return Box{
		XMin: clamp01(b.XMin),
		YMin: clamp01(b.YMin),
		XMax: clamp01(b.XMax),
		YMax: clamp01(b.YMax),
	}
}

// Degenerate reports whether the box has no positive width or height.
func (b Box) Degenerate() bool {
	return !(b.XMax > b.XMin) || !(b.YMax > b.YMin)
}

// IoU returns the intersection over union of a and b. Boxes that do not
// overlap, or whose union is empty, have an IoU of 0.
func IoU(a, b Box) float32 {
	w := math32.Min(a.XMax, b.XMax) - math32.Max(a.XMin, b.XMin)
	h := math32.Min(a.YMax, b.YMax) - math32.Max(a.YMin, b.YMin)
	if w <= 0 || h <= 0 {
		return 0
	}

	inter := w * h
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clamp01(v float32) float32 {
	if math32.IsNaN(v) {
		return 0
	}
	return math32.Min(1, math32.Max(0, v))
}
