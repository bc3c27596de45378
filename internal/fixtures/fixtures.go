// Package fixtures builds synthetic camera frames and palm model outputs
// for end-to-end tests.
package fixtures

import (
	"gocv.io/x/gocv"

	"github.com/ayusman/fingers/internal/detector"
	"github.com/ayusman/fingers/internal/inference"
)

// Palm is one candidate on the 32x32 level of the reference model.
type Palm struct {
	Row, Col int

	// Logit is the raw score; 3 gives a confidence of about 0.95.
	Logit float32

	// Size is the box side in canvas pixels.
	Size float32
}

// CenterPalm is a confident palm in the middle of the canvas.
var CenterPalm = Palm{Row: 16, Col: 16, Logit: 3, Size: 64}

// ReferenceOutputs returns outputs of the reference model in which only
// palms are above any threshold. Keypoints sit on the anchor center.
func ReferenceOutputs(palms ...Palm) *inference.Outputs {
	cfg := detector.DefaultConfig()
	n, c := cfg.ExpectedAnchors, cfg.CoordsPerAnchor

	out := &inference.Outputs{
		Scores:      make([]float32, n),
		ScoresShape: []int64{1, int64(n), 1},
		Coords:      make([]float32, n*c),
		CoordsShape: []int64{1, int64(n), int64(c)},
	}
	for i := range out.Scores {
		out.Scores[i] = -20
	}

	level := cfg.Scales[0]
	for _, p := range palms {
		idx := (p.Row*level.GridWidth + p.Col) * level.AnchorsPerCell
		out.Scores[idx] = p.Logit
		out.Coords[idx*c+2] = p.Size
		out.Coords[idx*c+3] = p.Size
	}
	return out
}

// Frames returns n BGR frames of the given size that differ in brightness.
// The caller closes them, e.g. with CloseAll.
func Frames(n, width, height int) []*gocv.Mat {
	out := make([]*gocv.Mat, n)
	for i := range out {
		m := gocv.NewMatWithSizeFromScalar(
			gocv.NewScalar(float64(40+i*30%200), 90, 140, 0), height, width, gocv.MatTypeCV8UC3)
		out[i] = &m
	}
	return out
}

// CloseAll closes every frame.
func CloseAll(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}
