package detector

import "github.com/chewxy/math32"

// Decoder turns raw per-anchor tensors into frame-space detections.
// It holds no per-frame state and is safe for concurrent use.
type Decoder struct {
	anchors       *AnchorTable
	decodeScale   float32
	scoreClip     float32
	minConfidence float32
	stride        int
	keypoints     int
}

// DecodeStats counts the candidates a Decode call dropped.
type DecodeStats struct {
	BelowThreshold int
	// Degenerate includes rows with NaN or infinite coordinates.
	Degenerate int
}

// NewDecoder creates a Decoder for cfg over anchors. cfg is assumed valid.
func NewDecoder(cfg Config, anchors *AnchorTable) *Decoder {
	return &Decoder{
		anchors:       anchors,
		decodeScale:   cfg.DecodeScale,
		scoreClip:     cfg.ScoreClip,
		minConfidence: cfg.MinConfidence,
		stride:        cfg.CoordsPerAnchor,
		keypoints:     cfg.KeypointCount(),
	}
}

// Decode decodes every anchor whose confidence reaches the threshold.
// scores holds one value per anchor and coords one row of CoordsPerAnchor
// values per anchor; both are assumed to be validated. The result is in
// anchor order.
func (d *Decoder) Decode(scores, coords []float32, lb Letterbox) ([]Detection, DecodeStats) {
	var stats DecodeStats
	dets := make([]Detection, 0, 8)

	for i := 0; i < d.anchors.Len(); i++ {
		conf := Sigmoid(clip(scores[i], d.scoreClip))
		// Negated so NaN scores are dropped.
		if !(conf >= d.minConfidence) {
			stats.BelowThreshold++
			continue
		}

		anchor := d.anchors.At(i)
		row := coords[i*d.stride : (i+1)*d.stride]
		if !finite(row) {
			stats.Degenerate++
			continue
		}

		cx := anchor.CenterX + row[0]*d.decodeScale
		cy := anchor.CenterY + row[1]*d.decodeScale
		w := row[2] * d.decodeScale
		h := row[3] * d.decodeScale

		xmin, ymin := lb.InverseNormalized(cx-w/2, cy-h/2)
		xmax, ymax := lb.InverseNormalized(cx+w/2, cy+h/2)

		box := Box{XMin: xmin, YMin: ymin, XMax: xmax, YMax: ymax}.Clamp()
		if box.Degenerate() {
			stats.Degenerate++
			continue
		}

		dets = append(dets, Detection{
			Confidence:  conf,
			Box:         box,
			Keypoints:   d.decodeKeypoints(row, anchor, lb),
			AnchorIndex: i,
		})
	}

	return dets, stats
}

func (d *Decoder) decodeKeypoints(row []float32, anchor Anchor, lb Letterbox) []Point {
	if d.keypoints == 0 {
		return nil
	}

	points := make([]Point, d.keypoints)
	for k := range points {
		off := boxCoords + 2*k
		x := anchor.CenterX + row[off]*d.decodeScale
		y := anchor.CenterY + row[off+1]*d.decodeScale
		sx, sy := lb.InverseNormalized(x, y)
		points[k] = Point{X: clamp01(sx), Y: clamp01(sy)}
	}
	return points
}

// Sigmoid is the logistic function.
func Sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

// finite reports whether every value in row is a real number.
func finite(row []float32) bool {
	for _, v := range row {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func clip(v, limit float32) float32 {
	return math32.Max(-limit, math32.Min(limit, v))
}
