// Package detector decodes palm detection model output into hand boxes.
package detector

// Palm keypoint indices in the order the reference model emits them.
const (
	Wrist        = 0
	IndexMCP     = 1
	MiddleMCP    = 2
	RingMCP      = 3
	PinkyMCP     = 4
	ThumbCMC     = 5
	ThumbMCP     = 6
	NumKeypoints = 7
)

// Point is a 2D point in source-normalized [0,1] coordinates.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Detection is one hand found in a frame.
type Detection struct {
	Confidence  float32 `json:"confidence"`
	Box         Box     `json:"box"`
	Keypoints   []Point `json:"keypoints,omitempty"`
	AnchorIndex int     `json:"anchor"`
}

// Center returns the centre of the detection box.
func (d Detection) Center() Point {
	return d.Box.Center()
}

// Wrist returns the wrist keypoint, falling back to the box centre when the
// model emits no keypoints.
func (d Detection) Wrist() Point {
	if len(d.Keypoints) > Wrist {
		return d.Keypoints[Wrist]
	}
	return d.Box.Center()
}

// Keypoint returns keypoint i and whether it exists.
func (d Detection) Keypoint(i int) (Point, bool) {
	if i < 0 || i >= len(d.Keypoints) {
		return Point{}, false
	}
	return d.Keypoints[i], true
}
