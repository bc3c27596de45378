package detector

import (
	"context"
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	dets  []Detection
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetDetections sets the detections that will be returned by Detect.
func (m *MockDetector) SetDetections(dets []Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dets = dets
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect was called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured detections or error.
func (m *MockDetector) Detect(ctx context.Context, frame *gocv.Mat) ([]Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]Detection, len(m.dets))
	copy(out, m.dets)
	return out, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// RightHandDetection returns a preset detection of a hand in the right half
// of the frame, wrist at the bottom of the box.
func RightHandDetection() Detection {
	d := Detection{
		Confidence: 0.93,
		Box:        Box{XMin: 0.55, YMin: 0.30, XMax: 0.80, YMax: 0.70},
		Keypoints:  make([]Point, NumKeypoints),
	}
	d.Keypoints[Wrist] = Point{X: 0.66, Y: 0.68}
	d.Keypoints[IndexMCP] = Point{X: 0.62, Y: 0.42}
	d.Keypoints[MiddleMCP] = Point{X: 0.67, Y: 0.40}
	d.Keypoints[RingMCP] = Point{X: 0.71, Y: 0.42}
	d.Keypoints[PinkyMCP] = Point{X: 0.75, Y: 0.46}
	d.Keypoints[ThumbCMC] = Point{X: 0.60, Y: 0.62}
	d.Keypoints[ThumbMCP] = Point{X: 0.57, Y: 0.54}
	return d
}

// LeftHandDetection returns a preset detection of a hand in the left half
// of the frame.
func LeftHandDetection() Detection {
	d := Detection{
		Confidence: 0.81,
		Box:        Box{XMin: 0.15, YMin: 0.35, XMax: 0.38, YMax: 0.72},
		Keypoints:  make([]Point, NumKeypoints),
	}
	d.Keypoints[Wrist] = Point{X: 0.27, Y: 0.70}
	d.Keypoints[IndexMCP] = Point{X: 0.31, Y: 0.46}
	d.Keypoints[MiddleMCP] = Point{X: 0.27, Y: 0.44}
	d.Keypoints[RingMCP] = Point{X: 0.23, Y: 0.46}
	d.Keypoints[PinkyMCP] = Point{X: 0.19, Y: 0.50}
	d.Keypoints[ThumbCMC] = Point{X: 0.33, Y: 0.64}
	d.Keypoints[ThumbMCP] = Point{X: 0.36, Y: 0.57}
	return d
}
