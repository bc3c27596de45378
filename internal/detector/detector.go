package detector

import (
	"context"

	"gocv.io/x/gocv"
)

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the detected hands ordered
	// by confidence. Returns an empty slice if no hands are detected.
	Detect(ctx context.Context, frame *gocv.Mat) ([]Detection, error)

	// Close releases any resources held by the detector.
	Close() error
}
