package detector

import (
	"time"

	"github.com/pkg/errors"
)

// Reference palm detection model constants.
const (
	DefaultCanvasSize       = 256
	DefaultExpectedAnchors  = 2944
	DefaultCoordsPerAnchor  = 18
	DefaultMinConfidence    = 0.7310586 // sigmoid(1): raw scores above 1.0
	DefaultIoUThreshold     = 0.3
	DefaultMaxDetections    = 2
	DefaultScoreClip        = 100
	DefaultInferenceTimeout = 200 * time.Millisecond

	// boxCoords is the number of leading box values (dx, dy, dw, dh) per anchor row.
	boxCoords = 4
)

// ScaleSpec describes one feature-map level of the anchor grid.
type ScaleSpec struct {
	Name           string `yaml:"name" json:"name"`
	GridWidth      int    `yaml:"grid_width" json:"grid_width"`
	GridHeight     int    `yaml:"grid_height" json:"grid_height"`
	AnchorsPerCell int    `yaml:"anchors_per_cell" json:"anchors_per_cell"`
}

// Count returns the number of anchors this level contributes.
func (s ScaleSpec) Count() int {
	return s.GridWidth * s.GridHeight * s.AnchorsPerCell
}

// Config holds the model calibration and filtering settings of the pipeline.
type Config struct {
	// CanvasSize is the side of the square inference input in pixels.
	CanvasSize int

	// Scales lists the feature-map levels in tensor row order.
	Scales []ScaleSpec

	// ExpectedAnchors is the row count of the model's output tensors.
	ExpectedAnchors int

	// CoordsPerAnchor is the width of a coordinate row: 4 box values
	// followed by x,y pairs for each keypoint.
	CoordsPerAnchor int

	// DecodeScale converts raw offsets to canvas-normalized units.
	DecodeScale float32

	// ScoreClip bounds raw scores before the sigmoid.
	ScoreClip float32

	// MinConfidence is the confidence pre-filter threshold (0.0-1.0).
	MinConfidence float32

	// IoUThreshold is the NMS suppression threshold, in (0, 1].
	IoUThreshold float32

	// MaxDetections caps the output per frame. Zero means unlimited.
	MaxDetections int

	// InferenceTimeout applies when the caller's context has no deadline.
	InferenceTimeout time.Duration
}

// DefaultScales returns the four-level grid of the reference model. The two
// 8x8 levels come from separate output heads and stay separate entries.
func DefaultScales() []ScaleSpec {
	return []ScaleSpec{
		{Name: "32x32", GridWidth: 32, GridHeight: 32, AnchorsPerCell: 2},
		{Name: "16x16", GridWidth: 16, GridHeight: 16, AnchorsPerCell: 2},
		{Name: "8x8", GridWidth: 8, GridHeight: 8, AnchorsPerCell: 2},
		{Name: "8x8-b", GridWidth: 8, GridHeight: 8, AnchorsPerCell: 4},
	}
}

// DefaultConfig returns a Config matching the reference palm detection model.
func DefaultConfig() Config {
	return Config{
		CanvasSize:       DefaultCanvasSize,
		Scales:           DefaultScales(),
		ExpectedAnchors:  DefaultExpectedAnchors,
		CoordsPerAnchor:  DefaultCoordsPerAnchor,
		DecodeScale:      1.0 / DefaultCanvasSize,
		ScoreClip:        DefaultScoreClip,
		MinConfidence:    DefaultMinConfidence,
		IoUThreshold:     DefaultIoUThreshold,
		MaxDetections:    DefaultMaxDetections,
		InferenceTimeout: DefaultInferenceTimeout,
	}
}

// KeypointCount returns how many keypoints each coordinate row carries.
func (c Config) KeypointCount() int {
	if c.CoordsPerAnchor <= boxCoords {
		return 0
	}
	return (c.CoordsPerAnchor - boxCoords) / 2
}

// Validate checks the settings that do not depend on the anchor table.
func (c Config) Validate() error {
	if c.CanvasSize <= 0 {
		return errors.Wrapf(ErrInvalidCanvas, "canvas size %d", c.CanvasSize)
	}
	if len(c.Scales) == 0 {
		return errors.Wrap(ErrInvalidConfig, "no anchor scales")
	}
	if c.ExpectedAnchors <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "expected anchors %d", c.ExpectedAnchors)
	}
	if c.CoordsPerAnchor < boxCoords {
		return errors.Wrapf(ErrInvalidConfig, "coords per anchor %d, need at least %d",
			c.CoordsPerAnchor, boxCoords)
	}
	if c.DecodeScale <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "decode scale %v", c.DecodeScale)
	}
	if c.ScoreClip <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "score clip %v", c.ScoreClip)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return errors.Wrapf(ErrInvalidConfig, "min confidence %v outside [0,1]", c.MinConfidence)
	}
	if c.IoUThreshold <= 0 || c.IoUThreshold > 1 {
		return errors.Wrapf(ErrInvalidConfig, "iou threshold %v outside (0,1]", c.IoUThreshold)
	}
	if c.MaxDetections < 0 {
		return errors.Wrapf(ErrInvalidConfig, "max detections %d", c.MaxDetections)
	}
	if c.InferenceTimeout < 0 {
		return errors.Wrapf(ErrInvalidConfig, "inference timeout %v", c.InferenceTimeout)
	}
	return nil
}
