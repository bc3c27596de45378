package detector

import (
	"fmt"

	"github.com/pkg/errors"
)

// Configuration errors. These abort startup.
var (
	// ErrAnchorCountMismatch is returned when the generated anchor table does
	// not match the row count the model produces.
	ErrAnchorCountMismatch = errors.New("anchor count mismatch")

	// ErrInvalidCanvas is returned for a non-positive canvas size.
	ErrInvalidCanvas = errors.New("invalid canvas size")

	// ErrInvalidConfig is returned for any other inconsistent setting.
	ErrInvalidConfig = errors.New("invalid detector config")
)

// Per-frame errors. The frame is skipped and processing continues.
var (
	// ErrInvalidFrame is returned for a nil, empty or zero-area source frame.
	ErrInvalidFrame = errors.New("invalid frame")

	// ErrInferenceOutputShape is matched by every *InferenceOutputShapeError.
	ErrInferenceOutputShape = errors.New("inference output shape mismatch")

	// ErrInferenceDeadline is returned when inference does not finish before
	// the frame deadline.
	ErrInferenceDeadline = errors.New("inference deadline exceeded")
)

// InferenceOutputShapeError reports a tensor whose shape does not line up
// with the anchor table.
type InferenceOutputShapeError struct {
	Tensor   string
	Want     []int64
	Got      []int64
	Elements int
}

func (e *InferenceOutputShapeError) Error() string {
	return fmt.Sprintf("%s tensor: got shape %v (%d elements), want %v",
		e.Tensor, e.Got, e.Elements, e.Want)
}

// Is lets errors.Is match the ErrInferenceOutputShape sentinel.
func (e *InferenceOutputShapeError) Is(target error) bool {
	return target == ErrInferenceOutputShape
}

// IsFrameError reports whether err only invalidates the current frame.
func IsFrameError(err error) bool {
	return errors.Is(err, ErrInvalidFrame) ||
		errors.Is(err, ErrInferenceOutputShape) ||
		errors.Is(err, ErrInferenceDeadline)
}
