// Package inference runs the palm detection network.
package inference

import (
	"context"

	"github.com/pkg/errors"
)

// ErrEngineClosed is returned by Run after Close.
var ErrEngineClosed = errors.New("inference engine closed")

// Engine executes the model on one preprocessed canvas tensor.
type Engine interface {
	// Run executes the model. Implementations may ignore ctx once the
	// underlying call has started.
	Run(ctx context.Context, input []float32) (*Outputs, error)

	// Close releases any resources held by the engine.
	Close() error
}

// Outputs holds the raw model outputs of one run. Shapes are reported as
// the model produced them; the caller validates them.
type Outputs struct {
	Scores      []float32
	ScoresShape []int64
	Coords      []float32
	CoordsShape []int64
}

// Rows returns the row count implied by a tensor shape: the product of all
// dimensions except the last, or the single dimension of a 1-D shape.
func Rows(shape []int64) int64 {
	switch len(shape) {
	case 0:
		return 0
	case 1:
		return shape[0]
	}
	rows := int64(1)
	for _, d := range shape[:len(shape)-1] {
		rows *= d
	}
	return rows
}

// Elements returns the element count of a tensor shape.
func Elements(shape []int64) int64 {
	if len(shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}
