package inference

import (
	"context"
	"sync"
	"time"
)

// MockEngine is a test implementation of the Engine interface.
// It allows tests to control the model outputs.
type MockEngine struct {
	mu      sync.Mutex
	outputs *Outputs
	err     error
	delay   time.Duration
	calls   int
	inputs  int
	closed  bool
}

// NewMockEngine creates a MockEngine that returns outputs on every run.
func NewMockEngine(outputs *Outputs) *MockEngine {
	return &MockEngine{outputs: outputs}
}

// SetOutputs sets the outputs returned by Run.
func (m *MockEngine) SetOutputs(outputs *Outputs) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outputs = outputs
}

// SetError sets the error returned by Run.
func (m *MockEngine) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay makes Run block for d, or until ctx is done.
func (m *MockEngine) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Calls returns the number of Run calls.
func (m *MockEngine) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastInputLen returns the length of the most recent input tensor.
func (m *MockEngine) LastInputLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inputs
}

// Run returns a copy of the configured outputs or error.
func (m *MockEngine) Run(ctx context.Context, input []float32) (*Outputs, error) {
	m.mu.Lock()
	m.calls++
	m.inputs = len(input)
	delay, err, out, closed := m.delay, m.err, m.outputs, m.closed
	m.mu.Unlock()

	if closed {
		return nil, ErrEngineClosed
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	if out == nil {
		return &Outputs{}, nil
	}

	return &Outputs{
		Scores:      append([]float32(nil), out.Scores...),
		ScoresShape: append([]int64(nil), out.ScoresShape...),
		Coords:      append([]float32(nil), out.Coords...),
		CoordsShape: append([]int64(nil), out.CoordsShape...),
	}, nil
}

// Close marks the engine closed.
func (m *MockEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
