// Package plugin discovers external action plugins and runs them with
// hand events as JSON over stdin and stdout.
package plugin

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Manifest is a plugin's plugin.json.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// HasAction reports whether the plugin declares action.
func (m Manifest) HasAction(action string) bool {
	for _, a := range m.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Request is written to the plugin's stdin.
type Request struct {
	Action string          `json:"action"`
	Event  string          `json:"event"`
	Config json.RawMessage `json:"config"`
	Params json.RawMessage `json:"params"`
}

// Response is read from the plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is a discovered plugin.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Point is a source-normalized position.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// HandParams describes the primary hand of the frame that fired an event.
// Positions are normalized to the camera frame, origin top-left.
type HandParams struct {
	Hands       int        `json:"hands"`
	Confidence  float32    `json:"confidence"`
	Wrist       Point      `json:"wrist"`
	Center      Point      `json:"center"`
	Box         [4]float32 `json:"box"`
	FrameWidth  int        `json:"frame_width"`
	FrameHeight int        `json:"frame_height"`
}

// NewRequest builds a request carrying params as JSON.
func NewRequest(action, event string, config json.RawMessage, params any) (*Request, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, errors.Wrap(err, "marshal params")
	}
	if len(config) == 0 {
		config = json.RawMessage("{}")
	}
	return &Request{Action: action, Event: event, Config: config, Params: raw}, nil
}
