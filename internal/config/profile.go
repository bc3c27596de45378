package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/fingers/internal/detector"
	"github.com/ayusman/fingers/internal/inference"
	"github.com/ayusman/fingers/internal/preprocess"
)

// Tensors names the model's input and output tensors.
type Tensors struct {
	Input  string `yaml:"input"`
	Scores string `yaml:"scores"`
	Coords string `yaml:"coords"`
}

// Profile describes a palm detection model: its anchor grid, calibration,
// filtering defaults, tensor names and input format.
type Profile struct {
	Name            string               `yaml:"name"`
	CanvasSize      int                  `yaml:"canvas_size"`
	Scales          []detector.ScaleSpec `yaml:"scales"`
	ExpectedAnchors int                  `yaml:"expected_anchors"`
	CoordsPerAnchor int                  `yaml:"coords_per_anchor"`
	DecodeScale     float32              `yaml:"decode_scale"`
	ScoreClip       float32              `yaml:"score_clip"`
	MinConfidence   float32              `yaml:"min_confidence"`
	IoUThreshold    float32              `yaml:"iou_threshold"`
	MaxDetections   int                  `yaml:"max_detections"`
	Timeout         time.Duration        `yaml:"timeout"`
	Tensors         Tensors              `yaml:"tensors"`
	Input           preprocess.Options   `yaml:"input"`
}

// DefaultProfile returns the profile of the reference MediaPipe palm model.
func DefaultProfile() Profile {
	d := detector.DefaultConfig()
	return Profile{
		Name:            "mediapipe-palm-256",
		CanvasSize:      d.CanvasSize,
		Scales:          d.Scales,
		ExpectedAnchors: d.ExpectedAnchors,
		CoordsPerAnchor: d.CoordsPerAnchor,
		DecodeScale:     d.DecodeScale,
		ScoreClip:       d.ScoreClip,
		MinConfidence:   d.MinConfidence,
		IoUThreshold:    d.IoUThreshold,
		MaxDetections:   d.MaxDetections,
		Timeout:         d.InferenceTimeout,
		Tensors: Tensors{
			Input:  inference.DefaultInputName,
			Scores: inference.DefaultScoresName,
			Coords: inference.DefaultCoordsName,
		},
		Input: preprocess.DefaultOptions(),
	}
}

// LoadProfile reads a YAML profile. Fields the file omits keep the
// reference model's values. An empty path returns the default profile.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, errors.Wrap(err, "read model profile")
	}
	return ParseProfile(data)
}

// ParseProfile decodes a YAML profile over the defaults.
func ParseProfile(data []byte) (Profile, error) {
	p := DefaultProfile()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, errors.Wrap(err, "parse model profile")
	}
	if err := p.Input.Validate(); err != nil {
		return Profile{}, err
	}
	if err := p.Detector(nil).Validate(); err != nil {
		return Profile{}, errors.Wrapf(err, "profile %q", p.Name)
	}
	return p, nil
}

// Detector returns the pipeline settings for this profile with any
// non-zero overrides from c applied. c may be nil.
func (p Profile) Detector(c *Config) detector.Config {
	cfg := detector.Config{
		CanvasSize:       p.CanvasSize,
		Scales:           p.Scales,
		ExpectedAnchors:  p.ExpectedAnchors,
		CoordsPerAnchor:  p.CoordsPerAnchor,
		DecodeScale:      p.DecodeScale,
		ScoreClip:        p.ScoreClip,
		MinConfidence:    p.MinConfidence,
		IoUThreshold:     p.IoUThreshold,
		MaxDetections:    p.MaxDetections,
		InferenceTimeout: p.Timeout,
	}
	if c == nil {
		return cfg
	}

	if c.MinConfidence != nil {
		cfg.MinConfidence = float32(*c.MinConfidence)
	}
	if c.IoUThreshold > 0 {
		cfg.IoUThreshold = float32(c.IoUThreshold)
	}
	if c.MaxHands != nil {
		cfg.MaxDetections = *c.MaxHands
	}
	if c.InferenceTimeout > 0 {
		cfg.InferenceTimeout = c.InferenceTimeout
	}
	return cfg
}

// Engine returns the ONNX Runtime settings for this profile and c.
func (p Profile) Engine(c *Config) (inference.Config, error) {
	provider, err := inference.ParseProvider(c.Provider)
	if err != nil {
		return inference.Config{}, err
	}

	return inference.Config{
		ModelPath:      c.ModelPath,
		LibraryPath:    c.LibraryPath,
		InputName:      p.Tensors.Input,
		ScoresName:     p.Tensors.Scores,
		CoordsName:     p.Tensors.Coords,
		CanvasSize:     p.CanvasSize,
		Layout:         p.Input.Layout,
		IntraOpThreads: c.IntraThreads,
		InterOpThreads: c.InterThreads,
		Provider:       provider,
	}, nil
}
