package inference

import (
	"context"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/ayusman/fingers/internal/preprocess"
)

// Reference model tensor names.
const (
	DefaultInputName  = "image"
	DefaultScoresName = "box_scores"
	DefaultCoordsName = "box_coords"
)

// Config holds the ONNX Runtime session settings.
type Config struct {
	ModelPath      string
	LibraryPath    string
	InputName      string
	ScoresName     string
	CoordsName     string
	CanvasSize     int
	Layout         preprocess.Layout
	IntraOpThreads int
	InterOpThreads int
	Provider       Provider
	DeviceID       int
}

// DefaultConfig returns the settings of the reference model on CPU.
func DefaultConfig() Config {
	return Config{
		ModelPath:      "MediaPipeHandDetector.onnx",
		InputName:      DefaultInputName,
		ScoresName:     DefaultScoresName,
		CoordsName:     DefaultCoordsName,
		CanvasSize:     256,
		Layout:         preprocess.LayoutCHW,
		IntraOpThreads: 4,
		InterOpThreads: 1,
		Provider:       ProviderCPU,
	}
}

// InputShape returns the shape of the model input tensor.
func (c Config) InputShape() ort.Shape {
	n := int64(c.CanvasSize)
	if c.Layout == preprocess.LayoutHWC {
		return ort.NewShape(1, n, n, 3)
	}
	return ort.NewShape(1, 3, n, n)
}

var envMu sync.Mutex

// initEnvironment loads the shared library once per process.
func initEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}

	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrapf(err, "initialize onnxruntime from %s", libPath)
	}
	return nil
}

// ONNXEngine runs the model through ONNX Runtime with preallocated tensors.
// Runs are serialized.
type ONNXEngine struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	scores  *ort.Tensor[float32]
	coords  *ort.Tensor[float32]
	closed  bool
	log     logrus.FieldLogger
}

// NewONNXEngine loads the model and prepares a session.
func NewONNXEngine(cfg Config, log logrus.FieldLogger) (*ONNXEngine, error) {
	if cfg.CanvasSize <= 0 {
		return nil, errors.Errorf("canvas size %d", cfg.CanvasSize)
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrap(err, "model file")
	}

	libPath := LibraryPath(cfg.LibraryPath)
	if err := initEnvironment(libPath); err != nil {
		return nil, err
	}

	scoresShape, coordsShape, err := outputShapes(cfg)
	if err != nil {
		return nil, err
	}

	e := &ONNXEngine{log: log.WithField("component", "onnx")}

	if e.input, err = ort.NewEmptyTensor[float32](cfg.InputShape()); err != nil {
		return nil, errors.Wrap(err, "create input tensor")
	}
	if e.scores, err = ort.NewEmptyTensor[float32](scoresShape); err != nil {
		e.destroy()
		return nil, errors.Wrap(err, "create scores tensor")
	}
	if e.coords, err = ort.NewEmptyTensor[float32](coordsShape); err != nil {
		e.destroy()
		return nil, errors.Wrap(err, "create coords tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		e.destroy()
		return nil, errors.Wrap(err, "create session options")
	}
	defer options.Destroy()

	if cfg.IntraOpThreads > 0 {
		options.SetIntraOpNumThreads(cfg.IntraOpThreads)
	}
	if cfg.InterOpThreads > 0 {
		options.SetInterOpNumThreads(cfg.InterOpThreads)
	}
	options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll)

	if err := appendProvider(options, cfg); err != nil {
		e.destroy()
		return nil, err
	}

	e.session, err = ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.ScoresName, cfg.CoordsName},
		[]ort.ArbitraryTensor{e.input},
		[]ort.ArbitraryTensor{e.scores, e.coords},
		options,
	)
	if err != nil {
		e.destroy()
		return nil, errors.Wrap(err, "create session")
	}

	e.log.WithFields(logrus.Fields{
		"model":    cfg.ModelPath,
		"library":  libPath,
		"provider": cfg.Provider,
		"input":    cfg.InputShape(),
		"scores":   scoresShape,
		"coords":   coordsShape,
	}).Info("onnx session ready")

	return e, nil
}

// outputShapes reads the declared output shapes from the model file.
// Dynamic dimensions are fixed to 1.
func outputShapes(cfg Config) (ort.Shape, ort.Shape, error) {
	_, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read model outputs")
	}

	var scores, coords ort.Shape
	for _, info := range outputs {
		switch info.Name {
		case cfg.ScoresName:
			scores = fixedShape(info.Dimensions)
		case cfg.CoordsName:
			coords = fixedShape(info.Dimensions)
		}
	}
	if scores == nil {
		return nil, nil, errors.Errorf("model has no output %q", cfg.ScoresName)
	}
	if coords == nil {
		return nil, nil, errors.Errorf("model has no output %q", cfg.CoordsName)
	}
	return scores, coords, nil
}

func fixedShape(dims ort.Shape) ort.Shape {
	shape := make(ort.Shape, len(dims))
	for i, d := range dims {
		if d <= 0 {
			d = 1
		}
		shape[i] = d
	}
	return shape
}

// Run copies input into the session, runs it, and copies the outputs out.
func (e *ONNXEngine) Run(ctx context.Context, input []float32) (*Outputs, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrEngineClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dst := e.input.GetData()
	if len(input) != len(dst) {
		return nil, errors.Errorf("input has %d values, model expects %d", len(input), len(dst))
	}
	copy(dst, input)

	if err := e.session.Run(); err != nil {
		return nil, errors.Wrap(err, "run session")
	}

	return &Outputs{
		Scores:      append([]float32(nil), e.scores.GetData()...),
		ScoresShape: append([]int64(nil), e.scores.GetShape()...),
		Coords:      append([]float32(nil), e.coords.GetData()...),
		CoordsShape: append([]int64(nil), e.coords.GetShape()...),
	}, nil
}

// Close destroys the session and its tensors.
func (e *ONNXEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	var err error
	if e.session != nil {
		err = e.session.Destroy()
	}
	e.destroy()
	return err
}

func (e *ONNXEngine) destroy() {
	for _, t := range []*ort.Tensor[float32]{e.input, e.scores, e.coords} {
		if t != nil {
			t.Destroy()
		}
	}
}
