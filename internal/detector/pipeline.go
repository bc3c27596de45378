package detector

import (
	"context"
	"image"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/fingers/internal/inference"
	"github.com/ayusman/fingers/internal/preprocess"
)

// Pipeline runs letterbox, inference, decoding and NMS for one frame at a
// time. It keeps no state between frames apart from counters, so calls may
// run concurrently if the engine allows it.
type Pipeline struct {
	cfg     Config
	anchors *AnchorTable
	decoder *Decoder
	engine  inference.Engine
	prep    preprocess.Options
	log     logrus.FieldLogger

	frames     atomic.Int64
	failures   atomic.Int64
	detections atomic.Int64
	latency    atomic.Int64
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(p *Pipeline) {
		p.log = log
	}
}

// WithPreprocess sets the tensor layout and normalization.
func WithPreprocess(opts preprocess.Options) Option {
	return func(p *Pipeline) {
		p.prep = opts
	}
}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	Frames      int64         `json:"frames"`
	Failures    int64         `json:"failures"`
	Detections  int64         `json:"detections"`
	LastLatency time.Duration `json:"last_latency"`
}

// NewPipeline validates cfg against anchors and returns a ready pipeline.
// Any error here is a configuration error.
func NewPipeline(cfg Config, anchors *AnchorTable, engine inference.Engine, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if anchors == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "nil anchor table")
	}
	if engine == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "nil inference engine")
	}
	if anchors.Len() != cfg.ExpectedAnchors {
		return nil, errors.Wrapf(ErrAnchorCountMismatch, "table has %d anchors, model has %d",
			anchors.Len(), cfg.ExpectedAnchors)
	}

	p := &Pipeline{
		cfg:     cfg,
		anchors: anchors,
		decoder: NewDecoder(cfg, anchors),
		engine:  engine,
		prep:    preprocess.DefaultOptions(),
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.prep.Validate(); err != nil {
		return nil, errors.Wrap(ErrInvalidConfig, err.Error())
	}
	p.log = p.log.WithField("component", "pipeline")

	return p, nil
}

// Detect runs the pipeline on a BGR camera frame.
func (p *Pipeline) Detect(ctx context.Context, frame *gocv.Mat) ([]Detection, error) {
	start := time.Now()
	if frame == nil || frame.Empty() {
		return nil, p.fail(errors.Wrap(ErrInvalidFrame, "empty mat"))
	}

	lb, err := NewLetterbox(frame.Cols(), frame.Rows(), p.cfg.CanvasSize)
	if err != nil {
		return nil, p.fail(err)
	}

	input, err := preprocess.FromMat(frame, lb.Placement(), p.prep)
	if err != nil {
		return nil, p.fail(errors.Wrap(ErrInvalidFrame, err.Error()))
	}

	return p.process(ctx, lb, input, start)
}

// DetectImage runs the pipeline on a decoded image.
func (p *Pipeline) DetectImage(ctx context.Context, img image.Image) ([]Detection, error) {
	start := time.Now()
	if img == nil {
		return nil, p.fail(errors.Wrap(ErrInvalidFrame, "nil image"))
	}

	b := img.Bounds()
	lb, err := NewLetterbox(b.Dx(), b.Dy(), p.cfg.CanvasSize)
	if err != nil {
		return nil, p.fail(err)
	}

	input, err := preprocess.FromImage(img, lb.Placement(), p.prep)
	if err != nil {
		return nil, p.fail(errors.Wrap(ErrInvalidFrame, err.Error()))
	}

	return p.process(ctx, lb, input, start)
}

func (p *Pipeline) process(ctx context.Context, lb Letterbox, input []float32, start time.Time) ([]Detection, error) {
	out, err := p.infer(ctx, input)
	if err != nil {
		return nil, p.fail(err)
	}

	dets, err := p.Decode(out, lb)
	if err != nil {
		return nil, p.fail(err)
	}

	p.frames.Add(1)
	p.detections.Add(int64(len(dets)))
	p.latency.Store(int64(time.Since(start)))
	return dets, nil
}

// infer runs the engine under the frame deadline. The engine call runs in
// its own goroutine so an engine that ignores ctx cannot hold the caller
// past the deadline.
func (p *Pipeline) infer(ctx context.Context, input []float32) (*inference.Outputs, error) {
	if _, ok := ctx.Deadline(); !ok && p.cfg.InferenceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.InferenceTimeout)
		defer cancel()
	}

	type result struct {
		out *inference.Outputs
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := p.engine.Run(ctx, input)
		done <- result{out: out, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) {
				return nil, errors.Wrap(ErrInferenceDeadline, r.err.Error())
			}
			return nil, errors.Wrap(r.err, "inference")
		}
		return r.out, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.Wrap(ErrInferenceDeadline, "inference")
		}
		return nil, ctx.Err()
	}
}

// Decode validates raw outputs against the anchor table, decodes them in
// the frame described by lb, and applies NMS and the detection cap.
func (p *Pipeline) Decode(out *inference.Outputs, lb Letterbox) ([]Detection, error) {
	if err := p.checkShapes(out); err != nil {
		return nil, err
	}

	candidates, stats := p.decoder.Decode(out.Scores, out.Coords, lb)
	dets := NMS(candidates, p.cfg.IoUThreshold)
	if p.cfg.MaxDetections > 0 && len(dets) > p.cfg.MaxDetections {
		dets = dets[:p.cfg.MaxDetections]
	}

	p.log.WithFields(logrus.Fields{
		"candidates":      len(candidates),
		"below_threshold": stats.BelowThreshold,
		"degenerate":      stats.Degenerate,
		"kept":            len(dets),
	}).Debug("frame decoded")

	return dets, nil
}

func (p *Pipeline) checkShapes(out *inference.Outputs) error {
	n := int64(p.anchors.Len())
	c := int64(p.cfg.CoordsPerAnchor)

	if out == nil {
		return &InferenceOutputShapeError{Tensor: "scores", Want: []int64{1, n, 1}}
	}

	if int64(len(out.Scores)) != n || !shapeHolds(out.ScoresShape, len(out.Scores)) {
		return &InferenceOutputShapeError{
			Tensor:   "scores",
			Want:     []int64{1, n, 1},
			Got:      out.ScoresShape,
			Elements: len(out.Scores),
		}
	}

	last := int64(0)
	if len(out.CoordsShape) > 0 {
		last = out.CoordsShape[len(out.CoordsShape)-1]
	}
	if int64(len(out.Coords)) != n*c || !shapeHolds(out.CoordsShape, len(out.Coords)) ||
		(len(out.CoordsShape) > 1 && last != c) {
		return &InferenceOutputShapeError{
			Tensor:   "coords",
			Want:     []int64{1, n, c},
			Got:      out.CoordsShape,
			Elements: len(out.Coords),
		}
	}

	return nil
}

// shapeHolds reports whether shape, when given, describes exactly n elements.
func shapeHolds(shape []int64, n int) bool {
	return len(shape) == 0 || inference.Elements(shape) == int64(n)
}

func (p *Pipeline) fail(err error) error {
	p.failures.Add(1)
	p.log.WithError(err).Debug("frame skipped")
	return err
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Frames:      p.frames.Load(),
		Failures:    p.failures.Load(),
		Detections:  p.detections.Load(),
		LastLatency: time.Duration(p.latency.Load()),
	}
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Anchors returns the shared anchor table.
func (p *Pipeline) Anchors() *AnchorTable {
	return p.anchors
}

// Close closes the inference engine.
func (p *Pipeline) Close() error {
	return p.engine.Close()
}
