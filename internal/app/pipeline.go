package app

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/fingers/internal/capture"
	"github.com/ayusman/fingers/internal/detector"
	"github.com/ayusman/fingers/internal/overlay"
	"github.com/ayusman/fingers/internal/store"
)

// FrameMessage is broadcast for every processed frame.
type FrameMessage struct {
	Type       string               `json:"type"`
	Seq        uint64               `json:"seq"`
	Width      int                  `json:"width"`
	Height     int                  `json:"height"`
	Hands      []detector.Detection `json:"hands"`
	Events     []store.Event        `json:"events,omitempty"`
	LatencyMs  float64              `json:"latency_ms"`
	CapturedAt time.Time            `json:"captured_at"`
}

// run takes the newest frame from the mailbox until it closes or ctx is
// done. Frames that arrive while one is processed replace each other, so
// the loop always works on the freshest one.
//
// Per frame:
//  1. measure scene activity and switch between idle and active FPS
//  2. detect hands (skipped while disabled)
//  3. derive enter/exit/move/two events and queue bound plugin actions
//  4. broadcast, sample into the detection log, publish a preview
func (a *App) run(ctx context.Context, latest *capture.Latest, actions chan<- actionJob) {
	active := false
	for {
		frame, err := latest.Take(ctx)
		if err != nil {
			return
		}
		active = a.pace(active, frame)
		a.process(ctx, frame, actions)
		frame.Close()
	}
}

// pace switches the camera rate on scene activity and returns the new mode.
func (a *App) pace(active bool, frame *capture.Frame) bool {
	moving, changed := a.activity.Measure(frame.Mat)

	switch {
	case moving && !active:
		active = true
		a.cfg.Camera.SetFPS(a.cfg.ActiveFPS)
		a.log.WithField("changed_pct", changed).Debug("switched to active mode")
	case !moving && active && a.activity.IdleFor() > a.cfg.IdleTimeout:
		active = false
		a.cfg.Camera.SetFPS(a.cfg.IdleFPS)
		a.log.Debug("switched to idle mode")
	}

	a.statsMu.Lock()
	a.stats.Active = active
	a.statsMu.Unlock()
	return active
}

func (a *App) process(ctx context.Context, frame *capture.Frame, actions chan<- actionJob) {
	if !a.Enabled() {
		a.preview(frame, nil)
		return
	}

	start := time.Now()
	dets, err := a.cfg.Detector.Detect(ctx, frame.Mat)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		entry := a.log.WithError(err).WithField("seq", frame.Seq)
		if detector.IsFrameError(err) {
			entry.Debug("frame skipped")
		} else {
			entry.Warn("detection failed")
		}
		a.statsMu.Lock()
		a.stats.Failures++
		a.statsMu.Unlock()
		return
	}
	dets = a.filter(dets)
	w, h := frame.Size()

	a.statsMu.Lock()
	events := a.tracker.update(len(dets))
	changed := a.stats.Hands != len(dets)
	a.stats.Frames++
	a.stats.Hands = len(dets)
	a.stats.LastLatency = latency
	if len(events) > 0 && events[0] != store.EventHandMove {
		a.stats.LastEvent = string(events[0])
		a.stats.LastEventAt = time.Now()
	}
	lastEvent := a.stats.LastEvent
	record := false
	if len(dets) > 0 {
		a.handFrames++
		record = (a.handFrames-1)%uint64(a.logEvery.Load()) == 0
	}
	a.statsMu.Unlock()

	for _, e := range events {
		a.dispatch(e, dets, w, h, actions)
	}

	if a.cfg.Broadcaster != nil {
		a.cfg.Broadcaster.Broadcast(FrameMessage{
			Type:       "detections",
			Seq:        frame.Seq,
			Width:      w,
			Height:     h,
			Hands:      dets,
			Events:     events,
			LatencyMs:  float64(latency.Microseconds()) / 1000,
			CapturedAt: frame.CapturedAt,
		})
	}

	if record && a.cfg.Store != nil {
		rec := store.NewFrameRecord(frame.Seq, w, h, latency, frame.CapturedAt, dets)
		if err := a.cfg.Store.Detections().Record(rec); err != nil {
			a.log.WithError(err).Warn("detection log write failed")
		} else {
			a.statsMu.Lock()
			a.stats.Logged++
			a.statsMu.Unlock()
		}
	}

	if changed && a.cfg.Status != nil {
		a.cfg.Status.SetStatus(len(dets), lastEvent)
	}

	a.preview(frame, dets)

	if len(events) > 0 && events[0] != store.EventHandMove {
		a.log.WithFields(logrus.Fields{
			"event": events[0],
			"hands": len(dets),
			"seq":   frame.Seq,
		}).Info("hand event")
	}
}

// filter applies the runtime confidence floor and hand limit. Detections
// arrive sorted by confidence.
func (a *App) filter(dets []detector.Detection) []detector.Detection {
	out := make([]detector.Detection, 0, len(dets))
	minConf := math.Float32frombits(a.minConf.Load())
	for _, d := range dets {
		if d.Confidence >= minConf {
			out = append(out, d)
		}
	}
	if limit := int(a.maxHands.Load()); limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// preview publishes an annotated JPEG when someone is watching.
func (a *App) preview(frame *capture.Frame, dets []detector.Detection) {
	if a.cfg.Frames == nil || !a.cfg.Frames.Watching() || frame.Mat == nil || frame.Mat.Empty() {
		return
	}

	annotated := frame.Mat.Clone()
	defer annotated.Close()
	overlay.DrawMat(&annotated, dets)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, annotated)
	if err != nil {
		a.log.WithError(err).Debug("preview encode failed")
		return
	}
	defer buf.Close()
	a.cfg.Frames.Publish(append([]byte(nil), buf.GetBytes()...))
}
