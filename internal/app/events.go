package app

import (
	"context"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/fingers/internal/detector"
	"github.com/ayusman/fingers/internal/plugin"
	"github.com/ayusman/fingers/internal/store"
)

// tracker turns per-frame hand counts into events.
type tracker struct {
	prev int
}

// update returns the events for a frame with hands hands. Transition
// events come first, hand.move last.
func (t *tracker) update(hands int) []store.Event {
	var events []store.Event
	switch {
	case t.prev == 0 && hands > 0:
		events = append(events, store.EventHandEnter)
	case t.prev > 0 && hands == 0:
		events = append(events, store.EventHandExit)
	}
	if t.prev < 2 && hands >= 2 {
		events = append(events, store.EventTwoHands)
	}
	if hands > 0 {
		events = append(events, store.EventHandMove)
	}
	t.prev = hands
	return events
}

func (t *tracker) reset() {
	t.prev = 0
}

type actionJob struct {
	binding *store.Binding
	event   store.Event
	params  plugin.HandParams
}

// HandParamsFor describes the primary hand of dets for plugins.
func HandParamsFor(dets []detector.Detection, width, height int) plugin.HandParams {
	p := plugin.HandParams{
		Hands:       len(dets),
		FrameWidth:  width,
		FrameHeight: height,
	}
	if len(dets) == 0 {
		return p
	}
	d := dets[0]
	wrist, center := d.Wrist(), d.Center()
	p.Confidence = d.Confidence
	p.Wrist = plugin.Point{X: wrist.X, Y: wrist.Y}
	p.Center = plugin.Point{X: center.X, Y: center.Y}
	p.Box = [4]float32{d.Box.XMin, d.Box.YMin, d.Box.XMax, d.Box.YMax}
	return p
}

// dispatch queues the actions bound to event. A full queue drops the job.
func (a *App) dispatch(event store.Event, dets []detector.Detection, w, h int, actions chan<- actionJob) {
	if a.cfg.Store == nil || a.cfg.Plugins == nil {
		return
	}

	bindings, err := a.cfg.Store.Bindings().ListByEvent(event)
	if err != nil {
		a.log.WithError(err).WithField("event", event).Warn("binding lookup failed")
		return
	}

	params := HandParamsFor(dets, w, h)
	for _, b := range bindings {
		select {
		case actions <- actionJob{binding: b, event: event, params: params}:
		default:
			a.log.WithFields(logrus.Fields{
				"binding": b.Name,
				"event":   event,
			}).Warn("action queue full, dropping")
			a.countAction(false)
		}
	}
}

func (a *App) runActions(ctx context.Context, jobs <-chan actionJob) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-jobs:
			a.countAction(a.execute(ctx, job))
		}
	}
}

// execute runs one bound action and reports whether it succeeded.
func (a *App) execute(ctx context.Context, job actionJob) bool {
	b := job.binding
	log := a.log.WithFields(logrus.Fields{
		"binding": b.Name,
		"plugin":  b.PluginName,
		"action":  b.ActionName,
		"event":   job.event,
	})

	p, err := a.cfg.Plugins.Get(b.PluginName)
	if err != nil {
		log.WithError(err).Warn("bound plugin unavailable")
		return false
	}
	if len(p.Manifest.Actions) > 0 && !p.Manifest.HasAction(b.ActionName) {
		log.Warn("plugin does not declare action")
		return false
	}

	req, err := plugin.NewRequest(b.ActionName, string(job.event), b.Config, job.params)
	if err != nil {
		log.WithError(err).Warn("build plugin request")
		return false
	}

	resp, err := a.cfg.Executor.Execute(ctx, p, req)
	if err != nil {
		if ctx.Err() == nil {
			log.WithError(err).Warn("plugin run failed")
		}
		return false
	}
	return resp.Success
}

func (a *App) countAction(ok bool) {
	a.statsMu.Lock()
	defer a.statsMu.Unlock()
	if ok {
		a.stats.Actions++
	} else {
		a.stats.ActionErrors++
	}
}

// ParseSetting parses and range-checks a runtime setting. It returns false
// for unknown keys and invalid values.
func ParseSetting(key, raw string) (any, bool) {
	switch key {
	case store.SettingEnabled:
		v, err := strconv.ParseBool(raw)
		return v, err == nil
	case store.SettingMinConfidence:
		v, err := strconv.ParseFloat(raw, 64)
		return v, err == nil && v >= 0 && v <= 1
	case store.SettingMaxHands:
		v, err := strconv.Atoi(raw)
		return v, err == nil && v >= 0
	case store.SettingLogEvery:
		v, err := strconv.Atoi(raw)
		return v, err == nil && v >= 1
	}
	return nil, false
}
