// Package app runs the capture and detection loop and turns hand
// detections into plugin actions.
package app

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/fingers/internal/capture"
	"github.com/ayusman/fingers/internal/detector"
	"github.com/ayusman/fingers/internal/plugin"
	"github.com/ayusman/fingers/internal/store"
)

// Loop timing defaults.
const (
	// IdleFPS is the frame rate while the scene is still.
	IdleFPS = 5
	// ActiveFPS is the frame rate while the scene is changing.
	ActiveFPS = 15
	// IdleTimeout is how long the scene must stay still before dropping
	// back to IdleFPS.
	IdleTimeout = 2 * time.Second
	// DefaultLogEvery logs one in this many frames that contain hands.
	DefaultLogEvery = 15
	// actionQueueSize bounds pending plugin runs.
	actionQueueSize = 32
)

// ErrNoDetector is returned by Start when no detector is configured.
var ErrNoDetector = errors.New("no hand detector configured")

// Broadcaster receives one message per processed frame.
type Broadcaster interface {
	Broadcast(v any)
}

// FrameSink receives annotated JPEG previews.
type FrameSink interface {
	// Watching reports whether anyone is consuming previews.
	Watching() bool
	Publish(jpeg []byte)
}

// StatusSink shows the current hand count and last event, e.g. in the tray.
type StatusSink interface {
	SetStatus(hands int, lastEvent string)
}

// Config holds the collaborators and tuning of an App. Only Camera and
// Detector are required.
type Config struct {
	Camera      capture.Camera
	Detector    detector.Detector
	Store       *store.Store
	Plugins     *plugin.Manager
	Executor    *plugin.Executor
	Broadcaster Broadcaster
	Frames      FrameSink
	Status      StatusSink
	Logger      logrus.FieldLogger

	LogEvery          int
	ActivityThreshold float64
	IdleFPS           int
	ActiveFPS         int
	IdleTimeout       time.Duration
}

// Stats is a snapshot of the running service.
type Stats struct {
	Running      bool          `json:"running"`
	Enabled      bool          `json:"enabled"`
	Active       bool          `json:"active"`
	Hands        int           `json:"hands"`
	Frames       uint64        `json:"frames"`
	Dropped      uint64        `json:"dropped"`
	Failures     uint64        `json:"failures"`
	Logged       uint64        `json:"logged"`
	Actions      uint64        `json:"actions"`
	ActionErrors uint64        `json:"action_errors"`
	LastEvent    string        `json:"last_event,omitempty"`
	LastEventAt  time.Time     `json:"last_event_at,omitempty"`
	LastLatency  time.Duration `json:"last_latency"`
	MinConf      float32       `json:"min_confidence"`
	MaxHands     int           `json:"max_hands"`
}

// App ties the camera, detector, store and plugins together.
type App struct {
	cfg      Config
	log      logrus.FieldLogger
	activity *capture.Activity

	enabled  atomic.Bool
	logEvery atomic.Int64
	minConf  atomic.Uint32 // float32 bits
	maxHands atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	latest *capture.Latest

	statsMu    sync.RWMutex
	stats      Stats
	tracker    tracker
	handFrames uint64
}

// New returns an App. Detection starts enabled.
func New(cfg Config) *App {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.IdleFPS <= 0 {
		cfg.IdleFPS = IdleFPS
	}
	if cfg.ActiveFPS <= 0 {
		cfg.ActiveFPS = ActiveFPS
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = IdleTimeout
	}
	if cfg.ActivityThreshold <= 0 {
		cfg.ActivityThreshold = 1.0
	}
	if cfg.Executor == nil {
		cfg.Executor = plugin.NewExecutor(plugin.DefaultTimeout, cfg.Logger)
	}

	a := &App{
		cfg:      cfg,
		log:      cfg.Logger.WithField("component", "app"),
		activity: capture.NewActivity(cfg.ActivityThreshold),
	}
	a.enabled.Store(true)
	a.SetLogEvery(cfg.LogEvery)
	return a
}

// LoadSettings applies persisted settings from the store, if any.
func (a *App) LoadSettings() error {
	if a.cfg.Store == nil {
		return nil
	}
	all, err := a.cfg.Store.Settings().All()
	if err != nil {
		return errors.Wrap(err, "load settings")
	}
	a.ApplySettings(all)
	return nil
}

// ApplySettings updates the runtime settings found in values. Unknown keys
// and unparsable values are ignored.
func (a *App) ApplySettings(values map[string]string) {
	for key, raw := range values {
		v, ok := ParseSetting(key, raw)
		if !ok {
			a.log.WithFields(logrus.Fields{"key": key, "value": raw}).Warn("ignoring setting")
			continue
		}
		switch key {
		case store.SettingEnabled:
			a.SetEnabled(v.(bool))
		case store.SettingMinConfidence:
			a.SetMinConfidence(float32(v.(float64)))
		case store.SettingMaxHands:
			a.SetMaxHands(v.(int))
		case store.SettingLogEvery:
			a.SetLogEvery(v.(int))
		}
	}
}

// SetEnabled turns detection on or off. Turning it off forgets the hands
// seen so far, so enabling again reports them as new.
func (a *App) SetEnabled(enabled bool) {
	if a.enabled.Swap(enabled) == enabled {
		return
	}
	if !enabled {
		a.statsMu.Lock()
		a.tracker.reset()
		a.stats.Hands = 0
		a.statsMu.Unlock()
	}
	a.log.WithField("enabled", enabled).Info("detection toggled")
}

// Enabled reports whether detection is on.
func (a *App) Enabled() bool {
	return a.enabled.Load()
}

// SetMinConfidence drops detections below c on top of the detector's own
// threshold. Zero disables the extra filter.
func (a *App) SetMinConfidence(c float32) {
	a.minConf.Store(math.Float32bits(c))
}

// SetMaxHands limits the hands acted on per frame. Zero means no limit.
func (a *App) SetMaxHands(n int) {
	if n < 0 {
		n = 0
	}
	a.maxHands.Store(int64(n))
}

// SetLogEvery sets the detection log sampling rate.
func (a *App) SetLogEvery(n int) {
	if n <= 0 {
		n = DefaultLogEvery
	}
	a.logEvery.Store(int64(n))
}

// Start opens the camera and runs the loop in the background until Stop
// or ctx is done.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return nil
	}
	if a.cfg.Detector == nil {
		return ErrNoDetector
	}
	if a.cfg.Camera == nil {
		return errors.New("no camera configured")
	}

	a.cfg.Camera.SetFPS(a.cfg.IdleFPS)
	ctx, cancel := context.WithCancel(ctx)
	latest := capture.NewLatest()
	actions := make(chan actionJob, actionQueueSize)
	a.cancel = cancel
	a.latest = latest
	a.activity.Reset()

	grabber := capture.NewGrabber(a.cfg.Camera, latest, a.cfg.Logger)

	a.statsMu.Lock()
	a.stats.Running = true
	a.statsMu.Unlock()

	a.wg.Add(3)
	go func() {
		defer a.wg.Done()
		if err := grabber.Run(ctx); err != nil {
			a.log.WithError(err).Error("frame grabber stopped")
		}
		latest.Close()
	}()
	go func() {
		defer a.wg.Done()
		a.run(ctx, latest, actions)
		a.statsMu.Lock()
		a.stats.Running = false
		a.stats.Active = false
		a.statsMu.Unlock()
	}()
	go func() {
		defer a.wg.Done()
		a.runActions(ctx, actions)
	}()

	a.log.WithFields(logrus.Fields{
		"idle_fps":   a.cfg.IdleFPS,
		"active_fps": a.cfg.ActiveFPS,
	}).Info("detection loop started")
	return nil
}

// Stop ends the loop and waits for it. The detector stays open; Close
// releases it.
func (a *App) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	a.wg.Wait()
	a.log.Info("detection loop stopped")
}

// Close stops the loop and releases the detector and activity meter.
func (a *App) Close() error {
	a.Stop()
	a.activity.Close()
	if a.cfg.Detector == nil {
		return nil
	}
	return a.cfg.Detector.Close()
}

// Status returns a snapshot of the service state.
func (a *App) Status() Stats {
	a.statsMu.RLock()
	s := a.stats
	a.statsMu.RUnlock()

	s.Enabled = a.Enabled()
	s.MinConf = math.Float32frombits(a.minConf.Load())
	s.MaxHands = int(a.maxHands.Load())
	a.mu.Lock()
	if a.latest != nil {
		_, s.Dropped = a.latest.Counts()
	}
	a.mu.Unlock()
	return s
}

// Plugins returns the plugin manager, which may be nil.
func (a *App) Plugins() *plugin.Manager {
	return a.cfg.Plugins
}
