package app

import (
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/fingers/internal/detector"
	"github.com/ayusman/fingers/internal/store"
)

func TestTracker(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
		want   [][]store.Event
	}{
		{
			name:   "enter move exit",
			counts: []int{0, 1, 1, 0},
			want: [][]store.Event{
				nil,
				{store.EventHandEnter, store.EventHandMove},
				{store.EventHandMove},
				{store.EventHandExit},
			},
		},
		{
			name:   "second hand",
			counts: []int{1, 2, 2, 1},
			want: [][]store.Event{
				{store.EventHandEnter, store.EventHandMove},
				{store.EventTwoHands, store.EventHandMove},
				{store.EventHandMove},
				{store.EventHandMove},
			},
		},
		{
			name:   "two hands at once",
			counts: []int{2, 0},
			want: [][]store.Event{
				{store.EventHandEnter, store.EventTwoHands, store.EventHandMove},
				{store.EventHandExit},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tr tracker
			for i, n := range tt.counts {
				assert.Equal(t, tt.want[i], tr.update(n), "frame %d", i)
			}
		})
	}
}

func TestTracker_Reset(t *testing.T) {
	var tr tracker
	tr.update(1)
	tr.reset()
	assert.Equal(t, []store.Event{store.EventHandEnter, store.EventHandMove}, tr.update(1))
}

func TestParseSetting(t *testing.T) {
	tests := []struct {
		key, raw string
		want     any
		ok       bool
	}{
		{store.SettingEnabled, "false", false, true},
		{store.SettingEnabled, "maybe", false, false},
		{store.SettingMinConfidence, "0.7", 0.7, true},
		{store.SettingMinConfidence, "1.5", 1.5, false},
		{store.SettingMaxHands, "0", 0, true},
		{store.SettingMaxHands, "-1", -1, false},
		{store.SettingLogEvery, "30", 30, true},
		{store.SettingLogEvery, "0", 0, false},
		{"camera.exposure", "3", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.raw, func(t *testing.T) {
			got, ok := ParseSetting(tt.key, tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestHandParamsFor(t *testing.T) {
	right := detector.RightHandDetection()
	p := HandParamsFor([]detector.Detection{right, detector.LeftHandDetection()}, 640, 480)

	assert.Equal(t, 2, p.Hands)
	assert.Equal(t, right.Confidence, p.Confidence)
	assert.Equal(t, right.Keypoints[detector.Wrist].X, p.Wrist.X)
	assert.Equal(t, right.Box.Center().Y, p.Center.Y)
	assert.Equal(t, [4]float32{0.55, 0.30, 0.80, 0.70}, p.Box)
	assert.Equal(t, 640, p.FrameWidth)

	empty := HandParamsFor(nil, 640, 480)
	assert.Zero(t, empty.Hands)
	assert.Equal(t, 480, empty.FrameHeight)
}

func newTestApp(t *testing.T, cfg Config) *App {
	t.Helper()
	log, _ := test.NewNullLogger()
	cfg.Logger = log
	a := New(cfg)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestApp_Filter(t *testing.T) {
	a := newTestApp(t, Config{})
	dets := []detector.Detection{detector.RightHandDetection(), detector.LeftHandDetection()}

	assert.Len(t, a.filter(dets), 2)

	a.SetMinConfidence(0.9)
	got := a.filter(dets)
	require.Len(t, got, 1)
	assert.Equal(t, float32(0.93), got[0].Confidence)

	a.SetMinConfidence(0)
	a.SetMaxHands(1)
	assert.Len(t, a.filter(dets), 1)

	assert.NotNil(t, a.filter(nil), "hands must encode as []")
}

func TestApp_ApplySettings(t *testing.T) {
	a := newTestApp(t, Config{})
	a.ApplySettings(map[string]string{
		store.SettingEnabled:       "false",
		store.SettingMinConfidence: "0.6",
		store.SettingMaxHands:      "1",
		store.SettingLogEvery:      "bogus",
	})

	s := a.Status()
	assert.False(t, s.Enabled)
	assert.InDelta(t, 0.6, s.MinConf, 1e-6)
	assert.Equal(t, 1, s.MaxHands)
	assert.Equal(t, int64(DefaultLogEvery), a.logEvery.Load())
}

func TestApp_LoadSettings(t *testing.T) {
	s, err := store.New(t.TempDir() + "/fingers.db")
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Settings().Set(store.SettingMaxHands, "3"))

	a := newTestApp(t, Config{Store: s})
	require.NoError(t, a.LoadSettings())
	assert.Equal(t, 3, a.Status().MaxHands)
}

func TestApp_StartRequiresDetector(t *testing.T) {
	a := newTestApp(t, Config{})
	assert.ErrorIs(t, a.Start(t.Context()), ErrNoDetector)
	assert.False(t, a.Status().Running)
}
