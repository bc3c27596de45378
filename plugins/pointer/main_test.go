package main

import (
	"testing"

	"github.com/ayusman/fingers/internal/plugin"
	"github.com/stretchr/testify/assert"
)

func TestToScreen(t *testing.T) {
	tests := []struct {
		name   string
		p      plugin.Point
		mirror bool
		wantX  int
		wantY  int
	}{
		{"center", plugin.Point{X: 0.5, Y: 0.5}, false, 960, 540},
		{"mirrored", plugin.Point{X: 0.25, Y: 0.5}, true, 1440, 540},
		{"clamped low", plugin.Point{X: -0.2, Y: -1}, false, 0, 0},
		{"clamped high", plugin.Point{X: 1.5, Y: 1}, false, 1919, 1079},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := toScreen(tt.p, 1920, 1080, tt.mirror)
			assert.Equal(t, tt.wantX, x)
			assert.Equal(t, tt.wantY, y)
		})
	}
}

func TestMove_NoHand(t *testing.T) {
	err := move(Config{ScreenWidth: 100, ScreenHeight: 100}, plugin.HandParams{})
	assert.Error(t, err)
}
