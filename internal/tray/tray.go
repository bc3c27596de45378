// Package tray shows the fingers status in the system tray.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
)

// Tray is the system tray menu. It implements app.StatusSink.
type Tray struct {
	mu         sync.RWMutex
	onToggle   func(enabled bool)
	onSettings func()
	onQuit     func()
	enabled    bool
	hands      int
	lastEvent  string

	menuToggle *systray.MenuItem
	menuHands  *systray.MenuItem
	menuLast   *systray.MenuItem
}

// New returns a Tray showing the given state.
func New(enabled bool) *Tray {
	return &Tray{enabled: enabled}
}

// OnToggle sets the callback for the enable/disable item.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnSettings sets the callback for the settings item.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback for the quit item.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run shows the tray icon and blocks until Quit. It must be called from
// the main goroutine on macOS.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Fingers")
	systray.SetTooltip("Fingers hand detection")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle hand detection")
	systray.AddSeparator()
	t.menuHands = systray.AddMenuItem(handsTitle(t.hands), "Hands in view")
	t.menuHands.Disable()
	t.menuLast = systray.AddMenuItem(lastTitle(t.lastEvent), "Last hand event")
	t.menuLast.Disable()
	t.mu.Unlock()

	systray.AddSeparator()
	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit Fingers")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.Toggle()
			case <-menuSettings.ClickedCh:
				t.callback(func() func() { return t.onSettings })
			case <-menuQuit.ClickedCh:
				t.callback(func() func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) callback(get func() func()) {
	t.mu.RLock()
	fn := get()
	t.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Toggle flips the enabled state and notifies OnToggle.
func (t *Tray) Toggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	fn := t.onToggle
	t.mu.Unlock()

	if fn != nil {
		fn(enabled)
	}
}

// SetEnabled updates the shown state without calling OnToggle.
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
}

// SetStatus shows the hand count and the last event.
func (t *Tray) SetStatus(hands int, lastEvent string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hands, t.lastEvent = hands, lastEvent
	if t.menuHands != nil {
		t.menuHands.SetTitle(handsTitle(hands))
		t.menuLast.SetTitle(lastTitle(lastEvent))
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func handsTitle(n int) string {
	switch n {
	case 0:
		return "No hands"
	case 1:
		return "1 hand"
	}
	return fmt.Sprintf("%d hands", n)
}

func lastTitle(event string) string {
	if event == "" {
		return "Last: none"
	}
	return "Last: " + event
}
