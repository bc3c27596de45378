// Package main is a plugin that drives the mouse pointer from the wrist
// position. It uses xdotool on Linux and osascript/cliclick on macOS.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"

	"github.com/ayusman/fingers/internal/plugin"
)

// Config is the binding config for this plugin.
type Config struct {
	// Mirror flips the x axis so a front camera feels like a mirror.
	Mirror bool `json:"mirror"`
	// ScreenWidth and ScreenHeight override the detected screen size.
	ScreenWidth  int `json:"screen_width"`
	ScreenHeight int `json:"screen_height"`
	// Button is 1 (left), 2 (middle) or 3 (right) for click.
	Button int `json:"button"`
}

func main() {
	var req plugin.Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeError(fmt.Sprintf("decode request: %v", err))
		return
	}

	cfg := Config{Button: 1}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeError(fmt.Sprintf("parse config: %v", err))
			return
		}
	}

	var hand plugin.HandParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &hand); err != nil {
			writeError(fmt.Sprintf("parse params: %v", err))
			return
		}
	}

	var err error
	switch req.Action {
	case "move":
		err = move(cfg, hand)
	case "click":
		err = click(cfg)
	default:
		writeError(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}
	if err != nil {
		writeError(fmt.Sprintf("action %s failed: %v", req.Action, err))
		return
	}
	writeSuccess()
}

func move(cfg Config, hand plugin.HandParams) error {
	if hand.Hands == 0 {
		return fmt.Errorf("no hand in frame")
	}
	w, h := cfg.ScreenWidth, cfg.ScreenHeight
	if w <= 0 || h <= 0 {
		var err error
		if w, h, err = screenSize(); err != nil {
			return err
		}
	}
	x, y := toScreen(hand.Wrist, w, h, cfg.Mirror)

	switch runtime.GOOS {
	case "linux":
		return run("xdotool", "mousemove", strconv.Itoa(x), strconv.Itoa(y))
	case "darwin":
		return run("cliclick", fmt.Sprintf("m:%d,%d", x, y))
	}
	return fmt.Errorf("unsupported platform %s", runtime.GOOS)
}

func click(cfg Config) error {
	button := cfg.Button
	if button < 1 || button > 3 {
		button = 1
	}
	switch runtime.GOOS {
	case "linux":
		return run("xdotool", "click", strconv.Itoa(button))
	case "darwin":
		if button == 3 {
			return run("cliclick", "rc:.")
		}
		return run("cliclick", "c:.")
	}
	return fmt.Errorf("unsupported platform %s", runtime.GOOS)
}

// toScreen maps a normalized point to pixel coordinates, clamped to the
// screen.
func toScreen(p plugin.Point, w, h int, mirror bool) (int, int) {
	x := float64(p.X)
	if mirror {
		x = 1 - x
	}
	px := int(x * float64(w))
	py := int(float64(p.Y) * float64(h))
	return clamp(px, 0, w-1), clamp(py, 0, h-1)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func screenSize() (int, int, error) {
	switch runtime.GOOS {
	case "linux":
		out, err := exec.Command("xdotool", "getdisplaygeometry").Output()
		if err != nil {
			return 0, 0, fmt.Errorf("xdotool getdisplaygeometry: %w", err)
		}
		var w, h int
		if _, err := fmt.Sscanf(string(out), "%d %d", &w, &h); err != nil {
			return 0, 0, fmt.Errorf("parse geometry %q: %w", out, err)
		}
		return w, h, nil
	case "darwin":
		out, err := exec.Command("osascript", "-e",
			`tell application "Finder" to get bounds of window of desktop`).Output()
		if err != nil {
			return 0, 0, fmt.Errorf("osascript: %w", err)
		}
		var x0, y0, w, h int
		if _, err := fmt.Sscanf(string(out), "%d, %d, %d, %d", &x0, &y0, &w, &h); err != nil {
			return 0, 0, fmt.Errorf("parse bounds %q: %w", out, err)
		}
		return w - x0, h - y0, nil
	}
	return 0, 0, fmt.Errorf("unsupported platform %s", runtime.GOOS)
}

func writeError(msg string) {
	json.NewEncoder(os.Stdout).Encode(plugin.Response{Success: false, Error: msg})
}

func writeSuccess() {
	json.NewEncoder(os.Stdout).Encode(plugin.Response{Success: true})
}

func run(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, output)
	}
	return nil
}
