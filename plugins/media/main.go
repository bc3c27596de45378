// Package main is a media control plugin. It uses playerctl and pactl on
// Linux and AppleScript on macOS.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/ayusman/fingers/internal/plugin"
)

// command is one platform invocation for an action.
type command struct {
	name string
	args []string
}

var linuxActions = map[string]command{
	"play_pause":  {"playerctl", []string{"play-pause"}},
	"next":        {"playerctl", []string{"next"}},
	"previous":    {"playerctl", []string{"previous"}},
	"volume_up":   {"pactl", []string{"set-sink-volume", "@DEFAULT_SINK@", "+10%"}},
	"volume_down": {"pactl", []string{"set-sink-volume", "@DEFAULT_SINK@", "-10%"}},
	"mute":        {"pactl", []string{"set-sink-mute", "@DEFAULT_SINK@", "toggle"}},
}

var darwinScripts = map[string]string{
	"play_pause":  `tell application "System Events" to key code 100`,
	"next":        `tell application "System Events" to key code 101`,
	"previous":    `tell application "System Events" to key code 98`,
	"volume_up":   `set volume output volume ((output volume of (get volume settings)) + 10)`,
	"volume_down": `set volume output volume ((output volume of (get volume settings)) - 10)`,
	"mute":        `set volume output muted (not (output muted of (get volume settings)))`,
}

func main() {
	var req plugin.Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeError(fmt.Sprintf("decode request: %v", err))
		return
	}

	cmd, err := lookup(runtime.GOOS, req.Action)
	if err != nil {
		writeError(err.Error())
		return
	}
	if output, err := exec.Command(cmd.name, cmd.args...).CombinedOutput(); err != nil {
		writeError(fmt.Sprintf("action %s failed: %v: %s", req.Action, err, output))
		return
	}
	writeSuccess()
}

func lookup(goos, action string) (command, error) {
	if _, ok := linuxActions[action]; !ok {
		return command{}, fmt.Errorf("unknown action: %s", action)
	}
	switch goos {
	case "linux":
		return linuxActions[action], nil
	case "darwin":
		return command{"osascript", []string{"-e", darwinScripts[action]}}, nil
	}
	return command{}, fmt.Errorf("unsupported platform %s", goos)
}

func writeError(msg string) {
	json.NewEncoder(os.Stdout).Encode(plugin.Response{Success: false, Error: msg})
}

func writeSuccess() {
	json.NewEncoder(os.Stdout).Encode(plugin.Response{Success: true})
}
