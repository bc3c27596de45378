package plugin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
)

// scriptPlugin writes a shell script plugin into a temp dir.
func scriptPlugin(t *testing.T, name, script string) *Plugin {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping shell plugin test on Windows")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, name+".sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return &Plugin{
		Manifest:   Manifest{Name: name, Version: "1.0.0", Executable: name + ".sh", Actions: []string{"run"}},
		Path:       dir,
		Executable: path,
	}
}

func newExecutor(timeout time.Duration) *Executor {
	log, _ := test.NewNullLogger()
	return NewExecutor(timeout, log)
}

func TestExecutor_Execute(t *testing.T) {
	p := scriptPlugin(t, "hello", `cat <<'EOF'
{"success":true,"data":{"message":"hello world"}}
EOF
`)

	resp, err := newExecutor(5*time.Second).Execute(context.Background(), p, &Request{Action: "run", Event: "hand.enter"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !resp.Success || resp.Error != "" {
		t.Errorf("response = %+v, want success", resp)
	}

	var data map[string]string
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal data: %v", err)
	}
	if data["message"] != "hello world" {
		t.Errorf("message = %q", data["message"])
	}
}

func TestExecutor_Execute_SendsHandParams(t *testing.T) {
	p := scriptPlugin(t, "echo", `INPUT=$(cat)
echo "{\"success\":true,\"data\":$INPUT}"
`)

	params := HandParams{
		Hands:       1,
		Confidence:  0.9,
		Wrist:       Point{X: 0.25, Y: 0.75},
		FrameWidth:  640,
		FrameHeight: 480,
	}
	req, err := NewRequest("move", "hand.move", json.RawMessage(`{"mirror":true}`), params)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}

	resp, err := newExecutor(5*time.Second).Execute(context.Background(), p, req)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var echoed struct {
		Action string          `json:"action"`
		Event  string          `json:"event"`
		Config json.RawMessage `json:"config"`
		Params HandParams      `json:"params"`
	}
	if err := json.Unmarshal(resp.Data, &echoed); err != nil {
		t.Fatalf("failed to unmarshal echoed request: %v", err)
	}
	if echoed.Action != "move" || echoed.Event != "hand.move" {
		t.Errorf("echoed = %+v", echoed)
	}
	if echoed.Params.Wrist != params.Wrist || echoed.Params.FrameWidth != 640 {
		t.Errorf("params = %+v, want %+v", echoed.Params, params)
	}
	if string(echoed.Config) != `{"mirror":true}` {
		t.Errorf("config = %s", echoed.Config)
	}
}

func TestExecutor_Timeout(t *testing.T) {
	p := scriptPlugin(t, "slow", "sleep 5\n")

	start := time.Now()
	_, err := newExecutor(100*time.Millisecond).Execute(context.Background(), p, &Request{Action: "run"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Execute() error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
}

func TestExecutor_CallerCancel(t *testing.T) {
	p := scriptPlugin(t, "slow", "sleep 5\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newExecutor(5*time.Second).Execute(ctx, p, &Request{Action: "run"})
	if err == nil {
		t.Fatal("Execute() with a cancelled context should fail")
	}
}

func TestExecutor_Execute_ErrorResponse(t *testing.T) {
	p := scriptPlugin(t, "failing", `echo '{"success":false,"error":"no display"}'
`)

	resp, err := newExecutor(5*time.Second).Execute(context.Background(), p, &Request{Action: "run"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Success || resp.Error != "no display" {
		t.Errorf("response = %+v", resp)
	}
}

func TestExecutor_Execute_InvalidJSON(t *testing.T) {
	p := scriptPlugin(t, "garbage", "echo 'not json'\n")

	_, err := newExecutor(5*time.Second).Execute(context.Background(), p, &Request{Action: "run"})
	if err == nil || !strings.Contains(err.Error(), "parse garbage response") {
		t.Errorf("Execute() error = %v, want parse error", err)
	}
}

func TestExecutor_Execute_NonZeroExit(t *testing.T) {
	p := scriptPlugin(t, "crash", "echo 'boom' >&2\nexit 3\n")

	_, err := newExecutor(5*time.Second).Execute(context.Background(), p, &Request{Action: "run"})
	if err == nil {
		t.Fatal("Execute() should fail on non-zero exit")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error %q should include stderr", err)
	}
}

func TestNewExecutor(t *testing.T) {
	if got := newExecutor(0).Timeout(); got != DefaultTimeout {
		t.Errorf("Timeout() = %v, want %v", got, DefaultTimeout)
	}
	if got := newExecutor(time.Second).Timeout(); got != time.Second {
		t.Errorf("Timeout() = %v, want 1s", got)
	}
}

func TestNewRequest(t *testing.T) {
	req, err := NewRequest("click", "hand.enter", nil, map[string]int{"hands": 1})
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if string(req.Config) != "{}" {
		t.Errorf("Config = %s, want {}", req.Config)
	}
	if string(req.Params) != `{"hands":1}` {
		t.Errorf("Params = %s", req.Params)
	}

	if _, err := NewRequest("x", "y", nil, make(chan int)); err == nil {
		t.Error("NewRequest() should fail for unmarshalable params")
	}
}
