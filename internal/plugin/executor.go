package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a single plugin run.
const DefaultTimeout = 5 * time.Second

// ErrTimeout is returned when a plugin does not finish in time.
var ErrTimeout = errors.New("plugin execution timed out")

// Executor runs plugin executables.
type Executor struct {
	timeout time.Duration
	log     logrus.FieldLogger
}

// NewExecutor returns an executor that kills plugins after timeout.
// A non-positive timeout means DefaultTimeout.
func NewExecutor(timeout time.Duration, log logrus.FieldLogger) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{timeout: timeout, log: log.WithField("component", "plugin")}
}

// Timeout returns the per-run limit.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// Execute writes req to the plugin's stdin and parses its stdout. A plugin
// that reports failure is not an error; the Response carries it.
func (e *Executor) Execute(ctx context.Context, p *Plugin, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request")
	}

	cmd := exec.CommandContext(ctx, p.Executable)
	cmd.Dir = p.Path
	cmd.Stdin = bytes.NewReader(body)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	log := e.log.WithFields(logrus.Fields{
		"plugin":  p.Manifest.Name,
		"action":  req.Action,
		"event":   req.Event,
		"elapsed": time.Since(start),
	})

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.Warn("plugin timed out")
		return nil, errors.Wrapf(ErrTimeout, "%s after %v", p.Manifest.Name, e.timeout)
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, errors.Wrapf(err, "run %s: %s", p.Manifest.Name, msg)
		}
		return nil, errors.Wrapf(err, "run %s", p.Manifest.Name)
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, errors.Wrapf(err, "parse %s response %q", p.Manifest.Name, stdout.String())
	}

	if resp.Success {
		log.Debug("plugin ran")
	} else {
		log.WithField("error", resp.Error).Info("plugin reported failure")
	}
	return &resp, nil
}
