// Package logging builds the service logger.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Options configures New.
type Options struct {
	Level string
	// File, when set, receives a copy of everything written to Output.
	File   string
	Output io.Writer
}

// New returns a text logger with full timestamps. The returned closer
// releases the log file and is never nil.
func New(opts Options) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, nopCloser{}, errors.Wrapf(err, "log level %q", opts.Level)
		}
		level = parsed
	}
	log.SetLevel(level)

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	if opts.File == "" {
		log.SetOutput(out)
		return log, nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
		return nil, nopCloser{}, errors.Wrap(err, "create log directory")
	}
	file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, nopCloser{}, errors.Wrap(err, "open log file")
	}
	log.SetOutput(io.MultiWriter(out, file))
	return log, file, nil
}

// Component returns a logger tagged with the component name.
func Component(log logrus.FieldLogger, name string) *logrus.Entry {
	return log.WithField("component", name)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
