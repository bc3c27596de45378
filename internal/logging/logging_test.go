package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := New(Options{Level: "warn", Output: &buf})
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, logrus.WarnLevel, log.GetLevel())

	log.Info("hidden")
	log.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_DefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := New(Options{Output: &buf})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestNew_BadLevel(t *testing.T) {
	_, closer, err := New(Options{Level: "chatty"})
	assert.Error(t, err)
	assert.NotNil(t, closer)
}

func TestNew_FileSink(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "fingers.log")

	log, closer, err := New(Options{Level: "debug", File: path, Output: &buf})
	require.NoError(t, err)

	Component(log, "pipeline").WithField("hands", 2).Debug("frame decoded")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, out := range []string{buf.String(), string(data)} {
		assert.Contains(t, out, "frame decoded")
		assert.Contains(t, out, "component=pipeline")
		assert.Contains(t, out, "hands=2")
	}
}
