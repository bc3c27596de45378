package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	cmd, err := lookup("linux", "next")
	require.NoError(t, err)
	assert.Equal(t, "playerctl", cmd.name)
	assert.Equal(t, []string{"next"}, cmd.args)

	cmd, err = lookup("darwin", "mute")
	require.NoError(t, err)
	assert.Equal(t, "osascript", cmd.name)
	assert.Contains(t, cmd.args[1], "output muted")

	_, err = lookup("linux", "rewind-tape")
	assert.EqualError(t, err, "unknown action: rewind-tape")

	_, err = lookup("plan9", "next")
	assert.Error(t, err)
}

func TestActionsCoverBothPlatforms(t *testing.T) {
	for action := range linuxActions {
		_, ok := darwinScripts[action]
		assert.True(t, ok, "missing darwin script for %s", action)
	}
	assert.Len(t, darwinScripts, len(linuxActions))
}
