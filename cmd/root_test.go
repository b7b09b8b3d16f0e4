package cmd

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestApplyLogLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	applyLogLevel("debug")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	applyLogLevel("warn")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	// An unknown value leaves the level alone.
	applyLogLevel("loud")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestRootFlagsDeclared(t *testing.T) {
	app := App()

	names := map[string]bool{}
	for _, f := range app.Flags {
		for _, n := range f.Names() {
			names[n] = true
		}
	}
	assert.True(t, names["config"])
	assert.True(t, names["log-level"])
}
