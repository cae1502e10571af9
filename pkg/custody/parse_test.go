package custody

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRun(t *testing.T) {
	cmd, config, err := Parse([]string{"run"})
	require.NoError(t, err)
	assert.Equal(t, "run", cmd.Name())
	assert.Equal(t, "8080", config.ServerPort)
	assert.Equal(t, PolicyStrict, config.DeletePolicy)
	assert.True(t, config.EventsEnabled)
}

func TestParseFlags(t *testing.T) {
	cmd, config, err := Parse([]string{
		"-port=9090",
		"-no-events",
		"-delete-policy=cascade",
		"-store-timeout=3s",
		"run",
	})
	require.NoError(t, err)
	assert.Equal(t, "run", cmd.Name())
	assert.Equal(t, "9090", config.ServerPort)
	assert.False(t, config.EventsEnabled)
	assert.Equal(t, PolicyCascade, config.DeletePolicy)
	assert.Equal(t, 3*time.Second, config.StoreTimeout)
}

func TestParseSeed(t *testing.T) {
	cmd, _, err := Parse([]string{"-seed-dir=fixtures", "seed"})
	require.NoError(t, err)
	seed, ok := cmd.(*SeedCommand)
	require.True(t, ok)
	assert.Equal(t, "fixtures", seed.Dir)
}

func TestParseCheck(t *testing.T) {
	cmd, _, err := Parse([]string{"check"})
	require.NoError(t, err)
	assert.Equal(t, "check", cmd.Name())
}

func TestParseErrors(t *testing.T) {
	_, _, err := Parse([]string{})
	assert.ErrorContains(t, err, "subcommand required")

	_, _, err = Parse([]string{"frobnicate"})
	assert.ErrorContains(t, err, "unknown command")

	_, _, err = Parse([]string{"-delete-policy=maybe", "run"})
	assert.ErrorContains(t, err, "invalid delete policy")
}
