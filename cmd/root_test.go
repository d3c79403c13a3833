// File: cmd/root_test.go
package cmd

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/playcheck-cli/internal/config"
)

func TestInitializeConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	// Point the loader at an empty directory so no stray config.yaml from the
	// working tree leaks into the test.
	cfgFile = ""
	t.Chdir(t.TempDir())

	require.NoError(t, initializeConfig())

	cfg, err := config.NewConfigFromViper(viper.GetViper())
	require.NoError(t, err)

	assert.True(t, cfg.Browser().Headless)
	assert.Positive(t, cfg.Runner().MaxIterations)
	assert.Positive(t, cfg.Runner().NavigationTimeout)
	assert.Equal(t, "playcheck-cli", cfg.Logger().ServiceName)
}

func TestInitializeConfigEnvOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfgFile = ""
	t.Chdir(t.TempDir())
	t.Setenv("PLAYCHECK_RUNNER_MAX_ITERATIONS", "9")
	t.Setenv("PLAYCHECK_BROWSER_HEADLESS", "false")

	require.NoError(t, initializeConfig())

	cfg, err := config.NewConfigFromViper(viper.GetViper())
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Runner().MaxIterations)
	assert.False(t, cfg.Browser().Headless)
}
