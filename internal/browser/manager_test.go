// internal/browser/manager_test.go
package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/playcheck-cli/internal/config"
)

func testBrowserConfig() config.BrowserConfig {
	return config.BrowserConfig{
		Headless:       true,
		ViewportWidth:  1280,
		ViewportHeight: 720,
	}
}

func TestManagerBeforeStart(t *testing.T) {
	m := NewManager(testBrowserConfig(), zap.NewNop())

	assert.Nil(t, m.target(), "target must be nil before Start")
	assert.Equal(t, 0, m.Generation())

	page := m.Page()
	require.NotNil(t, page)

	// Every page operation must fail cleanly rather than panic or hang.
	err := page.run(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)

	_, err = page.Screenshot(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)

	assert.False(t, page.Healthy(context.Background()))
}

func TestManagerShutdownWithoutStart(t *testing.T) {
	m := NewManager(testBrowserConfig(), zap.NewNop())
	// Shutdown on a never-started manager is a no-op, not a crash.
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestExecAllocatorOptions(t *testing.T) {
	t.Run("base options", func(t *testing.T) {
		cfg := testBrowserConfig()
		opts := execAllocatorOptions(cfg)
		// Headless adds one option on top of the explicit defaults.
		assert.NotEmpty(t, opts)
		headlessCount := len(opts)

		cfg.Headless = false
		assert.Len(t, execAllocatorOptions(cfg), headlessCount-1)
	})

	t.Run("config args become flags", func(t *testing.T) {
		cfg := testBrowserConfig()
		base := len(execAllocatorOptions(cfg))

		cfg.Args = []string{"--disable-dev-shm-usage", "--user-agent=playcheck"}
		opts := execAllocatorOptions(cfg)
		assert.Len(t, opts, base+2)
	})

	t.Run("toggles add flags", func(t *testing.T) {
		cfg := testBrowserConfig()
		base := len(execAllocatorOptions(cfg))

		cfg.DisableCache = true
		cfg.IgnoreTLSErrors = true
		opts := execAllocatorOptions(cfg)
		assert.Len(t, opts, base+2)
	})
}
