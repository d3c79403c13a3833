// internal/browser/manager.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xkilldash9x/playcheck-cli/internal/config"
)

// shutdownTimeout bounds how long we wait for the browser process to exit.
const shutdownTimeout = 10 * time.Second

// ErrNotStarted is returned when a page operation runs before Start.
var ErrNotStarted = errors.New("browser: manager not started")

// Manager owns the headless browser process and its single tab. It can tear
// the whole process down and relaunch it when the target becomes unresponsive,
// without the callers holding a Page having to re-resolve anything.
type Manager struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	parent context.Context

	mu          sync.RWMutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	generation  int

	// relaunch collapses concurrent recovery attempts into one.
	relaunch singleflight.Group
}

// NewManager creates a browser manager. Start must be called before use.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: logger.Named("browser"),
	}
}

// Start launches the browser process. The parent context bounds the lifetime
// of every browser this manager ever launches, including after a Relaunch.
func (m *Manager) Start(ctx context.Context) error {
	m.parent = ctx
	return m.launch()
}

func (m *Manager) launch() error {
	opts := execAllocatorOptions(m.cfg)
	allocCtx, allocCancel := chromedp.NewExecAllocator(m.parent, opts...)

	ctxOpts := []chromedp.ContextOption{
		chromedp.WithLogf(m.logger.Sugar().Infof),
		chromedp.WithErrorf(m.logger.Sugar().Errorf),
	}
	if m.cfg.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(m.logger.Sugar().Debugf))
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, ctxOpts...)

	// Running any action starts the browser process; sizing the viewport up
	// front keeps screenshots and coordinates consistent across the run.
	err := chromedp.Run(tabCtx, chromedp.EmulateViewport(
		int64(m.cfg.ViewportWidth), int64(m.cfg.ViewportHeight),
	))
	if err != nil {
		tabCancel()
		allocCancel()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	m.mu.Lock()
	m.allocCtx = allocCtx
	m.allocCancel = allocCancel
	m.tabCtx = tabCtx
	m.tabCancel = tabCancel
	m.generation++
	gen := m.generation
	m.mu.Unlock()

	m.logger.Info("Browser launched.",
		zap.Int("generation", gen),
		zap.Bool("headless", m.cfg.Headless),
		zap.Int("viewport_width", m.cfg.ViewportWidth),
		zap.Int("viewport_height", m.cfg.ViewportHeight),
	)
	return nil
}

// target returns the current tab context, or nil before Start.
func (m *Manager) target() context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tabCtx
}

// Generation returns the relaunch counter, starting at 1 for the first
// launch. Useful for telling whether a recovery actually happened.
func (m *Manager) Generation() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

// Page returns a driver bound to this manager's current tab. The returned
// Page stays valid across Relaunch; it re-resolves the tab on every call.
func (m *Manager) Page() *Page {
	return &Page{mgr: m, logger: m.logger.Named("page")}
}

// Relaunch kills the current browser process and starts a fresh one. If
// several callers detect the same dead target concurrently, only one
// relaunch is in flight; the rest wait for and share its result.
func (m *Manager) Relaunch(ctx context.Context) error {
	_, err, _ := m.relaunch.Do("relaunch", func() (interface{}, error) {
		m.mu.Lock()
		oldAlloc := m.allocCtx
		oldAllocCancel := m.allocCancel
		oldTabCancel := m.tabCancel
		m.mu.Unlock()

		if oldAlloc != nil {
			m.logger.Warn("Relaunching browser.")
			m.stop(oldAlloc, oldTabCancel, oldAllocCancel)
		}
		return nil, m.launch()
	})
	if err != nil {
		return err
	}
	return ctx.Err()
}

// Shutdown tears the browser down for good.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	alloc := m.allocCtx
	allocCancel := m.allocCancel
	tabCancel := m.tabCancel
	m.allocCtx = nil
	m.allocCancel = nil
	m.tabCtx = nil
	m.tabCancel = nil
	m.mu.Unlock()

	if alloc == nil {
		return nil
	}
	m.logger.Info("Shutting down browser.")
	m.stop(alloc, tabCancel, allocCancel)
	return ctx.Err()
}

// stop gracefully terminates one browser generation. chromedp.Cancel blocks
// until the process exits, so it runs under its own timeout.
func (m *Manager) stop(alloc context.Context, tabCancel, allocCancel context.CancelFunc) {
	waitCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- chromedp.Cancel(alloc)
	}()

	select {
	case err := <-done:
		if err != nil && !(errors.Is(err, context.Canceled) && alloc.Err() != nil) {
			m.logger.Warn("Error during graceful browser shutdown.", zap.Error(err))
		}
	case <-waitCtx.Done():
		m.logger.Warn("Browser shutdown timed out; proceeding forcefully.",
			zap.Duration("timeout", shutdownTimeout))
	}

	// Cancel functions are idempotent; call them as a final measure.
	if tabCancel != nil {
		tabCancel()
	}
	if allocCancel != nil {
		allocCancel()
	}
}

// execAllocatorOptions builds the Chrome launch flags from configuration.
// The defaults are defined explicitly rather than relying solely on
// chromedp.DefaultExecAllocatorOptions, so CI behavior is predictable.
func execAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("enable-automation", true),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
		// Web Audio autoplay policies block many games until a user gesture;
		// a QA harness wants the game running immediately.
		chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
		chromedp.Flag("mute-audio", true),
	}

	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if cfg.DisableCache {
		opts = append(opts, chromedp.Flag("disable-application-cache", true))
	}
	if cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}

	// Additional flags from the config file's 'args' slice. Handles both
	// key=value arguments and bare boolean flags.
	for _, arg := range cfg.Args {
		key, value, found := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if found {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(key, true))
		}
	}
	return opts
}
