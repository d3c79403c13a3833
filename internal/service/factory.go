// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/playcheck-cli/api/schemas"
	"github.com/xkilldash9x/playcheck-cli/internal/actions"
	"github.com/xkilldash9x/playcheck-cli/internal/browser"
	"github.com/xkilldash9x/playcheck-cli/internal/config"
	"github.com/xkilldash9x/playcheck-cli/internal/oracle"
	"github.com/xkilldash9x/playcheck-cli/internal/runner"
	"github.com/xkilldash9x/playcheck-cli/internal/store"
)

// ComponentFactory defines the interface for creating the set of components
// needed for a test session. This abstraction is what makes the run command's
// logic testable.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger, extraSinks ...schemas.ProgressSink) (*Components, error)
}

// concreteFactory is the production implementation of the ComponentFactory.
type concreteFactory struct{}

// NewComponentFactory creates a new production-ready component factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{}
}

// Create handles the full dependency injection and initialization of session components.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger, extraSinks ...schemas.ProgressSink) (*Components, error) {
	components := &Components{
		eventsChan: make(chan schemas.ProgressEvent, 256),
		consumerWG: &sync.WaitGroup{},
	}

	// Ensure cleanup happens if initialization fails midway.
	var initializationErr error
	defer func() {
		if initializationErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(initializationErr))
			components.Shutdown()
		}
	}()

	// 1. Persistence (optional). A missing database URL disables it; the run
	// result is still returned and written to the output file.
	if url := cfg.Database().URL; url != "" {
		dbPool, err := pgxpool.New(ctx, url)
		if err != nil {
			initializationErr = fmt.Errorf("failed to create database connection pool: %w", err)
			return nil, initializationErr
		}
		components.DBPool = dbPool

		dbStore, err := store.New(ctx, dbPool, logger)
		if err != nil {
			initializationErr = fmt.Errorf("failed to initialize database store: %w", err)
			return nil, initializationErr
		}
		if err := dbStore.EnsureSchema(ctx); err != nil {
			initializationErr = fmt.Errorf("failed to prepare database schema: %w", err)
			return nil, initializationErr
		}
		components.Store = dbStore
		logger.Debug("Database store initialized.")
	} else {
		logger.Info("No database URL configured; results will not be persisted. Set PLAYCHECK_DATABASE_URL to enable persistence.")
	}

	// 2. Browser manager holds the Chrome process and the game tab.
	browserManager := browser.NewManager(cfg.Browser(), logger)
	if err := browserManager.Start(ctx); err != nil {
		initializationErr = fmt.Errorf("failed to launch browser: %w", err)
		return nil, initializationErr
	}
	components.Browser = browserManager
	logger.Debug("Browser manager initialized.")

	page := browserManager.Page()

	// 3. Action executor dispatches oracle suggestions as trusted input.
	executor := actions.NewExecutor(page, logger, cfg.Browser().ViewportWidth, cfg.Browser().ViewportHeight)

	// 4. Oracle. Without an API key the deterministic static oracle keeps the
	// session useful for smoke testing.
	var orc schemas.Oracle
	if cfg.Oracle().Enabled && cfg.Oracle().APIKey != "" {
		gemini, err := oracle.NewGemini(ctx, cfg.Oracle(), logger)
		if err != nil {
			initializationErr = fmt.Errorf("failed to initialize oracle: %w", err)
			return nil, initializationErr
		}
		orc = gemini
		logger.Debug("Gemini oracle initialized.", zap.String("model", cfg.Oracle().Model))
	} else {
		logger.Warn("AI oracle disabled or GEMINI_API_KEY not set; using static fallback suggestions.")
		orc = oracle.NewStatic(logger)
	}
	components.Oracle = orc

	// 5. Event consumer. The runner emits events inline, so they go through a
	// buffered channel and are logged (and fanned out) off the hot path.
	StartEventConsumer(ctx, components.consumerWG, components.eventsChan, logger, extraSinks...)
	logger.Debug("Event consumer started.")

	// 6. Runner.
	sink := channelSink(components.eventsChan)
	components.Runner = runner.New(page, orc, executor, cfg.Runner(), logger,
		runner.WithProgressSink(sink),
		runner.WithRecovery(browserManager.Relaunch),
	)
	logger.Info("All session components initialized successfully.")

	return components, nil
}

// channelSink adapts the buffered events channel to the ProgressSink
// interface. A full channel drops the event rather than stalling the run.
func channelSink(ch chan<- schemas.ProgressEvent) schemas.ProgressSink {
	return schemas.ProgressSinkFunc(func(ev schemas.ProgressEvent) {
		select {
		case ch <- ev:
		default:
		}
	})
}
