// File: internal/service/components.go
package service

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/playcheck-cli/api/schemas"
	"github.com/xkilldash9x/playcheck-cli/internal/observability"
	"github.com/xkilldash9x/playcheck-cli/internal/runner"
)

// Components holds all the initialized services required for a test session.
// This struct centralizes the lifecycle management of session dependencies.
type Components struct {
	Runner  *runner.Runner
	Oracle  schemas.Oracle
	Store   schemas.Repository
	Browser BrowserManager
	DBPool  *pgxpool.Pool

	// eventsChan decouples the runner's synchronous event emission from the
	// consumer that logs and fans them out.
	eventsChan chan schemas.ProgressEvent

	// consumerWG ensures the event consumer has finished draining the channel.
	consumerWG *sync.WaitGroup
}

// BrowserManager is the lifecycle surface Components needs from the browser
// layer.
type BrowserManager interface {
	Shutdown(ctx context.Context) error
}

// RunSession executes one full test run and, when persistence is configured,
// saves the result. Persistence failure does not fail the run; the result is
// already in hand.
func (c *Components) RunSession(ctx context.Context, gameURL string, opts schemas.RunOptions) (*schemas.RunResult, error) {
	logger := observability.GetLogger()

	res, err := c.Runner.Run(ctx, gameURL, opts)
	if err != nil {
		return nil, err
	}

	if c.Store != nil {
		persistCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if saveErr := c.Store.SaveResult(persistCtx, res); saveErr != nil {
			logger.Error("Failed to persist run result.",
				zap.String("run_id", res.RunID), zap.Error(saveErr))
		} else {
			logger.Info("Run result persisted.", zap.String("run_id", res.RunID))
		}
	}
	return res, nil
}

// Shutdown gracefully closes all components, ensuring resources are released in the correct order.
func (c *Components) Shutdown() {
	logger := observability.GetLogger()
	logger.Debug("Beginning components shutdown sequence.")

	// 1. Close the events channel. This signals the consumer to drain and stop.
	if c.eventsChan != nil {
		close(c.eventsChan)
		c.eventsChan = nil
		logger.Debug("Events channel closed.")
	}

	// 2. Wait for the consumer to finish processing the drained channel.
	if c.consumerWG != nil {
		c.consumerWG.Wait()
		logger.Debug("Event consumer finished processing.")
	}

	// 3. Shut down the browser manager.
	if c.Browser != nil {
		// Use a separate context with a timeout for shutdown to ensure it
		// completes even if the main application context was canceled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := c.Browser.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Error during browser manager shutdown.", zap.Error(err))
		} else {
			logger.Debug("Browser manager shut down.")
		}
	}

	// 4. Close the database connection pool.
	if c.DBPool != nil {
		c.DBPool.Close()
		logger.Debug("Database connection pool closed.")
	}

	logger.Info("All session components shut down successfully.")
}
