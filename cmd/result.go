// File: cmd/result.go
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/playcheck-cli/api/schemas"
	"github.com/xkilldash9x/playcheck-cli/internal/config"
	"github.com/xkilldash9x/playcheck-cli/internal/observability"
	"github.com/xkilldash9x/playcheck-cli/internal/store"
)

// repositoryProvider defines an interface for components that can open the
// run repository. This abstraction allows tests to inject a mock repository
// instead of a live database connection.
type repositoryProvider interface {
	// Create initializes and returns a schemas.Repository, a cleanup function
	// to release resources, and an error if the creation fails.
	Create(ctx context.Context, cfg config.Interface) (schemas.Repository, func(), error)
}

// defaultRepositoryProvider is the concrete implementation used in production.
type defaultRepositoryProvider struct{}

// NewRepositoryProvider creates the production repository provider.
func NewRepositoryProvider() repositoryProvider {
	return &defaultRepositoryProvider{}
}

// Create connects to PostgreSQL, initializes the store, and returns it along
// with a cleanup function that closes the connection pool.
func (p *defaultRepositoryProvider) Create(ctx context.Context, cfg config.Interface) (schemas.Repository, func(), error) {
	logger := observability.GetLogger()
	if cfg.Database().URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (PLAYCHECK_DATABASE_URL)")
	}

	pool, err := pgxpool.New(ctx, cfg.Database().URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize store service: %w", err)
	}

	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed (via result cleanup).")
	}
	return repo, cleanup, nil
}

// newResultCmd creates and configures the `result` command.
func newResultCmd() *cobra.Command {
	return newResultCmdWithProvider(NewRepositoryProvider())
}

func newResultCmdWithProvider(provider repositoryProvider) *cobra.Command {
	var runID string
	var outputPath string
	var list bool
	var limit int

	resultCmd := &cobra.Command{
		Use:   "result",
		Short: "Fetch the stored result of a completed run",
		Long: `Loads a previously persisted run result from the database, including its
action log and snapshot metadata, and prints it as JSON. With --list, prints
a summary of the most recent runs instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			if list {
				return runResultList(ctx, logger, appConfig, limit, provider, cmd.OutOrStdout())
			}
			if runID == "" {
				return fmt.Errorf("either --run-id or --list is required")
			}
			return runResult(ctx, logger, appConfig, runID, outputPath, provider)
		},
	}

	resultCmd.Flags().StringVar(&runID, "run-id", "", "The ID of the run to fetch")
	resultCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path. If unset, the result is printed to stdout.")
	resultCmd.Flags().BoolVar(&list, "list", false, "List recent runs instead of fetching one")
	resultCmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")

	return resultCmd
}

// runResult contains the core, testable logic for fetching a stored run.
func runResult(
	ctx context.Context,
	logger *zap.Logger,
	cfg config.Interface,
	runID, outputPath string,
	provider repositoryProvider,
) error {
	logger.Info("Fetching stored run result", zap.String("run_id", runID))

	repo, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	res, err := repo.GetResult(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize run result: %w", err)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, data, 0o644); err != nil {
			return fmt.Errorf("failed to write run result: %w", err)
		}
		logger.Info("Run result written to file", zap.String("path", outputPath))
		return nil
	}

	fmt.Fprintln(os.Stdout, string(data))
	return nil
}

// runResultList prints summaries of the most recent stored runs.
func runResultList(
	ctx context.Context,
	logger *zap.Logger,
	cfg config.Interface,
	limit int,
	provider repositoryProvider,
	out io.Writer,
) error {
	repo, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	summaries, err := repo.ListResults(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(out, "No stored runs.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSTARTED\tOUTCOME\tDURATION\tGAME URL")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			s.RunID,
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			s.Outcome,
			s.Duration.Round(time.Second),
			s.GameURL,
		)
	}
	return w.Flush()
}
