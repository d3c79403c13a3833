package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/playcheck-cli/api/schemas"
	"github.com/xkilldash9x/playcheck-cli/internal/config"
	"github.com/xkilldash9x/playcheck-cli/internal/observability"
	"github.com/xkilldash9x/playcheck-cli/internal/service"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd(factory service.ComponentFactory) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [game-url]",
		Short: "Runs one automated QA session against a browser game",
		Long: `Loads the game URL in a headless browser, drives it with AI-suggested
interactions, watches for state changes, and produces a structured verdict
with screenshots and an action log.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use the context passed from Execute (signal-aware).
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg := appConfig
			applyRunFlagOverrides(cmd, cfg)

			gameURL := normalizeGameURL(args[0])
			output, _ := cmd.Flags().GetString("output")
			format, _ := cmd.Flags().GetString("format")
			cfg.SetRunConfig(config.RunConfig{GameURL: gameURL, Output: output, Format: format})

			logger.Info("Starting game test run",
				zap.String("game_url", gameURL),
				zap.Int("max_iterations", cfg.Runner().MaxIterations),
				zap.Bool("oracle_enabled", cfg.Oracle().Enabled),
			)

			res, err := runGame(ctx, logger, cfg, gameURL, factory)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Warn("Run aborted gracefully")
					return fmt.Errorf("run aborted by user signal")
				}
				return err
			}

			if output != "" {
				if err := writeResult(res, output, format, logger); err != nil {
					return err
				}
			}

			printSummary(cmd, res)
			return nil
		},
	}

	// Reporting flags
	runCmd.Flags().StringP("output", "o", "", "Output file path for the run result. If unset, only the summary is printed.")
	runCmd.Flags().StringP("format", "f", "json", "Format for the output file (currently 'json').")

	// Run configuration override flags.
	runCmd.Flags().Duration("timeout", 0, "Navigation timeout for the game page. (Overrides config/env)")
	runCmd.Flags().Duration("run-timeout", 0, "Overall deadline for the whole session. (Overrides config/env)")
	runCmd.Flags().Int("max-iterations", 0, "Maximum analyze-act iterations. (Overrides config/env)")
	runCmd.Flags().Int("snapshot-budget", 0, "Maximum number of snapshots to capture. (Overrides config/env)")
	runCmd.Flags().Bool("headless", true, "Run the browser headless. (Overrides config/env)")
	runCmd.Flags().String("model", "", "Oracle model name. (Overrides config/env)")
	runCmd.Flags().Bool("no-ai", false, "Disable the AI oracle and use deterministic fallback suggestions.")

	return runCmd
}

// applyRunFlagOverrides copies explicitly set flags onto the config, keeping
// the flag > env > file > default precedence.
func applyRunFlagOverrides(cmd *cobra.Command, cfg config.Interface) {
	flags := cmd.Flags()

	if flags.Changed("timeout") {
		if d, err := flags.GetDuration("timeout"); err == nil && d > 0 {
			cfg.SetRunnerNavigationTimeout(d)
		}
	}
	if flags.Changed("run-timeout") {
		if d, err := flags.GetDuration("run-timeout"); err == nil && d > 0 {
			cfg.SetRunnerMaxRunDuration(d)
		}
	}
	if flags.Changed("max-iterations") {
		if n, err := flags.GetInt("max-iterations"); err == nil && n > 0 {
			cfg.SetRunnerMaxIterations(n)
		}
	}
	if flags.Changed("snapshot-budget") {
		if n, err := flags.GetInt("snapshot-budget"); err == nil && n > 0 {
			cfg.SetRunnerSnapshotBudget(n)
		}
	}
	if flags.Changed("headless") {
		if b, err := flags.GetBool("headless"); err == nil {
			cfg.SetBrowserHeadless(b)
		}
	}
	if flags.Changed("model") {
		if m, err := flags.GetString("model"); err == nil && m != "" {
			cfg.SetOracleModel(m)
		}
	}
	if flags.Changed("no-ai") {
		if b, err := flags.GetBool("no-ai"); err == nil && b {
			cfg.SetOracleEnabled(false)
		}
	}
}

// normalizeGameURL ensures the target has a scheme so navigation does not
// silently resolve relative to about:blank.
func normalizeGameURL(target string) string {
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		return "https://" + target
	}
	return target
}

// runGame wires the session components and executes one full run.
func runGame(ctx context.Context, logger *zap.Logger, cfg config.Interface, gameURL string, factory service.ComponentFactory) (*schemas.RunResult, error) {
	components, err := factory.Create(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session components: %w", err)
	}
	defer components.Shutdown()

	res, err := components.RunSession(ctx, gameURL, schemas.RunOptions{})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// writeResult serializes the run result to the output path.
func writeResult(res *schemas.RunResult, path, format string, logger *zap.Logger) error {
	if format != "" && !strings.EqualFold(format, "json") {
		logger.Warn("Unsupported output format, falling back to json", zap.String("format", format))
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize run result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run result: %w", err)
	}

	logger.Info("Run result written.", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}

// printSummary writes the human-facing closing lines to the command's stdout.
func printSummary(cmd *cobra.Command, res *schemas.RunResult) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "\nRun Complete. Run ID: %s\n", res.RunID)
	fmt.Fprintf(out, "Outcome: %s\n", res.Outcome)
	if res.FailureReason != "" {
		fmt.Fprintf(out, "Reason: %s\n", res.FailureReason)
	}
	fmt.Fprintf(out, "Actions: %d  Snapshots: %d  Duration: %s\n",
		len(res.ActionLog), len(res.Snapshots), res.Duration.Round(time.Millisecond))
	if res.Evaluation != nil {
		fmt.Fprintf(out, "Quality: %d/100 (grade %s, confidence %d%%)\n",
			res.Evaluation.PlayabilityScore, res.Evaluation.Grade, res.Evaluation.Confidence)
	}
}
