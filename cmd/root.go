// -- cmd/root.go --
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/playcheck-cli/internal/config"
	"github.com/xkilldash9x/playcheck-cli/internal/observability"
	"github.com/xkilldash9x/playcheck-cli/internal/service"
)

var (
	cfgFile string

	// appConfig is the fully resolved configuration, built in
	// PersistentPreRunE and consumed by the subcommands.
	appConfig config.Interface
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "playcheck",
	Short: "Playcheck is an AI-driven QA tester for browser games.",
	// Version is dynamically set at build time. See cmd/version.go.
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// This function runs before any command, setting up config and logging.
		if err := initializeConfig(); err != nil {
			return err
		}

		cfg, err := config.NewConfigFromViper(viper.GetViper())
		if err != nil {
			// Initialize a fallback logger so the failure is still reported.
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "playcheck-cli"})
			return err
		}
		appConfig = cfg

		observability.InitializeLogger(cfg.Logger())
		observability.GetLogger().Info("Starting Playcheck-CLI", zap.String("version", Version))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	// Make the whole command tree signal-aware so Ctrl-C lands as a context
	// cancellation instead of killing the browser process mid-capture.
	ctx, stop := signal.NotifyContext(rootCmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// GetLogger always returns a usable logger, a no-op one at worst;
		// cobra has already printed the error to stderr.
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newRunCmd(service.NewComponentFactory()))
	rootCmd.AddCommand(newResultCmd())
}

// initializeConfig reads in config file and ENV variables if set.
func initializeConfig() error {
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("PLAYCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars
	}
	return nil
}
