package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/marshallshelly/fenceorders/cmd/fenceorders/output"
	"github.com/marshallshelly/fenceorders/internal/config"
	"github.com/marshallshelly/fenceorders/internal/logging"
)

var version = "dev"

var (
	// Global flags
	configFile string
	jsonOutput bool

	// Resolved once per invocation by the root pre-run hook.
	cfg     *config.Config
	logger  *zap.Logger
	printer *output.Printer
)

// flagKeys maps command-line flags onto configuration keys. A flag only
// wins over the environment and the config file when it is set explicitly.
var flagKeys = map[string]string{
	"db":         config.KeyDatabaseURL,
	"log-level":  config.KeyLogLevel,
	"log-format": config.KeyLogFormat,
	"addr":       config.KeyHTTPAddr,
}

var rootCmd = &cobra.Command{
	Use:   "fenceorders",
	Short: "Order management backend for fence and gate installations",
	Long: `fenceorders serves the order management API for a fencing and gate
business: accounts and roles, the product and job catalog, customer orders,
documents and comments.

Configuration is read from flags, FENCE_* environment variables, a .env file
in the working directory and an optional config file, in that order.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("db", "", "Database connection URL")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (json or console)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

func setup(cmd *cobra.Command) error {
	v := viper.New()
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("failed to bind --%s: %w", name, err)
			}
		}
	}
	if err := config.Prepare(v, configFile); err != nil {
		return err
	}
	cfg = config.FromViper(v)

	l, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	logger = l
	printer = output.New(cmd.OutOrStdout(), jsonOutput)
	return nil
}
