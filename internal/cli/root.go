// Package cli implements the livecheck command line
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrCodeEU/LiveCheck/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is the application version
const Version = "0.3.0"

var (
	configPath string
	verbose    bool

	// cfg is loaded before any subcommand runs
	cfg    *config.Config
	logger = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:          "livecheck",
	Short:        "Challenge-response face liveness verification",
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			logger.Warnf("Failed to load config from %s: %v", configPath, err)
			logger.Info("Using default configuration")
			loaded = config.DefaultConfig()
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = loaded

		level, err := logrus.ParseLevel(cfg.Logging.Level)
		if err != nil {
			logger.Warnf("Unknown log level %q, using info", cfg.Logging.Level)
			level = logrus.InfoLevel
		}
		if verbose {
			level = logrus.DebugLevel
		}
		logger.SetLevel(level)

		return nil
	},
}

// Execute runs the command tree until it finishes or the process is
// interrupted
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: search /etc/livecheck, ~/.livecheck, .)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")
}
