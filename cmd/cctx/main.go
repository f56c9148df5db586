package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/voyantlabs/codectx/internal/config"
	"github.com/voyantlabs/codectx/internal/logging"
	"github.com/voyantlabs/codectx/internal/service"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile string
	verbose bool
	logger  *logrus.Logger
	cfg     *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cctx",
	Short: "codectx - ranked code context for coding agents",
	Long: `codectx indexes repositories into a hybrid vector/graph context store and
serves ranked, token-budgeted code context to editors and coding agents.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Initialize logger
		logger = logrus.New()
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		} else {
			logger.SetLevel(logrus.InfoLevel)
		}

		// Load configuration
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			logger.WithError(err).Warn("Failed to load config, using defaults")
			cfg = config.Default()
		}

		// Component loggers inside the service share this handler
		level := parseLogLevel(cfg.Logging.Level)
		if verbose {
			level = logging.DEBUG
		}
		if err := logging.Initialize(logging.Config{
			Level:      level,
			OutputFile: cfg.Logging.File,
			JSONFormat: cfg.Logging.JSON,
		}); err != nil {
			logger.WithError(err).Warn("Failed to initialize structured logging")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .codectx/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Set custom version template
	rootCmd.SetVersionTemplate(`codectx {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	// Add subcommands
	rootCmd.AddCommand(repoCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(retrieveCmd)
	rootCmd.AddCommand(promptCmd)
	rootCmd.AddCommand(patchCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}

// newService wires the full dependency tree. Commands that only read
// configuration skip this and stay cheap.
func newService(ctx context.Context, vctx config.ValidationContext) (*service.Service, error) {
	if result := cfg.Validate(vctx); result.HasErrors() {
		return nil, fmt.Errorf("%s", result.Error())
	}

	svc, err := service.Bootstrap(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize codectx: %w", err)
	}
	return svc, nil
}

func parseLogLevel(level string) logging.Level {
	switch level {
	case "debug":
		return logging.DEBUG
	case "warn":
		return logging.WARN
	case "error":
		return logging.ERROR
	default:
		return logging.INFO
	}
}
