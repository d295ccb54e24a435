package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"taigent/internal/config"
	"taigent/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Loaded in PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "taigent",
	Short: "taigent - a conversational assistant for Taiga",
	Long: `taigent lets you manage Taiga projects, epics and user stories in plain
language. A language model decides which Taiga operations to run; taigent runs
them and feeds the results back until the model has an answer.

Run without arguments to start the interactive chat.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		return initLogging(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

// initLogging configures the category loggers. --verbose switches to a debug
// production logger on stderr.
func initLogging(cmd *cobra.Command) error {
	if verbose {
		zc := zap.NewProductionConfig()
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		if cfg.Logging.File != "" {
			zc.OutputPaths = []string{cfg.Logging.File}
		}
		logger, err := zc.Build(zap.AddCallerSkip(1))
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.Use(logger, cfg.Logging.Categories)
		return nil
	}

	opts := cfg.Logging.Options()
	// The chat REPL shares the terminal with the logs.
	if isChat(cmd) && opts.File == "" {
		opts.Level = "warn"
	}
	if err := logging.Initialize(opts); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func isChat(cmd *cobra.Command) bool {
	return cmd == rootCmd || cmd == chatCmd
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "Path to the config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(transcriptsCmd)
}

// errReported makes the process exit non-zero after a command already
// printed its failure.
var errReported = errors.New("error already reported")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
