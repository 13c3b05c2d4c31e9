// Package cli provides the command-line interface for racm-int.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/racmlabs/racm-int/internal/logging"
	"github.com/racmlabs/racm-int/internal/version"
)

var (
	// Global flags
	cfgFile     string
	apiToken    string
	tokenFile   string
	apiBaseURL  string
	verbose     bool
	debug       bool
	logFile     string
	sessionFile string

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "racm-int",
		Short: "RACM Interlink - client for the RACM document analysis service",
		Long: `RACM Interlink ` + version.Version + ` - Built: ` + version.BuildTime + `
Submits SOP documents for Risk and Control Matrix extraction, watches
analysis jobs to completion, and works with the extracted entries:
filter, sort, edit, save back, and export.

A single job is current at a time. Its state (job, results, pending
edits, view settings) persists in ~/.racm/session.json between
invocations, so you can submit, come back later, and keep working.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if logFile != "" {
				logger = logging.NewFileLogger(logFile)
			} else {
				logger = logging.NewLogger()
			}
			if verbose || debug {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&apiToken, "api-token", "", "API bearer token (overrides all other sources)")
	rootCmd.PersistentFlags().StringVar(&tokenFile, "token-file", "", "Path to file containing the API token")
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api-url", "", "RACM API base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file (rotated)")
	rootCmd.PersistentFlags().StringVar(&sessionFile, "session-file", "", "Session file path (default ~/.racm/session.json)")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newHealthCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newJobsCmd())
	rootCmd.AddCommand(newResultsCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
// This context is cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}
