package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/confdrift/confdrift/internal/api"
	"github.com/confdrift/confdrift/internal/engine"
	"github.com/confdrift/confdrift/internal/logging"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	dataDirFlag  string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "confdrift",
	Short: "confdrift - config profile store and drift detection for AI coding tools",
	Long: `confdrift manages named configuration profiles for Claude Code, Codex and
Gemini CLI, and watches their config files for external edits.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logging.Config{
			Format:    "auto",
			Level:     logLevelFlag,
			Component: "confdrift",
		})
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("confdrift %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "data directory (default $CONFDRIFT_DATA_DIR or ~/.confdrift)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(logsCmd)
}

// newEngine builds and initializes an engine for a CLI invocation.
func newEngine() (*engine.Engine, error) {
	dataDir := dataDirFlag
	if dataDir == "" {
		dataDir = engine.DefaultDataDir()
	}
	eng := engine.New(dataDir)
	if err := eng.Init(); err != nil {
		return nil, err
	}
	api.Version = Version
	return eng, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
