package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/confdrift/confdrift/internal/tools"
	"github.com/confdrift/confdrift/internal/watch"
)

var (
	watchEnabled  bool
	watchMode     string
	watchInterval int
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Inspect and resolve external config changes",
}

var watchStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the watch configuration and pending changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		cfg, err := eng.GetWatchConfig()
		if err != nil {
			return err
		}
		fmt.Printf("Enabled:  %v\n", cfg.Enabled)
		fmt.Printf("Mode:     %s\n", cfg.Mode)
		fmt.Printf("Interval: %s\n", cfg.ScanInterval())
		for _, t := range eng.Tools() {
			if pending := eng.PendingChange(t.ID); pending != nil {
				fmt.Printf("\n%s has a pending external change (%d fields, sensitive=%v):\n",
					t.ID, len(pending.ChangedFields), pending.IsSensitive)
				for _, fc := range pending.ChangedFields {
					fmt.Printf("  %s %s\n", fc.Kind, fc.Path)
				}
			}
		}
		return nil
	},
}

var watchConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Update the watch configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		cfg, err := eng.GetWatchConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("enabled") {
			cfg.Enabled = watchEnabled
		}
		if cmd.Flags().Changed("mode") {
			mode := watch.Mode(strings.ToLower(watchMode))
			if mode != watch.ModeDefault && mode != watch.ModeFull {
				return fmt.Errorf("mode must be %q or %q", watch.ModeDefault, watch.ModeFull)
			}
			cfg.Mode = mode
		}
		if cmd.Flags().Changed("interval") {
			cfg.ScanIntervalSec = watchInterval
		}
		if err := eng.UpdateWatchConfig(cfg); err != nil {
			return err
		}
		fmt.Println("Watch configuration updated")
		return nil
	},
}

var watchScanCmd = &cobra.Command{
	Use:   "scan <tool>",
	Short: "Run one drift scan for a tool now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		change, err := eng.ScanOnce(tools.ID(args[0]))
		if err != nil {
			return err
		}
		if change == nil {
			fmt.Println("No external changes")
			return nil
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(change)
	},
}

var watchAllowCmd = &cobra.Command{
	Use:   "allow <tool>",
	Short: "Accept the pending external change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		if err := eng.Allow(tools.ID(args[0])); err != nil {
			return err
		}
		fmt.Printf("External change allowed for %s\n", args[0])
		return nil
	},
}

var watchBlockCmd = &cobra.Command{
	Use:   "block <tool>",
	Short: "Reject the pending external change and restore managed fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		if err := eng.Block(tools.ID(args[0])); err != nil {
			return err
		}
		fmt.Printf("External change blocked for %s\n", args[0])
		return nil
	},
}

func init() {
	watchConfigCmd.Flags().BoolVar(&watchEnabled, "enabled", true, "enable or disable the watcher")
	watchConfigCmd.Flags().StringVar(&watchMode, "mode", "", "watch mode (default or full)")
	watchConfigCmd.Flags().IntVar(&watchInterval, "interval", 0, "scan interval in seconds")

	watchCmd.AddCommand(watchStatusCmd)
	watchCmd.AddCommand(watchConfigCmd)
	watchCmd.AddCommand(watchScanCmd)
	watchCmd.AddCommand(watchAllowCmd)
	watchCmd.AddCommand(watchBlockCmd)
}
