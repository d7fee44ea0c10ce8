package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/confdrift/confdrift/internal/changelog"
	"github.com/confdrift/confdrift/internal/tools"
)

var (
	logsPage     int
	logsPageSize int
	logsClear    bool
	logsTool     string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show or clear the external-change log",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		if logsClear {
			if err := eng.ClearChangeLogs(tools.ID(logsTool)); err != nil {
				return err
			}
			if logsTool == "" {
				fmt.Println("Change log cleared")
			} else {
				fmt.Printf("Change log cleared for %s\n", logsTool)
			}
			return nil
		}

		if logsTool != "" {
			records, err := eng.RecentChanges(tools.ID(logsTool), logsPageSize)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Printf("No change records for %s\n", logsTool)
				return nil
			}
			if err := printRecords(records); err != nil {
				return err
			}
			fmt.Printf("\n%d most recent records for %s\n", len(records), logsTool)
			return nil
		}

		records, total, err := eng.GetChangeLogPage(logsPage, logsPageSize)
		if err != nil {
			return err
		}
		if total == 0 {
			fmt.Println("No change records")
			return nil
		}
		if err := printRecords(records); err != nil {
			return err
		}
		fmt.Printf("\nPage %d (%d records total)\n", logsPage, total)
		return nil
	},
}

func printRecords(records []changelog.Record) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTOOL\tACTION\tSENSITIVE\tFIELDS")
	for _, rec := range records {
		action := rec.Action
		if action == "" {
			action = "pending"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n",
			rec.Timestamp.Local().Format("2006-01-02 15:04:05"),
			rec.Tool, action, rec.IsSensitive,
			strings.Join(rec.ChangedFields, ", "))
	}
	return w.Flush()
}

func init() {
	logsCmd.Flags().IntVar(&logsPage, "page", 1, "page number")
	logsCmd.Flags().IntVar(&logsPageSize, "page-size", 20, "records per page")
	logsCmd.Flags().BoolVar(&logsClear, "clear", false, "clear records instead of listing")
	logsCmd.Flags().StringVar(&logsTool, "tool", "", "limit listing or --clear to one tool")
}
