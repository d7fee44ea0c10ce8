package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/confdrift/confdrift/internal/toolcfg"
	"github.com/confdrift/confdrift/internal/tools"
)

var (
	profileAPIKey  string
	profileBaseURL string
	profileModel   string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage saved configuration profiles",
}

var profileSaveCmd = &cobra.Command{
	Use:   "save <tool> <name>",
	Short: "Save values as a named profile and make them active",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if profileAPIKey == "" || profileBaseURL == "" {
			return fmt.Errorf("--api-key and --base-url are required")
		}
		eng, err := newEngine()
		if err != nil {
			return err
		}
		v := toolcfg.Values{APIKey: profileAPIKey, BaseURL: profileBaseURL, Model: profileModel}
		if err := eng.SaveProfile(tools.ID(args[0]), args[1], v); err != nil {
			return err
		}
		fmt.Printf("Profile %q saved and activated for %s\n", args[1], args[0])
		return nil
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use <tool> <name>",
	Short: "Switch the active config to a saved profile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		if err := eng.ActivateProfile(tools.ID(args[0]), args[1]); err != nil {
			return err
		}
		fmt.Printf("Profile %q activated for %s\n", args[1], args[0])
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list <tool>",
	Short: "List saved profiles for a tool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		list, err := eng.ListProfiles(tools.ID(args[0]))
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No saved profiles")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tKEY\tBASE URL\tMODEL")
		for _, p := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, p.APIKeyPreview, p.BaseURL, p.Model)
		}
		return w.Flush()
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <tool> <name>",
	Short: "Delete a saved profile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		if err := eng.DeleteProfile(tools.ID(args[0]), args[1]); err != nil {
			return err
		}
		fmt.Printf("Profile %q deleted for %s\n", args[1], args[0])
		return nil
	},
}

func init() {
	profileSaveCmd.Flags().StringVar(&profileAPIKey, "api-key", "", "API key for the provider")
	profileSaveCmd.Flags().StringVar(&profileBaseURL, "base-url", "", "API base URL")
	profileSaveCmd.Flags().StringVar(&profileModel, "model", "", "model name (optional)")

	profileCmd.AddCommand(profileSaveCmd)
	profileCmd.AddCommand(profileUseCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileDeleteCmd)
}
