package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/insider-scan/internal/roster"
)

var rosterSourceURL string

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Manage the public-official affiliation roster",
}

var rosterUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Refresh the roster from the public legislator dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initScanner()
		if err != nil {
			return err
		}
		defer env.Close()

		sourceURL := rosterSourceURL
		if sourceURL == "" {
			sourceURL = cfg.Roster.SourceURL
		}
		n, err := roster.Update(cmd.Context(), env.Fetcher, sourceURL, cfg.Roster.Path)
		if err != nil {
			return err
		}

		fmt.Printf("wrote %d roster entries to %s\n", n, cfg.Roster.Path)
		return nil
	},
}

var rosterShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List the current roster entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := roster.Load(cfg.Roster.Path)
		if err != nil {
			return err
		}
		for _, e := range r.Entries() {
			fmt.Printf("%-30s %-6s %-8s %s\n", e.Name, e.State, e.Chamber, e.Party)
		}
		return nil
	},
}

func init() {
	rosterUpdateCmd.Flags().StringVar(&rosterSourceURL, "source-url", "", "legislator dataset URL (default the unitedstates project feed)")
	rosterCmd.AddCommand(rosterUpdateCmd)
	rosterCmd.AddCommand(rosterShowCmd)
	rootCmd.AddCommand(rosterCmd)
}
