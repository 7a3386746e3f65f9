package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/insider-scan/internal/resilience"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve TICKER",
	Short: "Resolve a ticker to its SEC CIK number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initScanner()
		if err != nil {
			return err
		}
		defer env.Close()

		id, err := env.Edgar.Resolve(cmd.Context(), args[0])
		if err != nil {
			if resilience.IsNotFound(err) {
				return fmt.Errorf("no EDGAR identity for ticker %q", args[0])
			}
			return err
		}

		fmt.Printf("%s\t%s\t%s\n", id.Ticker, id.CIK, id.Title)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
