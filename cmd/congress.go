package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/insider-scan/internal/model"
)

var (
	congressChambers []string
	congressFrom     string
	congressTo       string
	congressFormat   string
	congressOut      string
	congressSummary  bool
)

var congressCmd = &cobra.Command{
	Use:   "congress [OFFICIAL]",
	Short: "Scan congressional trading disclosures",
	Long:  "Scrapes the House and Senate financial disclosure systems for periodic transaction reports. With an official's name only that member's filings are returned; with no argument every filing in the date range is returned.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		official := ""
		if len(args) == 1 {
			official = args[0]
		}

		dr, err := parseRange(congressFrom, congressTo)
		if err != nil {
			return err
		}

		var chambers []model.Chamber
		for _, c := range congressChambers {
			switch c {
			case "house":
				chambers = append(chambers, model.ChamberHouse)
			case "senate":
				chambers = append(chambers, model.ChamberSenate)
			default:
				return eris.Errorf("unknown chamber %q (want house or senate)", c)
			}
		}

		env, err := initScanner()
		if err != nil {
			return err
		}
		defer env.Close()

		records, summary, err := env.Scanner.ScanCongress(ctx, official, dr, chambers)
		if err != nil {
			zap.L().Error("congress scan failed", zap.Error(err))
		}
		if congressSummary {
			printSummary(summary)
		}

		w, closeOut, err := openOutput(congressOut)
		if err != nil {
			return err
		}
		defer closeOut() //nolint:errcheck

		return writeLegislative(w, congressFormat, records)
	},
}

func init() {
	congressCmd.Flags().StringSliceVar(&congressChambers, "chamber", nil, "chambers to scan (house, senate; default both)")
	congressCmd.Flags().StringVar(&congressFrom, "from", "", "earliest filing date (YYYY-MM-DD)")
	congressCmd.Flags().StringVar(&congressTo, "to", "", "latest filing date (YYYY-MM-DD)")
	congressCmd.Flags().StringVar(&congressFormat, "format", "table", "output format (table, json, csv)")
	congressCmd.Flags().StringVar(&congressOut, "out", "", "write records to file instead of stdout")
	congressCmd.Flags().BoolVar(&congressSummary, "summary", false, "print per-source accounting to stderr")
	rootCmd.AddCommand(congressCmd)
}
