package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	latestCount   int
	latestSince   string
	latestFormat  string
	latestOut     string
	latestSummary bool
)

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show the latest insider filings site-wide",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var since time.Time
		if latestSince != "" {
			d, err := time.Parse(dateFmt, latestSince)
			if err != nil {
				return err
			}
			since = d
		}

		opts, err := buildScanOptions()
		if err != nil {
			return err
		}

		env, err := initScanner()
		if err != nil {
			return err
		}
		defer env.Close()

		records, summary, err := env.Scanner.ScanLatest(ctx, latestCount, since, opts)
		if err != nil {
			zap.L().Error("latest scan failed", zap.Error(err))
		}
		if latestSummary {
			printSummary(summary)
		}

		w, closeOut, err := openOutput(latestOut)
		if err != nil {
			return err
		}
		defer closeOut() //nolint:errcheck

		return writeTrades(w, latestFormat, records)
	},
}

func init() {
	latestCmd.Flags().IntVar(&latestCount, "count", 100, "number of filings to fetch")
	latestCmd.Flags().StringVar(&latestSince, "since", "", "ignore filings before this date (YYYY-MM-DD)")
	latestCmd.Flags().StringVar(&latestFormat, "format", "table", "output format (table, json, csv)")
	latestCmd.Flags().StringVar(&latestOut, "out", "", "write records to file instead of stdout")
	latestCmd.Flags().BoolVar(&latestSummary, "summary", false, "print per-source accounting to stderr")
	rootCmd.AddCommand(latestCmd)
}
