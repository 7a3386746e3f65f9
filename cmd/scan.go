package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/insider-scan/internal/merge"
	"github.com/sells-group/insider-scan/internal/model"
	"github.com/sells-group/insider-scan/internal/scan"
)

var (
	scanFrom       string
	scanTo         string
	scanTypes      []string
	scanMinValue   string
	scanSources    []string
	scanAffiliated bool
	scanFormat     string
	scanOut        string
	scanSummary    bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [TICKER...]",
	Short: "Scan insider trades for one or more tickers",
	Long:  "Scrapes every enabled source for the given tickers, verifies records against EDGAR, reconciles duplicates across sources, and prints the merged result. With no arguments the configured watchlist is scanned.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		tickers := args
		if len(tickers) == 0 {
			tickers = cfg.Scan.Tickers
		}
		if len(tickers) == 0 {
			return eris.New("no tickers given and no watchlist configured")
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

		w, closeOut, err := openOutput(scanOut)
		if err != nil {
			return err
		}
		defer closeOut() //nolint:errcheck

		var all []model.StandardTrade
		for _, ticker := range tickers {
			records, summary, err := env.Scanner.ScanTicker(ctx, ticker, opts)
			if err != nil {
				zap.L().Error("scan failed",
					zap.String("ticker", ticker),
					zap.Error(err),
				)
			}
			if scanSummary {
				printSummary(summary)
			}
			all = append(all, records...)
			if ctx.Err() != nil {
				break
			}
		}
		merge.Sort(all)

		zap.L().Info("scan complete",
			zap.Int("tickers", len(tickers)),
			zap.Int("records", len(all)),
		)
		return writeTrades(w, scanFormat, all)
	},
}

// buildScanOptions translates the shared scan flags into scanner options.
func buildScanOptions() (scan.Options, error) {
	var opts scan.Options

	dr, err := parseRange(scanFrom, scanTo)
	if err != nil {
		return opts, err
	}
	opts.Range = dr
	opts.Filters.Range = dr
	opts.Filters.AffiliatedOnly = scanAffiliated

	for _, t := range scanTypes {
		tt, err := parseTradeType(t)
		if err != nil {
			return opts, err
		}
		opts.Filters.Types = append(opts.Filters.Types, tt)
	}
	for _, s := range scanSources {
		src, err := parseSource(s)
		if err != nil {
			return opts, err
		}
		opts.Sources = append(opts.Sources, src)
	}
	if scanMinValue != "" {
		v, err := decimal.NewFromString(scanMinValue)
		if err != nil {
			return opts, eris.Wrapf(err, "invalid --min-value %q", scanMinValue)
		}
		opts.Filters.MinValue = v
	}
	return opts, nil
}

func parseRange(from, to string) (model.DateRange, error) {
	var dr model.DateRange
	if from != "" {
		d, err := time.Parse(dateFmt, from)
		if err != nil {
			return dr, eris.Wrapf(err, "invalid --from %q", from)
		}
		dr.From = d
	}
	if to != "" {
		d, err := time.Parse(dateFmt, to)
		if err != nil {
			return dr, eris.Wrapf(err, "invalid --to %q", to)
		}
		dr.To = d
	}
	return dr, nil
}

func parseTradeType(s string) (model.TradeType, error) {
	switch s {
	case "buy":
		return model.TradeBuy, nil
	case "sell":
		return model.TradeSell, nil
	case "exercise":
		return model.TradeExercise, nil
	case "other":
		return model.TradeOther, nil
	}
	return "", eris.Errorf("unknown trade type %q (want buy, sell, exercise, or other)", s)
}

func parseSource(s string) (model.Source, error) {
	for _, src := range model.DefaultSourcePriority {
		if s == string(src) {
			return src, nil
		}
	}
	return "", eris.Errorf("unknown source %q", s)
}

func init() {
	scanCmd.Flags().StringVar(&scanFrom, "from", "", "earliest trade date (YYYY-MM-DD)")
	scanCmd.Flags().StringVar(&scanTo, "to", "", "latest trade date (YYYY-MM-DD)")
	scanCmd.Flags().StringSliceVar(&scanTypes, "type", nil, "trade types to keep (buy, sell, exercise, other)")
	scanCmd.Flags().StringVar(&scanMinValue, "min-value", "", "minimum absolute trade value in dollars")
	scanCmd.Flags().StringSliceVar(&scanSources, "source", nil, "sources to scan (default all enabled)")
	scanCmd.Flags().BoolVar(&scanAffiliated, "affiliated", false, "only trades by covered public officials")
	scanCmd.Flags().StringVar(&scanFormat, "format", "table", "output format (table, json, csv)")
	scanCmd.Flags().StringVar(&scanOut, "out", "", "write records to file instead of stdout")
	scanCmd.Flags().BoolVar(&scanSummary, "summary", false, "print per-source accounting to stderr")
	rootCmd.AddCommand(scanCmd)
}
