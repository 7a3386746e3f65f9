package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/insider-scan/internal/model"
	"github.com/sells-group/insider-scan/internal/scan"
)

const dateFmt = "2006-01-02"

// openOutput returns the destination writer for a command's records. An
// empty path means stdout; the returned closer is a no-op in that case.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "create output file")
	}
	return f, f.Close, nil
}

func writeTrades(w io.Writer, format string, trades []model.StandardTrade) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(trades)
	case "csv":
		out, err := csvutil.Marshal(trades)
		if err != nil {
			return eris.Wrap(err, "encode csv")
		}
		_, err = w.Write(out)
		return err
	case "table":
		return printTradeTable(w, trades)
	default:
		return eris.Errorf("unknown output format %q", format)
	}
}

func printTradeTable(w io.Writer, trades []model.StandardTrade) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKER\tINSIDER\tROLE\tTYPE\tDATE\tSHARES\tPRICE\tVALUE\tCONF\tSOURCE")
	for _, t := range trades {
		date := ""
		if !t.TradeDate.IsZero() {
			date = t.TradeDate.Format(dateFmt)
		}
		name := t.InsiderName
		if t.Affiliated {
			name += " *"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.Ticker, name, t.InsiderRole, t.TradeType, date,
			t.Shares.String(), t.Price.StringFixed(2), t.Value.StringFixed(2),
			t.Confidence, t.Source,
		)
	}
	return tw.Flush()
}

func writeLegislative(w io.Writer, format string, trades []model.LegislativeTrade) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(trades)
	case "csv":
		out, err := csvutil.Marshal(trades)
		if err != nil {
			return eris.Wrap(err, "encode csv")
		}
		_, err = w.Write(out)
		return err
	case "table":
		return printLegislativeTable(w, trades)
	default:
		return eris.Errorf("unknown output format %q", format)
	}
}

func printLegislativeTable(w io.Writer, trades []model.LegislativeTrade) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OFFICIAL\tCHAMBER\tTICKER\tOWNER\tTYPE\tDATE\tAMOUNT\tSOURCE")
	for _, t := range trades {
		date := ""
		if !t.TradeDate.IsZero() {
			date = t.TradeDate.Format(dateFmt)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.OfficialName, t.Chamber, t.Ticker, t.Owner, t.TradeType,
			date, t.AmountRange, t.Source,
		)
	}
	return tw.Flush()
}

// printSummary writes the per-source scan accounting to stderr so it never
// mixes with record output on stdout.
func printSummary(summary *scan.Summary) {
	for _, s := range summary.Sources {
		line := fmt.Sprintf("%-12s %-8s %d records", s.Source, s.Status, s.Records)
		if s.Err != "" {
			line += "  (" + s.Err + ")"
		}
		fmt.Fprintln(os.Stderr, line)
	}
}
