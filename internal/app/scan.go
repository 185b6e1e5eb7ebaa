package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"momentum-scanner/internal/status"
)

// ScanOnce runs one scan in the foreground and prints the ranked results.
func (a *App) ScanOnce(ctx context.Context, opts ScanOptions) error {
	return a.scanOnce(ctx, opts, os.Stdout)
}

func (a *App) scanOnce(ctx context.Context, opts ScanOptions, out io.Writer) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	p, err := a.newPipeline(store)
	if err != nil {
		return err
	}
	if !p.state.TrySetRunning() {
		return errors.New("scan state unexpectedly busy")
	}
	p.runner.Run(ctx)

	snap := p.state.Snapshot()
	if snap.LastError != "" {
		return fmt.Errorf("scan failed: %s", snap.LastError)
	}

	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	return printResults(out, snap)
}

func printResults(out io.Writer, snap status.JobStatus) error {
	if len(snap.Results) == 0 {
		fmt.Fprintln(out, "no instrument had enough history to score")
	} else {
		writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "#\tAsset\tSymbol\tPrice\tTrend\tRSI\tMA50")
		for i, rec := range snap.Results {
			fmt.Fprintf(writer, "%d\t%s\t%s\t%.2f\t%s\t%.2f\t%.2f\n",
				i+1, rec.Asset, rec.Symbol, rec.Price, rec.Trend.Label(), rec.Oscillator, rec.MovingAverage)
		}
		if err := writer.Flush(); err != nil {
			return err
		}
	}
	if snap.ArtifactPath != nil {
		fmt.Fprintf(out, "\nreport: %s\n", *snap.ArtifactPath)
	}
	if snap.ChartPath != nil {
		fmt.Fprintf(out, "chart:  %s\n", *snap.ChartPath)
	}
	return nil
}
