package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"momentum-scanner/internal/storage"
)

// History prints recent scan runs.
func (a *App) History(ctx context.Context, opts HistoryOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show scan history")
	}
	if closeStore != nil {
		defer closeStore()
	}

	runs, err := store.ListRecentRuns(ctx, opts.Limit)
	if err != nil {
		return err
	}
	return printRuns(os.Stdout, runs)
}

func printRuns(out io.Writer, runs []storage.ScanRun) error {
	if len(runs) == 0 {
		fmt.Fprintln(out, "no scan runs found")
		return nil
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Finished (UTC)\tRun\tStatus\tDuration\tResults\tTop\tReport\tError")

	for _, run := range runs {
		top := ""
		if len(run.Results) > 0 {
			top = fmt.Sprintf("%s (%.2f)", run.Results[0].Symbol, run.Results[0].Oscillator)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			run.FinishedAt.UTC().Format(time.RFC3339),
			shortID(run.ID),
			run.Status,
			run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond),
			len(run.Results),
			top,
			run.ArtifactPath,
			sanitizeInline(run.Error),
		)
	}

	return writer.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
