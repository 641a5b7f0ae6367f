package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// ShowOptions configure the show command.
type ShowOptions struct {
	Days  int
	Limit int
}

// Show prints recent observations as a table.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	observations, err := a.openStore()
	if err != nil {
		return err
	}

	recent := observations.RecentObservations(opts.Days)
	if len(recent) == 0 {
		fmt.Fprintln(os.Stdout, "no observations found")
		return nil
	}
	if opts.Limit > 0 && len(recent) > opts.Limit {
		recent = recent[:opts.Limit]
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time\tRate%\tTarget%\tSources\tAlert\tReport\tNotes")

	for _, obs := range recent {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%v\t%v\t%s\n",
			obs.Timestamp.Format(time.RFC3339),
			obs.Rate.StringFixed(3),
			obs.TargetRate.StringFixed(3),
			obs.Source,
			obs.AlertSent,
			obs.DailyReportSent,
			sanitizeInline(obs.Notes),
		)
	}

	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
