package app

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Status prints the configuration summary, the live aggregated rate, and
// the store summary.
func (a *App) Status(ctx context.Context) error {
	fmt.Fprintln(os.Stdout, "=== Mortgage Rate Watcher Status ===")
	fmt.Fprintf(os.Stdout, "Target Rate: %.3f%%\n", a.Config.Alert.TargetRate)
	fmt.Fprintf(os.Stdout, "State: %s\n", a.Config.Alert.State)
	fmt.Fprintf(os.Stdout, "Notification Method: %s\n", a.Config.Notification.Method)
	fmt.Fprintf(os.Stdout, "Daily Report: %v\n", a.Config.Alert.DailyReport)
	fmt.Fprintf(os.Stdout, "Rate Sources: %s\n", strings.Join(a.Config.Sources.Preferred, ", "))

	svc, closer, err := a.newService(ctx)
	if err != nil {
		return err
	}
	defer closer()

	result, err := svc.CurrentRate(ctx)
	if err != nil {
		fmt.Fprintln(os.Stdout, "\nCould not retrieve current rate")
	} else {
		fmt.Fprintf(os.Stdout, "\nCurrent Rate: %s%%\n", result.AggregatedRate.StringFixed(3))
		fmt.Fprintf(os.Stdout, "Confidence: %s\n", result.Confidence)
		fmt.Fprintf(os.Stdout, "Sources: %s\n", strings.Join(result.SuccessfulSources, ", "))
	}

	observations, err := a.openStore()
	if err != nil {
		return err
	}
	meta, err := observations.Metadata()
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "\nData Summary:")
	fmt.Fprintf(os.Stdout, "- Total Records: %d\n", meta.TotalRecords)
	if meta.LatestRate != nil {
		fmt.Fprintf(os.Stdout, "- Latest Rate: %s%%\n", meta.LatestRate.StringFixed(3))
	} else {
		fmt.Fprintln(os.Stdout, "- Latest Rate: N/A")
	}
	fmt.Fprintf(os.Stdout, "- Trend: %s\n", meta.RateTrend)
	fmt.Fprintf(os.Stdout, "- Data Size: %.2f KB\n", meta.DataSizeKB)
	fmt.Fprintf(os.Stdout, "- Sources: %s\n", strings.Join(meta.SourcesUsed, ", "))
	return nil
}
