package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"mortgage-rate-alerts/internal/store"
)

// Stats prints windowed rate statistics from the observation store.
func (a *App) Stats(ctx context.Context, days int) error {
	observations, err := a.openStore()
	if err != nil {
		return err
	}

	stats, err := observations.Statistics(days)
	if errors.Is(err, store.ErrNoData) {
		fmt.Fprintf(os.Stdout, "No data available for the last %d days\n", days)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "=== Rate Statistics (Last %d Days) ===\n", stats.PeriodDays)
	fmt.Fprintf(os.Stdout, "Records: %d\n", stats.RecordCount)
	fmt.Fprintf(os.Stdout, "Latest Rate: %s%%\n", stats.LatestRate.StringFixed(3))
	fmt.Fprintf(os.Stdout, "Average Rate: %s%%\n", stats.AverageRate.StringFixed(3))
	fmt.Fprintf(os.Stdout, "Min Rate: %s%%\n", stats.MinRate.StringFixed(3))
	fmt.Fprintf(os.Stdout, "Max Rate: %s%%\n", stats.MaxRate.StringFixed(3))
	fmt.Fprintf(os.Stdout, "Trend: %s\n", stats.Trend)
	fmt.Fprintf(os.Stdout, "Volatility: %s\n", stats.Volatility.StringFixed(3))
	fmt.Fprintf(os.Stdout, "Data Size: %.2f KB\n", stats.DataSizeKB)
	return nil
}
