package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"mortgage-rate-alerts/internal/store"
)

// ExportOptions hold parameters for exporting historical observations.
type ExportOptions struct {
	Days      int
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// Export renders historical observations as CSV and/or a PNG chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	observations, err := a.openStore()
	if err != nil {
		return err
	}

	recent := observations.RecentObservations(opts.Days)
	if len(recent) == 0 {
		a.Logger.Info().Int("days", opts.Days).Msg("no observations found for export window")
		return nil
	}

	// RecentObservations is most-recent-first; charts read left to right.
	chronological := make([]store.Observation, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		chronological = append(chronological, recent[i])
	}

	downsampled := downsampleObservations(chronological, opts.MaxPoints)
	a.Logger.Info().Int("total", len(chronological)).Int("exported", len(downsampled)).Msg("exporting observations")

	if opts.CSVPath != "" {
		if err := writeObservationsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeObservationsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleObservations(observations []store.Observation, max int) []store.Observation {
	if max <= 0 || len(observations) <= max {
		return observations
	}

	result := make([]store.Observation, 0, max)
	step := float64(len(observations)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(observations) {
			idx = len(observations) - 1
		}
		result = append(result, observations[idx])
	}
	return result
}

func writeObservationsCSV(path string, observations []store.Observation) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"date", "timestamp", "rate", "source", "target_rate", "state", "alert_sent", "daily_report_sent", "notes"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, obs := range observations {
		record := []string{
			obs.Date.Format("2006-01-02"),
			obs.Timestamp.Format(time.RFC3339),
			obs.Rate.String(),
			obs.Source,
			obs.TargetRate.String(),
			obs.State,
			strconv.FormatBool(obs.AlertSent),
			strconv.FormatBool(obs.DailyReportSent),
			obs.Notes,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeObservationsPNG(path string, observations []store.Observation) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(observations))
	rates := make([]float64, len(observations))
	targets := make([]float64, len(observations))

	for i, obs := range observations {
		x[i] = obs.Timestamp
		rates[i] = obs.Rate.InexactFloat64()
		targets[i] = obs.TargetRate.InexactFloat64()
	}

	rateFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.3f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Rate (%)",
			ValueFormatter: rateFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Aggregated Rate",
				XValues: x,
				YValues: rates,
			},
			chart.TimeSeries{
				Name:    "Target",
				XValues: x,
				YValues: targets,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
