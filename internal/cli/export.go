package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"mortgage-rate-alerts/internal/app"
)

var (
	exportDays      int
	exportPNGPath   string
	exportCSVPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export observations as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportDays <= 0 {
			return errors.New("--days must be greater than 0")
		}
		return getApp().Export(cmd.Context(), app.ExportOptions{
			Days:      exportDays,
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			MaxPoints: exportMaxPoints,
		})
	},
}

func init() {
	exportCmd.Flags().IntVar(&exportDays, "days", 90, "Window size in days")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
