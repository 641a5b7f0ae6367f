package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"mortgage-rate-alerts/internal/app"
)

var (
	showDays  int
	showLimit int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print recent observations as a table",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showDays <= 0 {
			return errors.New("--days must be greater than 0")
		}
		return getApp().Show(cmd.Context(), app.ShowOptions{
			Days:  showDays,
			Limit: showLimit,
		})
	},
}

func init() {
	showCmd.Flags().IntVar(&showDays, "days", 7, "Window size in days")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Maximum rows to print (0 for all)")
}
