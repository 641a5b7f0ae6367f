package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var statsDays int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print rate statistics over a recent window",
	RunE: func(cmd *cobra.Command, args []string) error {
		if statsDays <= 0 {
			return errors.New("--days must be greater than 0")
		}
		return getApp().Stats(cmd.Context(), statsDays)
	},
}

func init() {
	statsCmd.Flags().IntVar(&statsDays, "days", 30, "Window size in days")
}
