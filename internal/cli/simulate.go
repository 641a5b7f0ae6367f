package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateRate   float64
	simulateSource string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a notification for a fixed rate without persisting anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateRate <= 0 {
			return errors.New("--rate must be greater than 0")
		}
		return getApp().SimulateAlert(cmd.Context(), decimal.NewFromFloat(simulateRate), simulateSource)
	},
}

func init() {
	simulateCmd.Flags().Float64Var(&simulateRate, "rate", 0, "Rate to simulate, in percent")
	simulateCmd.Flags().StringVar(&simulateSource, "source", "", "Source label for the simulated rate")
}
