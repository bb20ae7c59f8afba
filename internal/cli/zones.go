package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/welloul/CyptoTerminal/internal/app"
)

var (
	zonesPrice    float64
	zonesLeverage []int
)

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Estimate liquidation zones around a price",
	RunE: func(cmd *cobra.Command, args []string) error {
		if zonesPrice <= 0 {
			return fmt.Errorf("--price must be greater than zero")
		}
		for _, lev := range zonesLeverage {
			if lev <= 0 {
				return fmt.Errorf("--leverage values must be greater than zero")
			}
		}
		return getApp().Zones(cmd.OutOrStdout(), app.ZonesOptions{
			Price: zonesPrice,
			Tiers: zonesLeverage,
		})
	},
}

func init() {
	zonesCmd.Flags().Float64Var(&zonesPrice, "price", 0, "Reference price")
	zonesCmd.Flags().IntSliceVar(&zonesLeverage, "leverage", nil, "Leverage tiers (defaults to 10,25,50,100)")
}
