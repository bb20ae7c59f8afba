package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/welloul/CyptoTerminal/internal/app"
	"github.com/welloul/CyptoTerminal/internal/collab"
)

var (
	symbolsSort  string
	symbolsLimit int
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "List tradeable symbols with 24h change and volume",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := collab.ParseSortKey(symbolsSort)
		if err != nil {
			return err
		}
		if symbolsLimit < 0 {
			return fmt.Errorf("--limit cannot be negative")
		}
		return getApp().Symbols(cmd.Context(), cmd.OutOrStdout(), app.SymbolsOptions{
			Sort:  key,
			Limit: symbolsLimit,
		})
	},
}

func init() {
	symbolsCmd.Flags().StringVar(&symbolsSort, "sort", "volume", "Sort order: volume, gainers or losers")
	symbolsCmd.Flags().IntVar(&symbolsLimit, "limit", 20, "Number of symbols to display (0 for all)")
}
