package cli

import (
	"github.com/spf13/cobra"

	"github.com/welloul/CyptoTerminal/internal/app"
)

var (
	runConsole bool
	runSymbol  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the market stream and serve verdicts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context(), app.RunOptions{
			Symbol:  runSymbol,
			Console: runConsole,
		})
	},
}

func init() {
	runCmd.Flags().BoolVar(&runConsole, "console", false, "Render the verdict table to stdout")
	runCmd.Flags().StringVar(&runSymbol, "symbol", "", "Initial instrument (defaults to feed.initial_symbol)")
}
