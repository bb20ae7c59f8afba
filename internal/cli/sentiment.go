package cli

import (
	"github.com/spf13/cobra"
)

var sentimentCmd = &cobra.Command{
	Use:   "sentiment",
	Short: "Show the fear & greed index and trending coins",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Sentiment(cmd.Context(), cmd.OutOrStdout())
	},
}

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Show recent scanner signals",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Signals(cmd.Context(), cmd.OutOrStdout())
	},
}
