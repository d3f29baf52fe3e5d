package main

import (
	"github.com/spf13/cobra"
)

var retweetCmd = &cobra.Command{
	Use:   "retweet <post-url>",
	Short: "Repost a post, confirming on the bottom sheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		orch, cleanup, err := buildOrchestrator(cmd, nil)
		if err != nil {
			return err
		}
		defer cleanup()

		return printOutcome(orch.Retweet(cmd.Context(), args[0]))
	},
}

func init() {
	rootCmd.AddCommand(retweetCmd)
}
