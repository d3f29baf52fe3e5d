package main

import (
	"github.com/spf13/cobra"
)

var likeCmd = &cobra.Command{
	Use:   "like <post-url>",
	Short: "Like a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		orch, cleanup, err := buildOrchestrator(cmd, nil)
		if err != nil {
			return err
		}
		defer cleanup()

		return printOutcome(orch.Like(cmd.Context(), args[0]))
	},
}

func init() {
	rootCmd.AddCommand(likeCmd)
}
