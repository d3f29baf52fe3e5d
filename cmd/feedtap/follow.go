package main

import (
	"github.com/spf13/cobra"
)

var followNoLocate bool

var followCmd = &cobra.Command{
	Use:   "follow <username>",
	Short: "Follow a user from their profile page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		orch, cleanup, err := buildOrchestrator(cmd, nil)
		if err != nil {
			return err
		}
		defer cleanup()

		if followNoLocate {
			return printOutcome(orch.FollowFixed(cmd.Context(), args[0]))
		}
		return printOutcome(orch.Follow(cmd.Context(), args[0]))
	},
}

func init() {
	followCmd.Flags().BoolVar(&followNoLocate, "no-locate", false,
		"tap the profile's fixed follow coordinate instead of matching")
	rootCmd.AddCommand(followCmd)
}
