package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	commentPersona     string
	commentPersonaFile string
)

var commentCmd = &cobra.Command{
	Use:   "comment <post-url>",
	Short: "Generate and post a persona reply to a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		persona := commentPersona
		if commentPersonaFile != "" {
			data, err := os.ReadFile(commentPersonaFile)
			if err != nil {
				return fmt.Errorf("read persona file: %w", err)
			}
			persona = strings.TrimSpace(string(data))
		}
		if persona == "" {
			return fmt.Errorf("a persona is required, set --persona or --persona-file")
		}

		orch, cleanup, err := buildOrchestrator(cmd, nil)
		if err != nil {
			return err
		}
		defer cleanup()

		return printOutcome(orch.Comment(cmd.Context(), args[0], persona))
	},
}

func init() {
	commentCmd.Flags().StringVarP(&commentPersona, "persona", "p", "", "persona block for the generated reply")
	commentCmd.Flags().StringVar(&commentPersonaFile, "persona-file", "", "file holding the persona block")
	rootCmd.AddCommand(commentCmd)
}
