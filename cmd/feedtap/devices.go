package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"feedtap/internal/device"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the account's cloud phones",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		raw, err := device.ListDevices(cmd.Context(), cfg.DuoPlus.BaseURL, cfg.DuoPlus.APIKey, cfg.DuoPlus.Timeout)
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
