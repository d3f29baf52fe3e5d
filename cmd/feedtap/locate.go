package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"feedtap/internal/vision"
)

var (
	locateImage   string
	locateControl string
	locatePolicy  string
)

// locate runs the matcher against a saved screenshot, for tuning
// thresholds and checking template sets without touching a device.
var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Match a control against a saved screenshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		policy, err := vision.ParsePolicy(locatePolicy)
		if err != nil {
			return err
		}
		deviceProfile, err := cfg.Profile()
		if err != nil {
			return err
		}

		registry, err := vision.LoadTemplates(cfg.Templates, vision.LoadOptions{
			Thresholds: cfg.Thresholds,
			Scale:      deviceProfile.TemplateScale,
			Grayscale:  cfg.Grayscale,
			Logger:     logger,
		})
		if err != nil {
			return err
		}
		defer registry.Close()

		frame, err := vision.ReadFrame(locateImage)
		if err != nil {
			return err
		}
		defer frame.Close()

		res, err := registry.Locate(frame, locateControl, policy)
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		if !res.Found {
			return errActionFailed
		}
		return nil
	},
}

func init() {
	locateCmd.Flags().StringVarP(&locateImage, "image", "i", "", "screenshot PNG to match against")
	locateCmd.Flags().StringVarP(&locateControl, "control", "c", vision.LikeButton, "control name to locate")
	locateCmd.Flags().StringVar(&locatePolicy, "policy", "topmost", "selection policy: topmost or highest_confidence")
	locateCmd.MarkFlagRequired("image")
	rootCmd.AddCommand(locateCmd)
}
