// feedtap drives engagement actions on a social feed inside a DuoPlus
// cloud phone: it locates controls on screenshots by template matching
// and taps them over the command API. Each action command prints one
// machine-readable outcome on stdout; logs go to stderr.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"feedtap/internal/actions"
	"feedtap/internal/aicomment"
	"feedtap/internal/config"
	"feedtap/internal/device"
	"feedtap/internal/logging"
	"feedtap/internal/metrics"
	"feedtap/internal/vision"
)

const version = "0.2.0"

// errActionFailed signals a structured failure already printed on
// stdout; main exits nonzero without repeating it.
var errActionFailed = errors.New("action failed")

var (
	cfgFile   string
	deviceID  string
	debugLog  bool
	quietLog  bool
	templates string
	profile   string
	debugDir  string
	grayscale bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:     "feedtap",
	Short:   "Screenshot-driven engagement actions on a cloud phone",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(debugLog, quietLog)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}

		v := viper.New()
		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
		} else {
			v.SetConfigName("feedtap")
			v.SetConfigType("yaml")
			v.AddConfigPath(".")
			v.AddConfigPath("$HOME/.config/feedtap")
		}
		for key, flag := range map[string]string{
			"templates": "templates",
			"profile":   "profile",
			"debug_dir": "debug-dir",
			"grayscale": "grayscale",
		} {
			if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
				return err
			}
		}

		cfg, err = config.Load(v)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: feedtap.yaml in . or ~/.config/feedtap)")
	pf.StringVarP(&deviceID, "device", "d", "", "cloud phone image id")
	pf.StringVar(&templates, "templates", "templates", "directory holding template_<control>.png files")
	pf.StringVar(&profile, "profile", config.FHD.Name, "device profile name")
	pf.StringVar(&debugDir, "debug-dir", "", "keep the last frame of a failed locate loop here")
	pf.BoolVar(&grayscale, "grayscale", false, "match in grayscale")
	pf.BoolVar(&debugLog, "debug", false, "debug logging")
	pf.BoolVarP(&quietLog, "quiet", "q", false, "warnings and errors only")
}

// buildOrchestrator wires the device, templates and generator for one
// action command. The returned cleanup releases the template Mats.
// collector may be nil; batch runs pass one.
func buildOrchestrator(cmd *cobra.Command, collector *metrics.Collector) (*actions.Orchestrator, func(), error) {
	if deviceID == "" {
		return nil, nil, errors.New("--device is required")
	}
	deviceProfile, err := cfg.Profile()
	if err != nil {
		return nil, nil, err
	}

	registry, err := vision.LoadTemplates(cfg.Templates, vision.LoadOptions{
		Thresholds: cfg.Thresholds,
		Scale:      deviceProfile.TemplateScale,
		Grayscale:  cfg.Grayscale,
		Logger:     logger,
	})
	if err != nil {
		return nil, nil, err
	}

	phone := device.NewCloudPhone(device.Options{
		BaseURL:     cfg.DuoPlus.BaseURL,
		APIKey:      cfg.DuoPlus.APIKey,
		DeviceID:    deviceID,
		SwipeFromX:  deviceProfile.Swipe.FromX,
		SwipeFromY:  deviceProfile.Swipe.FromY,
		SwipeToX:    deviceProfile.Swipe.ToX,
		SwipeToY:    deviceProfile.Swipe.ToY,
		SwipeMillis: deviceProfile.Swipe.Millis,
		Timeout:     cfg.DuoPlus.Timeout,
		Logger:      logger,
	})

	generator := aicomment.NewOpenAI(aicomment.Options{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
		Timeout: cfg.OpenAI.Timeout,
		Logger:  logger,
	})

	orch := actions.New(actions.Options{
		Device:    phone,
		Finder:    registry,
		Generator: generator,
		Profile:   deviceProfile,
		Delays:    cfg.Delays,
		MaxRetry:  cfg.MaxRetry,
		DebugDir:  cfg.DebugDir,
		DeviceID:  deviceID,
		Metrics:   collector,
		Logger:    logger,
	})
	return orch, registry.Close, nil
}

// printOutcome writes the action's result record to stdout and maps
// failure onto the exit status.
func printOutcome(out actions.Outcome) error {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	if !out.Success {
		return errActionFailed
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errActionFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
