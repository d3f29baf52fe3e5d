// Package config loads feedtap settings from file, environment and flags.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the root of everything tunable. Precedence is flags over
// environment over config file over the defaults set here.
type Config struct {
	DuoPlus DuoPlus `mapstructure:"duoplus"`
	OpenAI  OpenAI  `mapstructure:"openai"`

	// Directory holding template_<control>.png reference images.
	Templates string `mapstructure:"templates"`
	// When set, the frame of an exhausted locate loop is kept here.
	DebugDir string `mapstructure:"debug_dir"`
	// Match in grayscale instead of color.
	Grayscale bool `mapstructure:"grayscale"`

	ProfileName string                   `mapstructure:"profile"`
	Profiles    map[string]DeviceProfile `mapstructure:"profiles"`

	// Per-control match thresholds, "default" applies to the rest.
	Thresholds map[string]float32 `mapstructure:"thresholds"`

	MaxRetry int    `mapstructure:"max_retry"`
	Delays   Delays `mapstructure:"delays"`
	Batch    Batch  `mapstructure:"batch"`
}

type DuoPlus struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type OpenAI struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Delays are the settle waits between steps. The device exposes no
// "page ready" signal, so these blind delays are all there is; tests zero
// them out.
type Delays struct {
	Open        time.Duration `mapstructure:"open"`
	OpenProfile time.Duration `mapstructure:"open_profile"`
	Scroll      time.Duration `mapstructure:"scroll"`
	Compose     time.Duration `mapstructure:"compose"`
	Input       time.Duration `mapstructure:"input"`
	Menu        time.Duration `mapstructure:"menu"`
	Confirm     time.Duration `mapstructure:"confirm"`
}

type Batch struct {
	Workers     int           `mapstructure:"workers"`
	Interval    time.Duration `mapstructure:"interval"`
	Store       string        `mapstructure:"store"`
	MetricsAddr string        `mapstructure:"metrics_addr"`
}

// SetDefaults seeds v with the reference behavior: 1080x1920 profile,
// 0.65 match threshold, three attempts, the observed render waits.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("duoplus.api_key", "")
	v.SetDefault("duoplus.base_url", "https://openapi.duoplus.net")
	v.SetDefault("duoplus.timeout", 30*time.Second)
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "https://api.openai.com")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.timeout", 30*time.Second)
	v.SetDefault("templates", "templates")
	v.SetDefault("profile", FHD.Name)
	v.SetDefault("thresholds", map[string]float32{"default": 0.65})
	v.SetDefault("max_retry", 3)
	v.SetDefault("delays.open", 10*time.Second)
	v.SetDefault("delays.open_profile", 8*time.Second)
	v.SetDefault("delays.scroll", 2*time.Second)
	v.SetDefault("delays.compose", 3*time.Second)
	v.SetDefault("delays.input", time.Second)
	v.SetDefault("delays.menu", 2*time.Second)
	v.SetDefault("delays.confirm", time.Second)
	v.SetDefault("batch.workers", 1)
	v.SetDefault("batch.interval", 30*time.Second)
}

// Load reads the config file (if any), applies environment overrides and
// unmarshals into a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	v.BindEnv("duoplus.api_key", "DUOPLUS_API_KEY")
	v.BindEnv("openai.api_key", "OPENAI_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	for name, th := range c.Thresholds {
		if th < 0 || th > 1 {
			return fmt.Errorf("threshold %q out of range: %v", name, th)
		}
	}
	if c.MaxRetry < 1 {
		return fmt.Errorf("max_retry must be at least 1, got %d", c.MaxRetry)
	}
	if _, err := c.Profile(); err != nil {
		return err
	}
	return nil
}
