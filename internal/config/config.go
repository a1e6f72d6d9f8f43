// Package config loads the orchestrator's construction-time options
// from an optional YAML file and ORCH_-prefixed environment variables
// via viper, mirroring the layered precedence the teacher's config
// packages use. The only CLI flag is the config file path.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// BackendSpec is one cluster backend entry: "host:port" plus an
// optional accelerator type tag.
type BackendSpec struct {
	Address   string `mapstructure:"address"`
	AccelType string `mapstructure:"accel_type"`
}

// OperatingPointSpec is one DVFS operating point as read from config.
type OperatingPointSpec struct {
	Frequency float64 `mapstructure:"frequency"`
	Voltage   float64 `mapstructure:"voltage"`
}

// Config is the orchestrator's full construction-time option set, the
// enumerated options from §6 plus the strategy/backend selections
// needed to build the concrete policy objects.
type Config struct {
	Port int           `mapstructure:"port"`
	Cluster []BackendSpec `mapstructure:"cluster"`

	Scheduler string `mapstructure:"scheduler"` // "first_fit" | "least_loaded"

	AdmissionPolicy    string  `mapstructure:"admission_policy"` // "" | "max_active_tasks" | "deadline_aware"
	MaxActiveTasks     int     `mapstructure:"max_active_tasks"`
	ComputeRateFlopsSec float64 `mapstructure:"compute_rate_flops_sec"`

	AdmissionTimeout time.Duration `mapstructure:"admission_timeout"`

	DeviceManagerEnabled bool                 `mapstructure:"device_manager_enabled"`
	ScalingPolicy        string               `mapstructure:"scaling_policy"` // "" | "utilization" | "conservative"
	OperatingPoints      []OperatingPointSpec `mapstructure:"operating_points"`

	JSONLog  bool   `mapstructure:"json_log"`
	LogLevel string `mapstructure:"log_level"`

	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// Load reads configuration from an optional YAML file at path (skipped
// if empty or not found), then ORCH_-prefixed environment variables,
// applying defaults for anything unset.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ORCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("scheduler", "least_loaded")
	v.SetDefault("admission_policy", "")
	v.SetDefault("max_active_tasks", 8)
	v.SetDefault("compute_rate_flops_sec", 1e9)
	v.SetDefault("admission_timeout", "30s")
	v.SetDefault("device_manager_enabled", false)
	v.SetDefault("scaling_policy", "conservative")
	v.SetDefault("json_log", true)
	v.SetDefault("log_level", "info")
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	switch c.Scheduler {
	case "first_fit", "least_loaded":
	default:
		return fmt.Errorf("config: unknown scheduler %q", c.Scheduler)
	}
	switch c.AdmissionPolicy {
	case "", "max_active_tasks", "deadline_aware":
	default:
		return fmt.Errorf("config: unknown admission policy %q", c.AdmissionPolicy)
	}
	switch c.ScalingPolicy {
	case "", "utilization", "conservative":
	default:
		return fmt.Errorf("config: unknown scaling policy %q", c.ScalingPolicy)
	}
	return nil
}
