// Package config loads the simulation's runtime configuration from a
// YAML file, with environment variable overrides under the EASYMONEY
// prefix.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// TraderConfig describes one trader to create at startup.
type TraderConfig struct {
	Name         string         `mapstructure:"name"`
	Algorithm    string         `mapstructure:"algorithm"`
	InitialFunds float64        `mapstructure:"initial_funds"`
	TradingFee   float64        `mapstructure:"trading_fee"`
	Settings     map[string]any `mapstructure:"settings"`
}

// Config holds all runtime configuration for the simulator.
type Config struct {
	LogLevel     string         `mapstructure:"log_level"`
	TickInterval time.Duration  `mapstructure:"tick_interval"`
	AutoPlay     bool           `mapstructure:"auto_play"`
	DataFiles    []string       `mapstructure:"data_files"`
	Traders      []TraderConfig `mapstructure:"traders"`
}

// Load reads the configuration file at path, applies defaults and
// environment overrides, and validates values. It returns an error
// for any invalid value.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("EASYMONEY")
	v.AutomaticEnv()

	v.SetDefault("log_level", "info")
	v.SetDefault("tick_interval", time.Second)
	v.SetDefault("auto_play", true)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if !isValidLogLevel(cfg.LogLevel) {
		return fmt.Errorf("invalid log_level: %q, must be one of: debug, info, warn, error", cfg.LogLevel)
	}
	if cfg.TickInterval <= 0 {
		return fmt.Errorf("invalid tick_interval: %v, must be positive", cfg.TickInterval)
	}
	if len(cfg.DataFiles) == 0 {
		return fmt.Errorf("data_files must list at least one price archive")
	}

	seen := make(map[string]bool)
	for i, tc := range cfg.Traders {
		if tc.Name == "" {
			return fmt.Errorf("traders[%d]: name cannot be empty", i)
		}
		if seen[tc.Name] {
			return fmt.Errorf("traders[%d]: duplicate name %q", i, tc.Name)
		}
		seen[tc.Name] = true
		if tc.Algorithm == "" {
			return fmt.Errorf("trader %q: algorithm cannot be empty", tc.Name)
		}
		if tc.InitialFunds <= 0 {
			return fmt.Errorf("trader %q: initial_funds must be positive", tc.Name)
		}
		if tc.TradingFee < 0 {
			return fmt.Errorf("trader %q: trading_fee cannot be negative", tc.Name)
		}
	}
	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
