// Package config loads persona-vault configuration from persona.yaml and
// PERSONA_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/rcliao/persona-vault/internal/codec"
	"github.com/rcliao/persona-vault/internal/model"
)

type Config struct {
	DataDir       string   `yaml:"data_dir" mapstructure:"data_dir"`
	BehaviorCodes []string `yaml:"behavior_codes" mapstructure:"behavior_codes"`
	// Passphrase is only ever read from PERSONA_PASSPHRASE or a flag; it is
	// never written back to any config file.
	Passphrase string `yaml:"-" mapstructure:"passphrase"`
	Verbose    bool   `yaml:"verbose" mapstructure:"verbose"`
}

func DefaultConfig() *Config {
	return &Config{
		DataDir:       "data",
		BehaviorCodes: append([]string{}, model.DefaultCodes...),
	}
}

// Load reads persona.yaml from dir (when non-empty), the working directory,
// and ~/.config/persona-vault, in that order, with environment overrides.
// A missing config file is fine; defaults apply.
func Load(dir string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("persona")
	v.SetConfigType("yaml")

	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")
	home, _ := os.UserHomeDir()
	v.AddConfigPath(filepath.Join(home, ".config", "persona-vault"))

	v.SetEnvPrefix("PERSONA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about.
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("behavior_codes", cfg.BehaviorCodes)
	v.SetDefault("passphrase", "")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir is required")
	}
	if len(c.BehaviorCodes) == 0 {
		return fmt.Errorf("config: behavior_codes must not be empty")
	}
	seen := make(map[string]bool, len(c.BehaviorCodes))
	for _, code := range c.BehaviorCodes {
		if strings.TrimSpace(code) == "" {
			return fmt.Errorf("config: blank behavior code")
		}
		if seen[code] {
			return fmt.Errorf("config: duplicate behavior code %q", code)
		}
		seen[code] = true
	}
	if c.Passphrase != "" && len(c.Passphrase) != codec.PassphraseLength {
		return fmt.Errorf("config: passphrase must be exactly %d characters", codec.PassphraseLength)
	}
	return nil
}
