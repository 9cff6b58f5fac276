package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultProfile is used when no profile name is given.
const DefaultProfile = "cacophony"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CACOPHONY_"

// ProfileDir returns ~/.cacophony/<profile>.
func ProfileDir(profile string) string {
	if profile == "" {
		profile = DefaultProfile
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cacophony", profile)
}

// GetConfigPath returns the config file path of a profile.
func GetConfigPath(profile string) string {
	return filepath.Join(ProfileDir(profile), "config.yml")
}

// Load reads configuration from a YAML file and applies environment
// overrides. If the file doesn't exist, defaults are used.
func Load(path string) (Config, error) {
	if path == "" {
		path = GetConfigPath("")
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return DefaultConfig(), fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.Servers == nil {
		cfg.Servers = map[string]ServerConfig{}
	}
	return cfg, nil
}

// ApplyEnv overlays CACOPHONY_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	return nil
}

// Save writes configuration to a YAML file, creating parent directories.
func Save(cfg Config, path string) error {
	if path == "" {
		path = GetConfigPath("")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
