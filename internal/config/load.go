package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// EnvConfig names the environment variable that selects a config file when
// -config is not given.
const EnvConfig = "SKELETOR_CONFIG"

// Load loads configuration with priority: defaults < file < flags.
// The file is the -config flag, then $SKELETOR_CONFIG, then the first
// standard location that exists.
func Load() (*Config, error) {
	cfg := Default()

	configPath := ConfigPath()
	if configPath == "" {
		configPath = os.Getenv(EnvConfig)
	}
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	applyFlags(cfg)

	return cfg, nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./skeletor.yaml",
		"./config.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "Skeletor")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Skeletor")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "skeletor")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "skeletor")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
// Unknown keys are rejected so a misspelled setting does not pass silently.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return cfg.validate()
}

// validate rejects values no command can work with.
func (c *Config) validate() error {
	if c.Import.Scale <= 0 {
		return fmt.Errorf("import.scale must be positive, got %v", c.Import.Scale)
	}
	if c.Validate.HumanHeightMin > c.Validate.HumanHeightMax {
		return fmt.Errorf("validate.human_height_min %v exceeds human_height_max %v",
			c.Validate.HumanHeightMin, c.Validate.HumanHeightMax)
	}
	if c.Textures.MaxSize < 0 {
		return fmt.Errorf("textures.max_size must not be negative, got %d", c.Textures.MaxSize)
	}
	switch c.Import.SKDVersion {
	case 5, 6:
	default:
		return fmt.Errorf("import.skd_version must be 5 or 6, got %d", c.Import.SKDVersion)
	}
	switch c.Import.SKCVersion {
	case 13, 14:
	default:
		return fmt.Errorf("import.skc_version must be 13 or 14, got %d", c.Import.SKCVersion)
	}
	return nil
}
