// Package config handles skeltool configuration loading and management.
package config

import (
	"slices"

	"github.com/Faultbox/skeletor/internal/batch"
)

// Config holds all tool settings.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Import   ImportConfig   `yaml:"import"`
	Validate ValidateConfig `yaml:"validate"`
	Export   ExportConfig   `yaml:"export"`
	Textures TexturesConfig `yaml:"textures"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// ImportConfig holds settings for reading and rewriting model files.
type ImportConfig struct {
	Scale      float32 `yaml:"scale"`       // uniform scale applied on export
	Reconcile  bool    `yaml:"reconcile"`   // reconcile with the companion animation on load
	SKDVersion int32   `yaml:"skd_version"` // version written by convert/reconcile
	SKCVersion int32   `yaml:"skc_version"`
}

// ValidateConfig holds batch validation settings.
type ValidateConfig struct {
	Workers        int      `yaml:"workers"` // 0 = one per CPU
	HumanHeightMin float32  `yaml:"human_height_min"`
	HumanHeightMax float32  `yaml:"human_height_max"`
	HumanKeywords  []string `yaml:"human_keywords"`
}

// ExportConfig holds glTF export settings.
type ExportConfig struct {
	Binary bool `yaml:"binary"` // .glb instead of .gltf
	FlipV  bool `yaml:"flip_v"`
}

// TexturesConfig points at the surface to texture table and the image files.
type TexturesConfig struct {
	Table   string `yaml:"table"`
	Root    string `yaml:"root"`     // base directory for relative texture paths
	Embed   bool   `yaml:"embed"`    // embed images in exported glTF
	MaxSize int    `yaml:"max_size"` // downscale embedded images, 0 = keep
}

// Default returns a Config with sensible default values.
func Default() *Config {
	checks := batch.DefaultOptions()
	return &Config{
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
		Import: ImportConfig{
			Scale:      1.0,
			Reconcile:  false,
			SKDVersion: 6,
			SKCVersion: 14,
		},
		Validate: ValidateConfig{
			Workers:        checks.Workers,
			HumanHeightMin: checks.HumanHeightMin,
			HumanHeightMax: checks.HumanHeightMax,
			HumanKeywords:  slices.Clone(checks.HumanKeywords),
		},
		Export: ExportConfig{
			Binary: true,
			FlipV:  true,
		},
	}
}
