package config

import "flag"

// Global flags come before the subcommand: skeltool -debug validate ./models
var (
	flagConfig   = flag.String("config", "", "Path to config file")
	flagDebug    = flag.Bool("debug", false, "Enable debug logging")
	flagLogFile  = flag.String("log-file", "", "Also write logs to this file")
	flagWorkers  = flag.Int("workers", 0, "Parallel files for validate")
	flagScale    = flag.Float64("scale", 0, "Uniform scale applied on export")
	flagTextures = flag.String("textures", "", "Surface to texture table (YAML)")
	flagJSON     = flag.Bool("json", false, "Export .gltf JSON instead of .glb")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the arguments left after the global flags: the subcommand and its own flags.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
	if *flagWorkers > 0 {
		cfg.Validate.Workers = *flagWorkers
	}
	if *flagScale > 0 {
		cfg.Import.Scale = float32(*flagScale)
	}
	if *flagTextures != "" {
		cfg.Textures.Table = *flagTextures
	}
	if *flagJSON {
		cfg.Export.Binary = false
	}
}
