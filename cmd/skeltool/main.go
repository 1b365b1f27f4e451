// skeltool is a CLI utility for skeletal models (.skd) and animations (.skc).
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/skeletor/internal/config"
	"github.com/Faultbox/skeletor/internal/logger"
	"github.com/Faultbox/skeletor/pkg/formats"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	args := config.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	command := args[0]
	args = args[1:]

	switch command {
	case "info":
		cmdInfo(args)
	case "dump-rest", "dump":
		cmdDumpRest(args)
	case "reconcile":
		cmdReconcile(cfg, args)
	case "convert":
		cmdConvert(cfg, args)
	case "export":
		cmdExport(cfg, args)
	case "validate", "check":
		cmdValidate(cfg, args)
	case "config":
		cmdConfig(cfg, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`skeltool - skeletal model and animation utility

Usage:
  skeltool [global options] <command> [options]

Global options:
  -config <file>    Config file (default ./skeletor.yaml, ./config.yaml or user config dir)
  -debug            Debug logging
  -log-file <file>  Also log to a rotating file
  -workers <n>      Parallel files for validate
  -scale <f>        Uniform scale for export
  -textures <file>  Surface to texture table (YAML)
  -json             Export .gltf JSON instead of .glb

Commands:
  info <file.skd|file.skc>                 Show header, skeleton and channel summary
  dump-rest <file.skd> [file.skc]          Print bone offsets and world positions
  reconcile <file.skd> [file.skc] [-o out] Rebuild the rest pose from animation frame 0
  convert <in> <out> [-version n]          Re-encode a model or animation
  export <file.skd> [-anim file.skc] [-o out]  Write a skinned glTF
  validate <dir|files...>                  Check many models in parallel
  config [-o file]                         Write the effective configuration

Examples:
  skeltool info models/allied_pilot.skd
  skeltool reconcile -o fixed.skd models/allied_pilot.skd
  skeltool -json export -o pilot.gltf models/allied_pilot.skd
  skeltool -workers 8 validate models/`)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	logger.Sync()
	os.Exit(1)
}

func logWarnings(path string, ws formats.Warnings) {
	logger.Warnings(logger.With(zap.String("file", path)), ws)
}

func loadModel(path string) *formats.SKD {
	m, err := formats.ParseSKDFile(path)
	if err != nil {
		fatalf("%v", err)
	}
	logWarnings(path, m.Warnings)
	logger.Debug("model loaded",
		zap.String("file", path),
		zap.Int32("version", m.Version),
		zap.Int("bones", len(m.Bones)),
		zap.Int("surfaces", len(m.Surfaces)),
	)
	return m
}

func loadAnimation(path string) *formats.SKC {
	a, err := formats.ParseSKCFile(path)
	if err != nil {
		fatalf("%v", err)
	}
	logWarnings(path, a.Warnings)
	logger.Debug("animation loaded",
		zap.String("file", path),
		zap.Int32("version", a.Header.Version),
		zap.Int("frames", a.NumFrames()),
		zap.Int("channels", a.NumChannels()),
	)
	return a
}
