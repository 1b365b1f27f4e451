package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/Faultbox/skeletor/pkg/formats"
)

// readLines decodes a JSON-lines log file.
func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open log file: %v", err)
	}
	defer f.Close()

	var lines []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("log line is not JSON: %q: %v", sc.Text(), err)
		}
		lines = append(lines, m)
	}
	return lines
}

func TestLogRotation(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "batch.log")

	cfg := FileConfig{
		Path:       logFile,
		MaxSizeMB:  1, // smallest lumberjack allows
		MaxBackups: 2,
		MaxAgeDays: 1,
	}
	if err := InitWithFileConfig("debug", cfg, false); err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	defer Reset()

	// ~300 bytes per line, well past 1MB.
	path := strings.Repeat("models/allied/", 15) + "pilot.skd"
	for i := 0; i < 6000; i++ {
		Info("model validated", zap.String("file", path), zap.Int("n", i))
	}
	Sync()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read log dir: %v", err)
	}

	rotated := 0
	for _, e := range entries {
		if e.Name() == "batch.log" {
			continue
		}
		// batch-YYYY-MM-DDTHH-MM-SS.SSS.log
		if strings.HasPrefix(e.Name(), "batch-20") && strings.HasSuffix(e.Name(), ".log") {
			rotated++
		}
	}
	if rotated == 0 {
		t.Errorf("no rotated files among %d entries", len(entries))
	}
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level string
		want  []string
	}{
		{"error", []string{"ERROR"}},
		{"warn", []string{"WARN", "ERROR"}},
		{"info", []string{"INFO", "WARN", "ERROR"}},
		{"debug", []string{"DEBUG", "INFO", "WARN", "ERROR"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logFile := filepath.Join(t.TempDir(), tt.level+".log")
			if err := InitWithFileConfig(tt.level, FileConfig{Path: logFile, MaxSizeMB: 10}, false); err != nil {
				t.Fatalf("failed to init logger: %v", err)
			}
			defer Reset()

			Debug("debug message")
			Info("info message")
			Warn("warn message")
			Error("error message")
			Sync()

			lines := readLines(t, logFile)
			if len(lines) != len(tt.want) {
				t.Fatalf("got %d lines, want %d", len(lines), len(tt.want))
			}
			for i, l := range lines {
				if l["level"] != tt.want[i] {
					t.Errorf("line %d level = %v, want %s", i, l["level"], tt.want[i])
				}
			}
		})
	}
}

func TestConsoleFileFormat(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "plain.log")
	cfg := FileConfig{Path: logFile, MaxSizeMB: 10, Console: true}
	if err := InitWithFileConfig("info", cfg, false); err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	defer Reset()

	Info("reconciled", zap.Int("bones_changed", 3))
	Sync()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if strings.HasPrefix(line, "{") || !strings.Contains(line, "reconciled") || !strings.Contains(line, `"bones_changed": 3`) {
		t.Errorf("unexpected console line %q", line)
	}
}

func TestWarnings(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "warn.log")
	if err := InitWithFileConfig("info", FileConfig{Path: logFile, MaxSizeMB: 10}, false); err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	defer Reset()

	var ws formats.Warnings
	ws.Addf(formats.VersionWarning, "version %d is newer than supported", 15)
	ws.Addf(formats.StructuralWarning, "bone %q has unknown parent %q", "Hand", "Arm")

	Warnings(With(zap.String("file", "pilot.skc")), ws)
	Sync()

	lines := readLines(t, logFile)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	for i, l := range lines {
		if l["level"] != "WARN" || l["file"] != "pilot.skc" || l["msg"] != ws[i].Message {
			t.Errorf("line %d = %v", i, l)
		}
		if l["kind"] != ws[i].Kind.String() {
			t.Errorf("line %d kind = %v, want %s", i, l["kind"], ws[i].Kind)
		}
	}
}

func TestNoopBeforeInit(t *testing.T) {
	Reset()
	// Must not panic or write anywhere.
	Info("ignored")
	With().Warn("ignored too")
	Warnings(Log, formats.Warnings{{Message: "ignored"}})
	Sync()
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "debug"},
		{"warning", "warn"},
		{"error", "error"},
		{"", "info"},
		{"verbose", "info"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseLevel(tt.in).String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultFileConfig(t *testing.T) {
	cfg := DefaultFileConfig("skeltool.log")

	if cfg.Path != "skeltool.log" {
		t.Errorf("expected path skeltool.log, got %s", cfg.Path)
	}
	if cfg.MaxSizeMB != 20 || cfg.MaxBackups != 5 || cfg.MaxAgeDays != 14 {
		t.Errorf("unexpected rotation settings: %+v", cfg)
	}
	if !cfg.Compress || cfg.Console {
		t.Errorf("expected compressed JSON files, got %+v", cfg)
	}
}
