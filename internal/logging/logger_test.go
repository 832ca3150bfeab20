package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesJSONToConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Console: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("dropped")
	logger.Warn("kept", zap.String("client", "10.0.0.1"))
	_ = logger.Sync()

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("expected only the warn entry, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal(lines[0], &entry); err != nil {
		t.Fatalf("entry is not JSON: %v", err)
	}
	if entry["msg"] != "kept" || entry["client"] != "10.0.0.1" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewWithRotatingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.log")

	logger, err := New(Config{Level: "info", Console: &bytes.Buffer{}, File: path})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("to file")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected link to current log file: %v", err)
	}
	if !bytes.Contains(data, []byte("to file")) {
		t.Fatalf("log file missing entry: %q", data)
	}
}

func TestLevelFromString(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARNING": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := levelFromString(in); got != want {
			t.Fatalf("levelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_DEV", "1")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FILE", "/tmp/x.log")

	cfg := ConfigFromEnv()
	if !cfg.Dev || cfg.Level != "debug" || cfg.File != "/tmp/x.log" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}
