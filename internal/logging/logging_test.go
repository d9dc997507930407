package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"chosenoffset.com/fieldrender/internal/config"
)

func TestNewLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.DefaultConfig().Log
	cfg.Level = "warn"
	cfg.Format = "json"
	logger, closer, err := newLogger(cfg, &buf)
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	defer closer.Close()

	if logger.GetLevel() != logrus.WarnLevel {
		t.Errorf("Expected warn level, got %v", logger.GetLevel())
	}
	logger.Info("hidden")
	logger.WithField("pass", "background").Warn("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected one log line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("Expected JSON output: %v", err)
	}
	if entry["msg"] != "shown" || entry["pass"] != "background" {
		t.Errorf("Unexpected entry %v", entry)
	}
}

func TestNewWritesFile(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.DefaultConfig().Log
	cfg.File = filepath.Join(t.TempDir(), "fieldrender.log")
	logger, closer, err := newLogger(cfg, &buf)
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	logger.Info("frame rendered")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(cfg.File)
	if err != nil {
		t.Fatalf("Expected log file: %v", err)
	}
	if !strings.Contains(string(data), "frame rendered") {
		t.Errorf("Expected message in file, got %q", data)
	}
	if !strings.Contains(buf.String(), "frame rendered") {
		t.Error("Expected message on the console too")
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	cfg := config.DefaultConfig().Log
	cfg.Level = "chatty"
	if _, _, err := New(cfg); err == nil {
		t.Error("Expected an error for an unknown level")
	}
}
