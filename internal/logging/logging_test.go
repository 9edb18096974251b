package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"holdtalk/internal/config"
)

func TestConfigureJSONCarriesTake(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := config.Default()
	cfg.Paths.StateDir = dir
	cfg.Paths.LogPath = filepath.Join(dir, "holdtalk.log")
	cfg.Paths.TranscriptPath = filepath.Join(dir, "transcripts.log")
	cfg.Logging.Format = "json"
	cfg.Logging.Level = "debug"

	logger, err := Configure(cfg)
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	WithTake(logger, "take-7").Debug("recording started")

	data, err := os.ReadFile(cfg.Paths.LogPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var line map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &line); err != nil {
		t.Fatalf("log line is not json: %q", data)
	}
	if line[TakeField] != "take-7" || line["message"] != "recording started" || line["level"] != "debug" {
		t.Fatalf("log line: %v", line)
	}
}

func TestConfigureIgnoresUnknownLevel(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := config.Default()
	cfg.Paths.StateDir = dir
	cfg.Paths.LogPath = filepath.Join(dir, "holdtalk.log")
	cfg.Paths.TranscriptPath = filepath.Join(dir, "transcripts.log")
	cfg.Logging.Level = "chatty"

	logger, err := Configure(cfg)
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	if logger.GetLevel().String() != "info" {
		t.Fatalf("level=%s", logger.GetLevel())
	}
}
