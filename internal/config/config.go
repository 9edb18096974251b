package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/pelletier/go-toml/v2"
)

const (
	envPrefix            = "HOLDTALK_"
	defaultStatusTail    = 10
	defaultMinRecordMS   = 300
	defaultPartialMS     = 1500
	defaultStateDirLinux = ".local/state/holdtalk"
	defaultConfigDir     = ".config/holdtalk"
)

// Config holds user configuration loaded from TOML. Fields tagged with env
// can be overridden by HOLDTALK_* variables.
type Config struct {
	Audio struct {
		DeviceName string `toml:"device_name" env:"MIC"`
		SampleRate int    `toml:"sample_rate"`
		Channels   int    `toml:"channels"`
		FrameMS    int    `toml:"frame_ms"`
	} `toml:"audio"`

	VAD struct {
		Enabled        bool    `toml:"enabled" env:"VAD_ENABLED"`
		Aggressiveness int     `toml:"aggressiveness"`
		MinSpeechRatio float64 `toml:"min_speech_ratio"`
	} `toml:"vad"`

	ASR struct {
		ModelPath string   `toml:"model_path" env:"MODEL_PATH"`
		Language  string   `toml:"language" env:"LANGUAGE"`
		Threads   int      `toml:"threads"`
		Prompt    []string `toml:"prompt"` // contextual phrases fed as whisper's initial prompt
	} `toml:"asr"`

	Gesture struct {
		ActiveHeight   float64 `toml:"active_height"`
		InactiveHeight float64 `toml:"inactive_height"`
	} `toml:"gesture"`

	Session struct {
		PartialResults    bool `toml:"partial_results" env:"PARTIAL_RESULTS"`
		PartialIntervalMS int  `toml:"partial_interval_ms"`
		MinRecordMS       int  `toml:"min_record_ms"`
		MaxRecordSec      int  `toml:"max_record_sec"`
		SaveAudio         bool `toml:"save_audio" env:"SAVE_AUDIO"`
	} `toml:"session"`

	Hooks []HookConfig `toml:"hooks"`

	Logging struct {
		Level  string `toml:"level" env:"LOG_LEVEL"`   // debug, info, warn, error
		Format string `toml:"format" env:"LOG_FORMAT"` // text, json
		Stdout bool   `toml:"stdout" env:"LOG_STDOUT"`
	} `toml:"logging"`

	Paths struct {
		StateDir       string `toml:"state_dir"`
		LogPath        string `toml:"log_path"`
		TranscriptPath string `toml:"transcript_path"`
		AudioDir       string `toml:"audio_dir"`
		SocketPath     string `toml:"socket_path" env:"SOCKET"`
		PidPath        string `toml:"pid_path"`
		ModelDir       string `toml:"model_dir"`
		ConfigPath     string `toml:"-"`
	} `toml:"paths"`

	UI struct {
		StatusTail int `toml:"status_tail"`
	} `toml:"ui"`

	Metrics struct {
		Enabled bool   `toml:"enabled" env:"METRICS_ENABLED"`
		Addr    string `toml:"addr" env:"METRICS_ADDR"`
	} `toml:"metrics"`

	Transcripts struct {
		Enabled bool `toml:"enabled" env:"TRANSCRIPTS_ENABLED"`
	} `toml:"transcripts"`
}

// Default returns Config populated with defaults.
func Default() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	stateDir := filepath.Join(home, defaultStateDirLinux)
	// macOS prefers ~/Library/Application Support/holdtalk for state/logs
	if isMac() {
		stateDir = filepath.Join(home, "Library", "Application Support", "holdtalk")
	}

	cfg := &Config{}

	cfg.Audio.SampleRate = 16000
	cfg.Audio.Channels = 1
	cfg.Audio.FrameMS = 20

	cfg.VAD.Enabled = true
	cfg.VAD.Aggressiveness = 2
	cfg.VAD.MinSpeechRatio = 0.05

	cfg.ASR.ModelPath = filepath.Join(stateDir, "models", "ggml-small-q5_1.bin")
	cfg.ASR.Language = "auto"
	cfg.ASR.Threads = runtime.NumCPU()

	cfg.Gesture.ActiveHeight = 94
	cfg.Gesture.InactiveHeight = 78

	cfg.Session.PartialResults = true
	cfg.Session.PartialIntervalMS = defaultPartialMS
	cfg.Session.MinRecordMS = defaultMinRecordMS
	cfg.Session.MaxRecordSec = 60

	cfg.Hooks = []HookConfig{{
		Command:     "/bin/echo",
		Prefix:      "holdtalk: ",
		CooldownSec: 0,
		MinChars:    1,
		QueueSize:   16,
		TimeoutSec:  5,
		Env:         map[string]string{},
	}}

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	cfg.Paths.StateDir = stateDir
	cfg.Paths.LogPath = filepath.Join(stateDir, "holdtalk.log")
	cfg.Paths.TranscriptPath = filepath.Join(stateDir, "transcripts.log")
	cfg.Paths.AudioDir = filepath.Join(stateDir, "audio")
	cfg.Paths.SocketPath = filepath.Join(stateDir, "holdtalk.sock")
	cfg.Paths.PidPath = filepath.Join(stateDir, "holdtalk.pid")
	cfg.Paths.ModelDir = filepath.Join(stateDir, "models")

	cfg.UI.StatusTail = defaultStatusTail

	cfg.Metrics.Enabled = false
	cfg.Metrics.Addr = "127.0.0.1:9318"

	cfg.Transcripts.Enabled = true

	return cfg, nil
}

// Load loads config from file, applying defaults.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, defaultConfigDir, "config.toml")
	}

	// Read if exists; otherwise write template.
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := Save(cfg, path); err != nil {
				return nil, err
			}
			cfg.Paths.ConfigPath = path
			if err := applyEnvOverrides(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	defaultHooks := cfg.Hooks
	cfg.Hooks = nil
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(cfg.Hooks) == 0 {
		cfg.Hooks = defaultHooks
	}
	cfg.Paths.ConfigPath = path
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

// Validate rejects settings the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Gesture.ActiveHeight < c.Gesture.InactiveHeight {
		return fmt.Errorf("gesture.active_height (%v) must be >= gesture.inactive_height (%v)",
			c.Gesture.ActiveHeight, c.Gesture.InactiveHeight)
	}
	if c.Gesture.InactiveHeight <= 0 {
		return fmt.Errorf("gesture.inactive_height must be positive")
	}
	if c.Session.PartialResults && c.Session.PartialIntervalMS <= 0 {
		return fmt.Errorf("session.partial_interval_ms must be positive when partial_results is on")
	}
	if c.Audio.Channels != 1 {
		return fmt.Errorf("only mono input supported; set audio.channels = 1")
	}
	return nil
}

func isMac() bool {
	return runtime.GOOS == "darwin"
}

// MustStatePaths ensures state dirs exist.
func MustStatePaths(cfg *Config) error {
	for _, p := range []string{cfg.Paths.StateDir, filepath.Dir(cfg.Paths.LogPath), filepath.Dir(cfg.Paths.TranscriptPath)} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}
	if os.Getenv(envPrefix+"METRICS_ADDR") != "" {
		cfg.Metrics.Enabled = true
	}
	return nil
}

// PartialInterval returns the partial-results tick.
func (c *Config) PartialInterval() time.Duration {
	return time.Duration(c.Session.PartialIntervalMS) * time.Millisecond
}

// MinRecord returns the shortest take that is worth transcribing.
func (c *Config) MinRecord() time.Duration {
	return time.Duration(c.Session.MinRecordMS) * time.Millisecond
}
