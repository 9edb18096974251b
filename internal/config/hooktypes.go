package config

// HookConfig defines a hook invoked with committed transcripts.
type HookConfig struct {
	Match       []string          `toml:"match"` // tokens to match (case-insensitive); empty matches nothing
	Command     string            `toml:"command"`
	Args        []string          `toml:"args"`
	ArgsLine    string            `toml:"args_line"` // shell-style alternative to args
	Prefix      string            `toml:"prefix"`
	CooldownSec float64           `toml:"cooldown_sec"`
	MinChars    int               `toml:"min_chars"`
	QueueSize   int               `toml:"queue_size"`
	TimeoutSec  float64           `toml:"timeout_sec"`
	Env         map[string]string `toml:"env"`
	RedactPII   bool              `toml:"redact_pii"`
}
