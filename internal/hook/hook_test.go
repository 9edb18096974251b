package hook

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"holdtalk/internal/config"
	"holdtalk/internal/logging"
)

func TestAllowCooldown(t *testing.T) {
	cfg, _ := config.Default()
	cfg.Hooks = []config.HookConfig{{
		Command:     "/bin/echo",
		CooldownSec: 0.5,
	}}
	r := NewRunner(cfg, logging.NewTestLogger())
	hk := &cfg.Hooks[0]

	if !r.Allow(hk) {
		t.Fatalf("first call should run")
	}
	if err := r.Run(context.Background(), Job{Text: "test", Timestamp: time.Now()}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if r.Allow(hk) {
		t.Fatalf("cooldown should block immediate subsequent run")
	}
	time.Sleep(time.Duration(hk.CooldownSec*float64(time.Second)) + 20*time.Millisecond)
	if !r.Allow(hk) {
		t.Fatalf("should run after cooldown")
	}
}

func TestRunSelectsHookByText(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := config.Default()
	cfg.Hooks = []config.HookConfig{
		{Command: "/bin/sh", ArgsLine: `-c 'printf "%s" "$1" > ` + filepath.Join(dir, "default") + `' hook`},
		{Match: []string{"remember"}, Command: "/bin/sh", ArgsLine: `-c 'printf "%s" "$1" > ` + filepath.Join(dir, "notes") + `' hook`, CooldownSec: 60},
	}
	r := NewRunner(cfg, logging.NewTestLogger())
	if err := r.Run(context.Background(), Job{Take: "t", Text: "remember the milk"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if data, err := os.ReadFile(filepath.Join(dir, "notes")); err != nil || string(data) != "remember the milk" {
		t.Fatalf("notes hook: %q %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "default")); !os.IsNotExist(err) {
		t.Fatalf("default hook ran for a matching transcript")
	}
	if r.Allow(&cfg.Hooks[1]) {
		t.Fatalf("selected hook should be cooling down")
	}
	if !r.Allow(&cfg.Hooks[0]) {
		t.Fatalf("cooldown leaked to the other hook")
	}
}

func TestRunUsesPrefixArgsLineAndEnv(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.txt")
	cfg, _ := config.Default()
	cfg.Hooks = []config.HookConfig{{
		Command:  "/bin/sh",
		ArgsLine: `-c 'printf "%s|%s" "$HOLDTALK_TAKE" "$1" > ` + out + `' hook`,
		Prefix:   "pref:",
	}}

	r := NewRunner(cfg, logging.NewTestLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Run(ctx, Job{Take: "take-1", Text: "hello", Timestamp: time.Now()}); err != nil {
		t.Fatalf("run: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := string(data); got != "take-1|pref:hello" {
		t.Fatalf("hook saw %q", got)
	}
}

func TestRunWithoutHooks(t *testing.T) {
	cfg, _ := config.Default()
	cfg.Hooks = nil
	r := NewRunner(cfg, logging.NewTestLogger())
	if r.Allow(SelectHookConfig(cfg, "x")) {
		t.Fatalf("no hook should not run")
	}
	if err := r.Run(context.Background(), Job{Text: "x"}); err == nil {
		t.Fatalf("expected error without hooks")
	}
}

func TestSelectHookConfigMatchesTokens(t *testing.T) {
	cfg, _ := config.Default()
	cfg.Hooks = []config.HookConfig{
		{Match: []string{"alpha"}, Command: "/bin/echo"},
		{Match: []string{"note", "remember"}, Command: "/bin/echo"},
	}
	if hk := SelectHookConfig(cfg, "Remember to buy milk"); hk != &cfg.Hooks[1] {
		t.Fatalf("expected second hook for 'remember'")
	}
	if hk := SelectHookConfig(cfg, "hello alpha"); hk != &cfg.Hooks[0] {
		t.Fatalf("expected first hook for alpha")
	}
	if hk := SelectHookConfig(cfg, "nothing here"); hk != &cfg.Hooks[0] {
		t.Fatalf("expected fallback to first hook")
	}
	cfg.Hooks = nil
	if hk := SelectHookConfig(cfg, "x"); hk != nil {
		t.Fatalf("expected nil without hooks")
	}
}

func TestRedactPII(t *testing.T) {
	got := redactPII("mail me at a.b@example.com or +1 555 123 4567")
	if strings.Contains(got, "example.com") || strings.Contains(got, "555") {
		t.Fatalf("not redacted: %q", got)
	}
}
