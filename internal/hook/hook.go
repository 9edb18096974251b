package hook

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"holdtalk/internal/config"
	"holdtalk/internal/logging"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
)

// Job represents a hook invocation request.
type Job struct {
	Hook      *config.HookConfig // nil selects by the job text
	Take      string
	Text      string
	Timestamp time.Time
}

// Runner executes hooks with cooldown and prefix handling.
type Runner struct {
	cfg      *config.Config
	logger   *logrus.Logger
	mu       sync.Mutex
	lastRun  map[*config.HookConfig]time.Time
	hostname string
}

func NewRunner(cfg *config.Config, logger *logrus.Logger) *Runner {
	host, _ := os.Hostname()
	return &Runner{
		cfg:      cfg,
		logger:   logger,
		lastRun:  make(map[*config.HookConfig]time.Time),
		hostname: host,
	}
}

// Allow returns whether cooldown allows hk to run.
func (r *Runner) Allow(hk *config.HookConfig) bool {
	if hk == nil {
		return false
	}
	if hk.CooldownSec <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.lastRun[hk]).Seconds() >= hk.CooldownSec
}

// Run executes the job's hook with prefix+text as the last argument. A job
// without a hook uses the first hook matching its text.
func (r *Runner) Run(ctx context.Context, job Job) error {
	hk := job.Hook
	if hk == nil {
		hk = SelectHookConfig(r.cfg, job.Text)
	}
	if hk == nil {
		return fmt.Errorf("no hook configured; add [[hooks]] entries")
	}
	r.mu.Lock()
	r.lastRun[hk] = time.Now()
	r.mu.Unlock()
	return r.run(ctx, hk, job)
}

func (r *Runner) run(ctx context.Context, hk *config.HookConfig, job Job) error {
	cmdStr := hk.Command
	if cmdStr == "" {
		return fmt.Errorf("hook has no command configured")
	}
	args := append([]string{}, hk.Args...)
	if len(args) == 0 && hk.ArgsLine != "" {
		parsed, err := ParseArgs(hk.ArgsLine)
		if err != nil {
			return fmt.Errorf("parse args_line: %w", err)
		}
		args = parsed
	}

	prefix := strings.ReplaceAll(hk.Prefix, "${hostname}", r.hostname)
	text := job.Text
	if hk.RedactPII {
		text = redactPII(text)
	}
	payload := strings.TrimSpace(prefix + text)
	args = append(args, payload)

	runCtx := ctx
	var cancel context.CancelFunc
	if hk.TimeoutSec > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(float64(time.Second)*hk.TimeoutSec))
		defer cancel()
	}
	cmd := exec.CommandContext(runCtx, cmdStr, args...)
	cmd.Env = os.Environ()
	for k, v := range hk.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = append(cmd.Env, fmt.Sprintf("HOLDTALK_TEXT=%s", text))
	cmd.Env = append(cmd.Env, fmt.Sprintf("HOLDTALK_PREFIX=%s", prefix))
	cmd.Env = append(cmd.Env, fmt.Sprintf("HOLDTALK_TAKE=%s", job.Take))

	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		logging.WithTake(r.logger, job.Take).Infof("hook output: %s", strings.TrimSpace(string(out)))
	}
	if err != nil {
		return fmt.Errorf("hook failed: %w", err)
	}
	return nil
}

// ParseArgs splits a shell-style argument string.
func ParseArgs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	return shlex.Split(raw)
}

var (
	emailRE = regexp.MustCompile(`[\w.+-]+@[\w.-]+\.[A-Za-z]{2,}`)
	phoneRE = regexp.MustCompile(`\+?\d[\d\s\-\(\)]{6,}\d`)
)

func redactPII(s string) string {
	s = emailRE.ReplaceAllString(s, "[redacted-email]")
	s = phoneRE.ReplaceAllString(s, "[redacted-phone]")
	return s
}
