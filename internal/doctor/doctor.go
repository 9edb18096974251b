// Package doctor runs local diagnostics for the daemon's dependencies.
package doctor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"holdtalk/internal/audio"
	"holdtalk/internal/config"
)

// Result represents a diagnostic check.
type Result struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Detail string `json:"detail"`
}

// Run executes doctor checks.
func Run(cfg *config.Config) []Result {
	results := []Result{
		checkFile("config path", cfg.Paths.ConfigPath),
		checkFile("model file", cfg.ASR.ModelPath),
		checkGesture(cfg),
		checkStateDir(cfg.Paths.StateDir),
	}
	if len(cfg.Hooks) == 0 {
		results = append(results, Result{Name: "hooks", Pass: false, Detail: "no [[hooks]] configured; transcripts will not be dispatched"})
	}
	for i := range cfg.Hooks {
		results = append(results, checkHookExecutable(fmt.Sprintf("hooks[%d].command", i), cfg.Hooks[i].Command))
	}
	results = append(results, checkPortAudioPkgConfig(), checkCapture())
	return results
}

// Failed reports whether any check failed.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return true
		}
	}
	return false
}

func checkFile(label, path string) Result {
	if path == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	if _, err := os.Stat(os.ExpandEnv(path)); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: path}
}

func checkGesture(cfg *config.Config) Result {
	if err := cfg.Validate(); err != nil {
		return Result{Name: "gesture bands", Pass: false, Detail: err.Error()}
	}
	return Result{Name: "gesture bands", Pass: true,
		Detail: fmt.Sprintf("active %.0f / inactive %.0f", cfg.Gesture.ActiveHeight, cfg.Gesture.InactiveHeight)}
}

func checkStateDir(dir string) Result {
	label := "state dir"
	if dir == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return Result{Name: label, Pass: false, Detail: "not writable: " + err.Error()}
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return Result{Name: label, Pass: true, Detail: dir}
}

func checkHookExecutable(label, cmd string) Result {
	if cmd == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	path := os.ExpandEnv(cmd)
	// If contains a path separator, treat as explicit path.
	if strings.ContainsRune(path, filepath.Separator) {
		info, err := os.Stat(path)
		if err != nil {
			return Result{Name: label, Pass: false, Detail: err.Error()}
		}
		if info.IsDir() {
			return Result{Name: label, Pass: false, Detail: "is a directory; set command to an executable file"}
		}
		if info.Mode().Perm()&0o111 == 0 {
			return Result{Name: label, Pass: false, Detail: "not executable; chmod +x or choose another command"}
		}
		return Result{Name: label, Pass: true, Detail: path}
	}
	// Else search PATH.
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: resolved}
}

func checkPortAudioPkgConfig() Result {
	pkg, err := exec.LookPath("pkg-config")
	if err != nil {
		return Result{Name: "pkg-config", Pass: false, Detail: "pkg-config not found"}
	}
	cmd := exec.Command(pkg, "--exists", "portaudio-2.0")
	if err := cmd.Run(); err != nil {
		return Result{Name: "portaudio", Pass: false, Detail: "portaudio-2.0 not found (brew install portaudio / apt install portaudio19-dev)"}
	}
	versionCmd := exec.Command(pkg, "--modversion", "portaudio-2.0")
	if out, err := versionCmd.Output(); err == nil {
		return Result{Name: "portaudio", Pass: true, Detail: strings.TrimSpace(string(out))}
	}
	return Result{Name: "portaudio", Pass: true, Detail: "found via pkg-config"}
}

func checkCapture() Result {
	err := audio.CheckPortAudio()
	switch {
	case errors.Is(err, audio.ErrUnavailable):
		return Result{Name: "audio capture", Pass: false, Detail: "binary built without the whisper tag"}
	case err != nil:
		return Result{Name: "audio capture", Pass: false, Detail: err.Error()}
	}
	return Result{Name: "audio capture", Pass: true, Detail: "ok"}
}
