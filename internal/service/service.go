// Package service writes per-user service definitions that keep the daemon
// running: a launchd agent on macOS and a systemd user unit on Linux.
package service

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"text/template"
)

// Label identifies the agent to launchd and names the systemd unit.
const Label = "com.holdtalk.agent"

// Kind selects the service manager format.
type Kind int

const (
	Launchd Kind = iota
	Systemd
)

// Current returns the service manager for this platform.
func Current() Kind {
	if runtime.GOOS == "darwin" {
		return Launchd
	}
	return Systemd
}

func (k Kind) String() string {
	if k == Launchd {
		return "launchd"
	}
	return "systemd"
}

const launchdTemplate = `<?xml version='1.0' encoding='UTF-8'?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
  <key>Label</key><string>{{.Label}}</string>
  <key>ProgramArguments</key>
  <array>
    <string>{{.Binary}}</string>
    <string>serve</string>
    <string>--config</string>
    <string>{{.Config}}</string>
  </array>
  <key>RunAtLoad</key><true/>
  <key>KeepAlive</key><dict><key>SuccessfulExit</key><false/></dict>
  <key>StandardOutPath</key><string>{{.Log}}</string>
  <key>StandardErrorPath</key><string>{{.Log}}</string>
  {{- if .Env }}
  <key>EnvironmentVariables</key>
  <dict>
    {{- range .Env }}
    <key>{{.Key}}</key><string>{{.Value}}</string>
    {{- end }}
  </dict>
  {{- end }}
</dict>
</plist>
`

const systemdTemplate = `[Unit]
Description=holdtalk push-to-talk dictation daemon
After=sound.target

[Service]
ExecStart={{.Binary}} serve --config {{.Config}}
Restart=on-failure
{{- range .Env }}
Environment={{.Key}}={{.Value}}
{{- end }}

[Install]
WantedBy=default.target
`

var templates = map[Kind]*template.Template{
	Launchd: template.Must(template.New("launchd").Parse(launchdTemplate)),
	Systemd: template.Must(template.New("systemd").Parse(systemdTemplate)),
}

// Params describes the installed service.
type Params struct {
	Label  string
	Binary string
	Config string
	Log    string
	Env    map[string]string
}

type envPair struct{ Key, Value string }

// Path returns where the service definition for label lives.
func Path(kind Kind, label string) string {
	home, _ := os.UserHomeDir()
	if kind == Launchd {
		return filepath.Join(home, "Library", "LaunchAgents", label+".plist")
	}
	return filepath.Join(home, ".config", "systemd", "user", label+".service")
}

// Render writes the service definition for params.
func Render(w io.Writer, kind Kind, params Params) error {
	keys := make([]string, 0, len(params.Env))
	for k := range params.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]envPair, 0, len(keys))
	for _, k := range keys {
		env = append(env, envPair{Key: k, Value: params.Env[k]})
	}
	data := struct {
		Params
		Env []envPair
	}{Params: params, Env: env}
	return templates[kind].Execute(w, data)
}

// Install writes the service definition and returns its path.
func Install(kind Kind, params Params) (string, error) {
	path := Path(kind, params.Label)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := Render(f, kind, params); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("render %s: %w", kind, err)
	}
	return path, f.Close()
}

// Uninstall removes the service definition if present.
func Uninstall(kind Kind, label string) (string, error) {
	path := Path(kind, label)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return path, err
	}
	return path, nil
}

// Status returns whether the service definition exists.
func Status(kind Kind, label string) (string, bool) {
	path := Path(kind, label)
	_, err := os.Stat(path)
	return path, err == nil
}
