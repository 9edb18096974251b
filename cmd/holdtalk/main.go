package main

import (
	"fmt"
	"os"
	"strings"

	"holdtalk/internal/control"
	"holdtalk/internal/daemon"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var keyCommands = [][2]string{
	{"start|stop|restart", "daemon lifecycle"},
	{"status [--json]", "zone, recording state, recent transcripts"},
	{"gesture x,y [x,y...]", "replay a hold-to-talk pointer path"},
	{"toggle", "tap-to-talk: start, or stop and commit"},
	{"watch [--once]", "stream partial and final transcripts"},
	{"history", "committed transcripts from the log"},
	{"mic list|set", "select input device (alias: microphone, mics)"},
	{"transcribe <file.wav>", "transcribe a recording offline"},
	{"doctor|setup", "check deps / download the configured model"},
	{"models list|download|set", "manage whisper.cpp models"},
	{"service install|uninstall|status", "launchd (macOS) or systemd user unit"},
	{"health|tail-log|test-hook", "liveness, log tail, manual hook"},
}

var examples = []string{
	"holdtalk start --metrics-addr 127.0.0.1:9318",
	"holdtalk gesture --hold 1s 195,830 300,400",
	"holdtalk watch --once",
	"holdtalk mic set --index 1",
	"holdtalk models download ggml-large-v3-turbo-q8_0.bin",
	"holdtalk service install --env HOLDTALK_LOG_LEVEL=debug",
	"holdtalk test-hook \"ship it\"",
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	root := &cobra.Command{
		Use:   "holdtalk",
		Short: "holdtalk - hold-to-talk dictation daemon",
		Long: `holdtalk turns a press-and-hold pointer gesture into dictation. Pressing into the
speech band starts recording; releasing commits the take (or discards it when the
pointer is released over the cancel zone). Committed text is transcribed locally with
whisper.cpp and handed to a configurable hook.`,
		Example:               "  " + strings.Join(examples, "\n  "),
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
	}

	root.Version = version
	root.SetVersionTemplate("holdtalk v{{.Version}}\n")

	cfgPath := root.PersistentFlags().StringP("config", "c", "", "Path to config file (TOML). Defaults to ~/.config/holdtalk/config.toml")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		daemon.NewStartCmd(cfgPath),
		daemon.NewStopCmd(cfgPath),
		daemon.NewRestartCmd(cfgPath),
		control.NewStatusCmd(cfgPath),
		control.NewHealthCmd(cfgPath),
		control.NewTailLogCmd(cfgPath),
		control.NewHistoryCmd(cfgPath),
		control.NewGestureCmd(cfgPath),
		control.NewToggleCmd(cfgPath),
		control.NewWatchCmd(cfgPath),
		control.NewMicCmd(cfgPath),
		control.NewTestHookCmd(cfgPath),
		control.NewDoctorCmd(cfgPath),
		control.NewServiceRootCmd(cfgPath),
		control.NewSetupCmd(cfgPath),
		control.NewTranscribeCmd(cfgPath),
		control.NewModelsCmd(cfgPath),
	)

	// Hidden foreground serve command used by start and the service unit.
	root.AddCommand(daemon.NewServeCmd(cfgPath))

	applyColorHelp(root)

	return root.Execute()
}

func applyColorHelp(root *cobra.Command) {
	const (
		boldBlue = "\033[1;34m"
		green    = "\033[32m"
		bold     = "\033[1m"
		dim      = "\033[2m"
		reset    = "\033[0m"
	)
	defaultHelp := root.HelpFunc()
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != root {
			defaultHelp(cmd, args)
			return
		}
		out := cmd.OutOrStdout()
		write := func(format string, args ...any) { _, _ = fmt.Fprintf(out, format, args...) }

		write("%sholdtalk%s - hold-to-talk dictation daemon %s(v%s)%s\n", boldBlue, reset, dim, version, reset)
		write("%sPress, speak, release. Slide left to cancel.%s\n\n", dim, reset)

		write("%sUsage%s\n  holdtalk [command] [flags]\n\n", bold, reset)

		write("%sKey commands%s\n", bold, reset)
		for _, kc := range keyCommands {
			write("  %-34s %s\n", kc[0], kc[1])
		}
		write("\n%sNotable flags & env%s\n", bold, reset)
		write("  --metrics-addr <addr>   enable /metrics (Prometheus text)\n")
		write("  --no-partial, --no-vad  per-run session overrides\n")
		write("  -c, --config <path>     config file (default ~/.config/holdtalk/config.toml)\n")
		write("  Env: HOLDTALK_MIC, HOLDTALK_MODEL_PATH, HOLDTALK_LANGUAGE,\n")
		write("       HOLDTALK_LOG_LEVEL=debug, HOLDTALK_LOG_FORMAT=json, HOLDTALK_METRICS_ADDR\n\n")

		write("%sExamples%s\n", bold, reset)
		for _, ex := range examples {
			write("  %s\n", ex)
		}
		write("\n%sCommands%s\n", bold, reset)
		for _, c := range cmd.Commands() {
			if c.Hidden {
				continue
			}
			write("  %s%-15s%s %s\n", green, c.Name(), reset, c.Short)
		}
	})
}
