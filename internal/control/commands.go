package control

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"holdtalk/internal/asr"
	"holdtalk/internal/audio"
	"holdtalk/internal/config"
	"holdtalk/internal/doctor"
	"holdtalk/internal/gesture"
	"holdtalk/internal/hook"
	"holdtalk/internal/logging"
	"holdtalk/internal/session"
	"holdtalk/internal/transcript"

	"github.com/spf13/cobra"
)

func dialConfig(cfgPath string) (*Client, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	return Dial(cfg.Paths.SocketPath)
}

// NewStatusCmd queries daemon status.
func NewStatusCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dialConfig(*cfgPath)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			status, err := c.Status()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(out).Encode(status)
			}
			fmt.Fprintf(out, "running: %v\nuptime: %.1fs\nzone: %s\nrecording: %v\n",
				status.Running, status.UptimeSec, status.Zone, status.Recording)
			if status.Session.InProgress || status.Session.Text != "" {
				fmt.Fprintf(out, "text: %s\n", status.Session.Text)
			}
			for _, t := range status.Transcripts {
				fmt.Fprintf(out, "%s  %s\n", t.Timestamp.Local().Format("15:04:05"), t.Text)
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "output JSON")
	return cmd
}

// NewHealthCmd pings the control socket.
func NewHealthCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Ping the daemon over its control socket",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dialConfig(*cfgPath)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			var resp SimpleResponse
			if err := c.Do(Request{Op: OpHealth}, &resp); err != nil {
				return err
			}
			if !resp.OK {
				return fmt.Errorf("unhealthy: %s", resp.Message)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
}

// NewTailLogCmd tails the main log file (simple last N lines).
func NewTailLogCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail-log",
		Short: "Show last log lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			n, _ := cmd.Flags().GetInt("lines")
			lines, err := tailFile(cfg.Paths.LogPath, n)
			if err != nil {
				return err
			}
			for _, l := range lines {
				fmt.Fprintln(cmd.OutOrStdout(), l)
			}
			return nil
		},
	}
	cmd.Flags().IntP("lines", "n", 50, "number of lines")
	return cmd
}

func tailFile(path string, n int) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, l := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

// NewHistoryCmd prints committed transcripts from the transcript log.
func NewHistoryCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show committed transcripts from the log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			n, _ := cmd.Flags().GetInt("lines")
			entries, err := transcript.NewOS(cfg.Paths.TranscriptPath, n).ReadLast(n)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(out, "%s  %s\n", e.Timestamp.Local().Format(time.DateTime), e.Text)
			}
			return nil
		},
	}
	cmd.Flags().IntP("lines", "n", 20, "number of transcripts")
	return cmd
}

// NewGestureCmd replays a pointer path against the running daemon: a move
// for every point, then a pointer-up at the last one.
func NewGestureCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gesture x,y [x,y...]",
		Short: "Replay a hold-to-talk gesture (moves, then release at the last point)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			points, err := parsePoints(args)
			if err != nil {
				return err
			}
			width, _ := cmd.Flags().GetFloat64("width")
			height, _ := cmd.Flags().GetFloat64("height")
			hold, _ := cmd.Flags().GetDuration("hold")
			c, err := dialConfig(*cfgPath)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			out := cmd.OutOrStdout()
			for _, p := range points {
				mv, err := c.Move(p[0], p[1], width, height)
				if err != nil {
					return err
				}
				line, err := describeMove(p, mv)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, line)
				if hold > 0 {
					time.Sleep(hold)
				}
			}
			last := points[len(points)-1]
			up, err := c.Up(last[0], last[1], width, height)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "release in %s: %s\n", up.Zone, up.Action)
			return nil
		},
	}
	cmd.Flags().Float64("width", 390, "surface width")
	cmd.Flags().Float64("height", 844, "surface height")
	cmd.Flags().Duration("hold", 0, "pause after each move (gives the recorder audio to capture)")
	return cmd
}

// describeMove renders one move response, noting what a release in the
// reported zone would do.
func describeMove(p [2]float64, mv MoveResponse) (string, error) {
	head := fmt.Sprintf("move %.0f,%.0f:", p[0], p[1])
	if mv.Ignored {
		return head + " ignored (below surface)", nil
	}
	from, err := gesture.ParseZone(mv.From)
	if err != nil {
		return "", fmt.Errorf("daemon reply: %w", err)
	}
	to, err := gesture.ParseZone(mv.Zone)
	if err != nil {
		return "", fmt.Errorf("daemon reply: %w", err)
	}
	line := fmt.Sprintf("%s %s -> %s", head, from, to)
	switch {
	case mv.Error != "":
		return line + " (start failed: " + mv.Error + ")", nil
	case to == gesture.ZoneCancel:
		return line + " (release discards)", nil
	case to != gesture.ZoneNone:
		return line + " (release commits)", nil
	}
	return line, nil
}

func parsePoints(args []string) ([][2]float64, error) {
	points := make([][2]float64, 0, len(args))
	for _, a := range args {
		xs, ys, ok := strings.Cut(a, ",")
		if !ok {
			return nil, fmt.Errorf("bad point %q, want x,y", a)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
		if err != nil {
			return nil, fmt.Errorf("bad x in %q: %w", a, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
		if err != nil {
			return nil, fmt.Errorf("bad y in %q: %w", a, err)
		}
		points = append(points, [2]float64{x, y})
	}
	return points, nil
}

// NewToggleCmd starts or commits a take without a gesture.
func NewToggleCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle",
		Short: "Start recording, or stop and commit the open take",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dialConfig(*cfgPath)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			var resp ToggleResponse
			if err := c.Do(Request{Op: OpToggle}, &resp); err != nil {
				return err
			}
			if resp.Error != "" {
				return fmt.Errorf("toggle: %s", resp.Error)
			}
			if resp.Recording {
				fmt.Fprintln(cmd.OutOrStdout(), "recording")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "stopped; transcribing")
			}
			return nil
		},
	}
}

// NewWatchCmd streams recognition updates.
func NewWatchCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream recognition updates from the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dialConfig(*cfgPath)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			jsonOut, _ := cmd.Flags().GetBool("json")
			once, _ := cmd.Flags().GetBool("once")
			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			return c.Watch(func(u session.Update) bool {
				if jsonOut {
					_ = enc.Encode(u)
				} else {
					fmt.Fprintln(out, formatUpdate(u))
				}
				return !(once && (u.Final || u.Cancelled))
			})
		},
	}
	cmd.Flags().Bool("json", false, "output JSON lines")
	cmd.Flags().Bool("once", false, "exit after the first finished take")
	return cmd
}

func formatUpdate(u session.Update) string {
	ts := u.At.Local().Format("15:04:05")
	switch {
	case u.Started:
		return ts + "  recording"
	case u.Cancelled:
		return ts + "  cancelled"
	case u.Partial:
		return ts + "  ... " + u.Text
	case u.Error != "":
		return ts + "  failed: " + u.Error
	default:
		return ts + "  " + u.Text
	}
}

// NewMicCmd lists and selects input devices.
func NewMicCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mic",
		Aliases: []string{"microphone", "mics"},
		Short:   "List or select the input device",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available microphones",
		RunE: func(cmd *cobra.Command, args []string) error {
			devs, err := audio.ListDevices()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, d := range devs {
				mark := " "
				if d.Default {
					mark = "*"
				}
				fmt.Fprintf(out, "%s [%d] %s (%d ch, %.0fms)\n", mark, d.Index, d.Name, d.Channels, d.LatencyMs)
			}
			return nil
		},
	})
	set := &cobra.Command{
		Use:   "set [name]",
		Short: "Set microphone device name in config",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			if idx, _ := cmd.Flags().GetInt("index"); idx >= 0 {
				devs, err := audio.ListDevices()
				if err != nil {
					return err
				}
				for _, d := range devs {
					if d.Index == idx {
						name = d.Name
					}
				}
				if name == "" {
					return fmt.Errorf("no input device with index %d", idx)
				}
			}
			if name == "" {
				return fmt.Errorf("pass a device name or --index")
			}
			cfg.Audio.DeviceName = name
			if err := config.Save(cfg, cfg.Paths.ConfigPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mic set to %q in %s (restart the daemon to apply)\n", name, cfg.Paths.ConfigPath)
			return nil
		},
	}
	set.Flags().Int("index", -1, "device index from mic list")
	cmd.AddCommand(set)
	return cmd
}

// NewTestHookCmd triggers hook manually.
func NewTestHookCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "test-hook \"some text\"",
		Short: "Send sample text through the matching hook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}
			r := hook.NewRunner(cfg, logger)
			job := hook.Job{Take: "test", Text: args[0], Timestamp: time.Now()}
			return r.Run(cmd.Context(), job)
		},
	}
}

// NewDoctorCmd runs environment checks.
func NewDoctorCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check dependencies and config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			results := doctor.Run(cfg)
			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				if err := json.NewEncoder(out).Encode(results); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					status := "ok"
					if !r.Pass {
						status = "fail"
					}
					fmt.Fprintf(out, "%-18s %-4s %s\n", r.Name, status, r.Detail)
				}
			}
			if doctor.Failed(results) {
				return fmt.Errorf("doctor found issues")
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "output JSON")
	return cmd
}

// NewTranscribeCmd transcribes a WAV file offline with the configured model.
func NewTranscribeCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcribe <file.wav>",
		Short: "Transcribe a WAV file with the configured model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			samples, err := audio.ReadWAV(args[0])
			if err != nil {
				return err
			}
			tr, err := asr.New(asr.Options{
				ModelPath: cfg.ASR.ModelPath,
				Language:  cfg.ASR.Language,
				Threads:   cfg.ASR.Threads,
				Prompt:    cfg.ASR.Prompt,
			})
			if err != nil {
				return err
			}
			defer func() { _ = tr.Close() }()
			text, err := tr.Transcribe(cmd.Context(), audio.Pad(samples, audio.SampleRate/5))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)

			if runHook, _ := cmd.Flags().GetBool("hook"); runHook && text != "" {
				logger, err := logging.Configure(cfg)
				if err != nil {
					return err
				}
				job := hook.Job{Take: "file", Text: text, Timestamp: time.Now()}
				return hook.NewRunner(cfg, logger).Run(cmd.Context(), job)
			}
			return nil
		},
	}
	cmd.Flags().Bool("hook", false, "dispatch the transcript through the matching hook")
	return cmd
}
