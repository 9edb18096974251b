package control

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"holdtalk/internal/config"
	"holdtalk/internal/session"
)

func TestParsePoints(t *testing.T) {
	pts, err := parsePoints([]string{"150,480", " 260 , 200 "})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(pts) != 2 || pts[0] != [2]float64{150, 480} || pts[1] != [2]float64{260, 200} {
		t.Fatalf("points: %v", pts)
	}
	for _, bad := range []string{"150", "a,1", "1,b"} {
		if _, err := parsePoints([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestTailFileSkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log")
	if err := os.WriteFile(path, []byte("a\n\nb\nc\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	lines, err := tailFile(path, 2)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if strings.Join(lines, ",") != "b,c" {
		t.Fatalf("lines: %v", lines)
	}
}

func TestFormatUpdate(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)
	cases := map[string]session.Update{
		"recording":        {Started: true, At: at},
		"cancelled":        {Cancelled: true, At: at},
		"... half":         {Partial: true, Text: "half", At: at},
		"failed: too soon": {Final: true, Error: "too soon", At: at},
		"done":             {Final: true, Text: "done", At: at},
	}
	for want, u := range cases {
		if got := formatUpdate(u); got != "03:04:05  "+want {
			t.Fatalf("formatUpdate(%+v) = %q", u, got)
		}
	}
}

func TestResolveModelPath(t *testing.T) {
	cfg, _ := config.Default()
	cfg.Paths.ModelDir = "/models"
	if got := resolveModelPath(cfg, "ggml-small-q5_1.bin"); got != filepath.Join("/models", "ggml-small-q5_1.bin") {
		t.Fatalf("short name: %s", got)
	}
	if got := resolveModelPath(cfg, "/opt/m.bin"); got != "/opt/m.bin" {
		t.Fatalf("path: %s", got)
	}
}

func TestSetupKnowsDefaultModel(t *testing.T) {
	if _, ok := modelRegistry[defaultModel]; !ok {
		t.Fatalf("default model %s missing from registry", defaultModel)
	}
}

func TestDescribeMove(t *testing.T) {
	cases := []struct {
		mv   MoveResponse
		want string
	}{
		{MoveResponse{From: "none", Zone: "speech", Started: true}, "move 1,2: none -> speech (release commits)"},
		{MoveResponse{From: "speech", Zone: "cancel"}, "move 1,2: speech -> cancel (release discards)"},
		{MoveResponse{From: "none", Zone: "none", Error: "no mic"}, "move 1,2: none -> none (start failed: no mic)"},
		{MoveResponse{From: "speech", Zone: "speech", Ignored: true}, "move 1,2: ignored (below surface)"},
	}
	for _, tc := range cases {
		got, err := describeMove([2]float64{1, 2}, tc.mv)
		if err != nil || got != tc.want {
			t.Fatalf("describeMove(%+v) = %q, %v; want %q", tc.mv, got, err, tc.want)
		}
	}
	if _, err := describeMove([2]float64{1, 2}, MoveResponse{From: "none", Zone: "sideways"}); err == nil {
		t.Fatalf("expected error for unknown zone")
	}
}
