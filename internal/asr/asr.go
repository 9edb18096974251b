// Package asr wraps the local speech recognition engine.
package asr

import (
	"context"
	"errors"
	"strings"
)

// ErrUnavailable is returned when the binary was built without whisper.cpp.
var ErrUnavailable = errors.New("speech recognition unavailable: build with -tags whisper")

// Transcriber converts mono 16 kHz samples into text.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32) (string, error)
	Close() error
}

// Options configures a Transcriber.
type Options struct {
	ModelPath string
	Language  string
	Threads   int
	Prompt    []string
}

// Clean joins recognized segments, dropping bracketed non-speech markers such
// as "[BLANK_AUDIO]" or "(music)" and repeated segments.
func Clean(segments []string) string {
	seen := make(map[string]bool, len(segments))
	out := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.TrimSpace(s)
		if s == "" || isMarker(s) || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return strings.Join(out, " ")
}

func isMarker(s string) bool {
	first, last := s[0], s[len(s)-1]
	return first == '(' || first == '[' || last == ')' || last == ']'
}
