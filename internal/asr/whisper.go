//go:build whisper

package asr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

type whisperTranscriber struct {
	opts Options
	// whisper contexts share the model; serialize Process calls.
	mu    sync.Mutex
	model whisper.Model
}

// New loads the whisper.cpp model at opts.ModelPath.
func New(opts Options) (Transcriber, error) {
	model, err := whisper.New(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	return &whisperTranscriber{opts: opts, model: model}, nil
}

func (w *whisperTranscriber) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	wctx, err := w.model.NewContext()
	if err != nil {
		return "", err
	}
	if w.opts.Threads > 0 {
		wctx.SetThreads(uint(w.opts.Threads))
	}
	if lang := strings.TrimSpace(w.opts.Language); lang != "" {
		if err := wctx.SetLanguage(lang); err != nil {
			return "", fmt.Errorf("set language %q: %w", lang, err)
		}
	}
	if len(w.opts.Prompt) > 0 {
		wctx.SetInitialPrompt(strings.Join(w.opts.Prompt, ", "))
	}
	// returning false from the encoder-begin callback aborts the run
	keepGoing := func() bool { return ctx.Err() == nil }
	if err := wctx.Process(samples, keepGoing, nil, nil); err != nil {
		return "", err
	}
	var segs []string
	for {
		seg, err := wctx.NextSegment()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}
		segs = append(segs, seg.Text)
	}
	return Clean(segs), nil
}

func (w *whisperTranscriber) Close() error {
	return w.model.Close()
}
