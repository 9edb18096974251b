// Package session implements the recording session driven by the gesture
// controller: microphone capture, partial and final transcription, and a
// broadcast channel of recognition updates.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"holdtalk/internal/asr"
	"holdtalk/internal/audio"
	"holdtalk/internal/logging"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrBusy is returned by StartRecording while a take is open.
	ErrBusy = errors.New("a recording is already in progress")
	// ErrTooShort is reported for takes shorter than the configured minimum.
	ErrTooShort = errors.New("recording too short")
)

// Update is a recognition event for one take.
type Update struct {
	Take      string    `json:"take"`
	Text      string    `json:"text"`
	Started   bool      `json:"started,omitempty"`
	Partial   bool      `json:"partial,omitempty"`
	Final     bool      `json:"final,omitempty"`
	Cancelled bool      `json:"cancelled,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`

	Err error `json:"-"`
}

// View is the observable recognition state.
type View struct {
	Take       string `json:"take,omitempty"`
	Text       string `json:"text"`
	Recording  bool   `json:"recording"`
	InProgress bool   `json:"in_progress"`
}

// Commit is a finished take handed to the commit handler.
type Commit struct {
	Take    string
	Text    string
	Samples []float32
	At      time.Time
}

// Options wires a Session to its collaborators. A nil Capture makes every
// StartRecording fail with audio.ErrUnavailable.
type Options struct {
	Capture         audio.Capture
	Transcriber     asr.Transcriber
	SampleRate      int
	PartialInterval time.Duration // zero disables partial results
	MinRecord       time.Duration
	// DetectSpeech returns the voiced fraction of a take; nil skips the check.
	DetectSpeech   func([]float32) (float64, error)
	MinSpeechRatio float64
	OnCommit       func(Commit)
	Logger         *logrus.Logger
}

type take struct {
	id      string
	started time.Time
	cancel  context.CancelFunc
	done    chan struct{} // closed when the partial loop exits
}

func (t *take) halt() {
	t.cancel()
	<-t.done
}

// Session implements gesture.Recorder. At most one take is open at a time.
type Session struct {
	opts   Options
	logger *logrus.Logger
	ctx    context.Context
	stop   context.CancelFunc

	mu         sync.Mutex
	take       *take
	text       string
	inProgress bool

	subsMu  sync.Mutex
	subs    map[int]chan Update
	nextSub int

	wg sync.WaitGroup
}

// New returns an idle session.
func New(opts Options) *Session {
	if opts.SampleRate == 0 {
		opts.SampleRate = audio.SampleRate
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Session{
		opts:   opts,
		logger: logger,
		ctx:    ctx,
		stop:   stop,
		subs:   make(map[int]chan Update),
	}
}

// StartRecording opens a new take.
func (s *Session) StartRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.take != nil {
		return ErrBusy
	}
	if s.opts.Capture == nil {
		return audio.ErrUnavailable
	}
	if err := s.opts.Capture.Start(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	ctx, cancel := context.WithCancel(s.ctx)
	t := &take{id: uuid.NewString(), started: time.Now(), cancel: cancel, done: make(chan struct{})}
	s.take = t
	s.text = ""
	s.inProgress = true
	if s.opts.PartialInterval > 0 && s.opts.Transcriber != nil {
		go s.partialLoop(ctx, t)
	} else {
		close(t.done)
	}
	logging.WithTake(s.logger, t.id).Info("recording started")
	s.publish(Update{Take: t.id, Started: true, At: t.started})
	return nil
}

// StopRecording closes the open take and finalizes it in the background.
func (s *Session) StopRecording() {
	s.mu.Lock()
	t := s.take
	s.take = nil
	s.mu.Unlock()
	if t == nil {
		return
	}
	samples := s.opts.Capture.Stop()
	s.logger.WithFields(logrus.Fields{"take": t.id, "samples": len(samples)}).Info("recording stopped")
	s.wg.Add(1)
	go s.finalize(t, samples)
}

// CancelRecording discards the open take and clears the recognized text.
func (s *Session) CancelRecording() {
	s.mu.Lock()
	t := s.take
	if t == nil {
		s.mu.Unlock()
		return
	}
	s.take = nil
	s.text = ""
	s.inProgress = false
	s.mu.Unlock()

	s.opts.Capture.Stop()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t.halt()
	}()
	logging.WithTake(s.logger, t.id).Info("recording cancelled")
	s.publish(Update{Take: t.id, Cancelled: true, At: time.Now()})
}

// Toggle starts a take when idle and commits the open one otherwise. It
// reports whether a recording is now open.
func (s *Session) Toggle() (bool, error) {
	s.mu.Lock()
	open := s.take != nil
	s.mu.Unlock()
	if open {
		s.StopRecording()
		return false, nil
	}
	if err := s.StartRecording(); err != nil {
		return false, err
	}
	return true, nil
}

// Snapshot returns the current recognition state.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{Text: s.text, InProgress: s.inProgress, Recording: s.take != nil}
	if s.take != nil {
		v.Take = s.take.id
	}
	return v
}

// Subscribe returns a channel of updates and a function that ends the
// subscription. Updates are dropped for subscribers that fall behind.
func (s *Session) Subscribe(buffer int) (<-chan Update, func()) {
	ch := make(chan Update, max(1, buffer))
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subsMu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
			close(ch)
		})
	}
}

// Wait blocks until background finalization has finished.
func (s *Session) Wait() { s.wg.Wait() }

// Close cancels any open take and waits for background work.
func (s *Session) Close() {
	s.CancelRecording()
	s.stop()
	s.wg.Wait()
}

func (s *Session) publish(u Update) {
	if u.Err != nil {
		u.Error = u.Err.Error()
	}
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

func (s *Session) partialLoop(ctx context.Context, t *take) {
	defer close(t.done)
	ticker := time.NewTicker(s.opts.PartialInterval)
	defer ticker.Stop()
	minSamples := int(s.opts.MinRecord.Seconds() * float64(s.opts.SampleRate))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		samples := s.opts.Capture.Snapshot()
		if len(samples) == 0 || len(samples) < minSamples {
			continue
		}
		text, err := s.opts.Transcriber.Transcribe(ctx, audio.Pad(samples, s.opts.SampleRate/5))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.WithError(err).Debug("partial transcription failed")
			continue
		}
		s.mu.Lock()
		if s.take != t {
			s.mu.Unlock()
			return
		}
		s.text = text
		s.mu.Unlock()
		s.publish(Update{Take: t.id, Text: text, Partial: true, At: time.Now()})
	}
}

func (s *Session) finalize(t *take, samples []float32) {
	defer s.wg.Done()
	t.halt()

	text, err := s.recognize(samples)

	s.mu.Lock()
	if s.take == nil {
		s.inProgress = false
		if err == nil {
			s.text = text
		}
	}
	s.mu.Unlock()

	at := time.Now()
	log := logging.WithTake(s.logger, t.id)
	if err != nil {
		log.WithError(err).Warn("recognition failed")
		s.publish(Update{Take: t.id, Final: true, Err: err, At: at})
		return
	}
	log.WithField("text", text).Info("recognized")
	s.publish(Update{Take: t.id, Text: text, Final: true, At: at})
	if s.opts.OnCommit != nil {
		s.opts.OnCommit(Commit{Take: t.id, Text: text, Samples: samples, At: at})
	}
}

func (s *Session) recognize(samples []float32) (string, error) {
	dur := time.Duration(float64(len(samples)) / float64(s.opts.SampleRate) * float64(time.Second))
	if dur < s.opts.MinRecord || len(samples) == 0 {
		return "", ErrTooShort
	}
	if s.opts.DetectSpeech != nil {
		ratio, err := s.opts.DetectSpeech(samples)
		switch {
		case err != nil:
			s.logger.WithError(err).Warn("vad check skipped")
		case ratio < s.opts.MinSpeechRatio:
			return "", audio.ErrNoSpeech
		}
	}
	if s.opts.Transcriber == nil {
		return "", asr.ErrUnavailable
	}
	text, err := s.opts.Transcriber.Transcribe(s.ctx, audio.Pad(samples, s.opts.SampleRate/5))
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	if text == "" {
		return "", audio.ErrNoSpeech
	}
	return text, nil
}
