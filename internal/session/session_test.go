package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"holdtalk/internal/audio"
	"holdtalk/internal/gesture"
	"holdtalk/internal/logging"
)

type fakeCapture struct {
	mu       sync.Mutex
	running  bool
	samples  int
	startErr error
}

func (f *fakeCapture) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}

func (f *fakeCapture) Snapshot() []float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return nil
	}
	return make([]float32, f.samples)
}

func (f *fakeCapture) Stop() []float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return nil
	}
	f.running = false
	return make([]float32, f.samples)
}

func (f *fakeCapture) Close() {}

type fakeASR struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (f *fakeASR) Transcribe(ctx context.Context, samples []float32) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.text, f.err
}

func (f *fakeASR) Close() error { return nil }

type commits struct {
	mu  sync.Mutex
	got []Commit
}

func (c *commits) add(cm Commit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, cm)
}

func (c *commits) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func newTestSession(capture *fakeCapture, tr *fakeASR, c *commits) *Session {
	return New(Options{
		Capture:     capture,
		Transcriber: tr,
		SampleRate:  audio.SampleRate,
		MinRecord:   300 * time.Millisecond,
		OnCommit:    c.add,
		Logger:      logging.NewTestLogger(),
	})
}

func waitFor(t *testing.T, ch <-chan Update, pred func(Update) bool) Update {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case u := <-ch:
			if pred(u) {
				return u
			}
		case <-timeout:
			t.Fatalf("timed out waiting for update")
		}
	}
}

func TestStartStopCommits(t *testing.T) {
	capture := &fakeCapture{samples: audio.SampleRate}
	tr := &fakeASR{text: "hello there"}
	var c commits
	s := newTestSession(capture, tr, &c)
	defer s.Close()
	updates, unsubscribe := s.Subscribe(8)
	defer unsubscribe()

	if err := s.StartRecording(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if v := s.Snapshot(); !v.Recording || !v.InProgress || v.Take == "" {
		t.Fatalf("snapshot while recording: %+v", v)
	}
	s.StopRecording()
	u := waitFor(t, updates, func(u Update) bool { return u.Final })
	if u.Text != "hello there" || u.Err != nil {
		t.Fatalf("final update: %+v", u)
	}
	s.Wait()
	if c.len() != 1 || c.got[0].Text != "hello there" {
		t.Fatalf("commits: %+v", c.got)
	}
	if v := s.Snapshot(); v.Recording || v.InProgress || v.Text != "hello there" {
		t.Fatalf("snapshot after commit: %+v", v)
	}
}

func TestStartWhileRecordingIsBusy(t *testing.T) {
	s := newTestSession(&fakeCapture{samples: audio.SampleRate}, &fakeASR{text: "x"}, &commits{})
	defer s.Close()
	if err := s.StartRecording(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.StartRecording(); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestStartWithoutCaptureFails(t *testing.T) {
	s := New(Options{Logger: logging.NewTestLogger()})
	defer s.Close()
	if err := s.StartRecording(); !errors.Is(err, audio.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if v := s.Snapshot(); v.Recording || v.InProgress {
		t.Fatalf("failed start left state: %+v", v)
	}
}

func TestCancelDiscards(t *testing.T) {
	tr := &fakeASR{text: "secret"}
	var c commits
	s := newTestSession(&fakeCapture{samples: audio.SampleRate}, tr, &c)
	defer s.Close()
	updates, unsubscribe := s.Subscribe(8)
	defer unsubscribe()

	if err := s.StartRecording(); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.CancelRecording()
	waitFor(t, updates, func(u Update) bool { return u.Cancelled })
	s.Wait()
	if c.len() != 0 || tr.calls != 0 {
		t.Fatalf("cancelled take was transcribed: commits=%d calls=%d", c.len(), tr.calls)
	}
	if v := s.Snapshot(); v.Text != "" || v.InProgress || v.Recording {
		t.Fatalf("snapshot after cancel: %+v", v)
	}
}

func TestStopAndCancelWithoutTakeAreNoops(t *testing.T) {
	var c commits
	s := newTestSession(&fakeCapture{}, &fakeASR{}, &c)
	defer s.Close()
	s.StopRecording()
	s.CancelRecording()
	s.Wait()
	if c.len() != 0 {
		t.Fatalf("unexpected commit")
	}
}

func TestShortTakeReportsTooShort(t *testing.T) {
	var c commits
	s := newTestSession(&fakeCapture{samples: audio.SampleRate / 10}, &fakeASR{text: "x"}, &c)
	defer s.Close()
	updates, unsubscribe := s.Subscribe(8)
	defer unsubscribe()

	if err := s.StartRecording(); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.StopRecording()
	u := waitFor(t, updates, func(u Update) bool { return u.Final })
	if !errors.Is(u.Err, ErrTooShort) || u.Error == "" {
		t.Fatalf("expected too short, got %+v", u)
	}
	s.Wait()
	if c.len() != 0 {
		t.Fatalf("short take committed")
	}
}

func TestSilentTakeReportsNoSpeech(t *testing.T) {
	var c commits
	s := New(Options{
		Capture:        &fakeCapture{samples: audio.SampleRate},
		Transcriber:    &fakeASR{text: "ghost"},
		DetectSpeech:   func([]float32) (float64, error) { return 0, nil },
		MinSpeechRatio: 0.1,
		OnCommit:       c.add,
		Logger:         logging.NewTestLogger(),
	})
	defer s.Close()
	updates, unsubscribe := s.Subscribe(8)
	defer unsubscribe()

	if err := s.StartRecording(); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.StopRecording()
	u := waitFor(t, updates, func(u Update) bool { return u.Final })
	if !errors.Is(u.Err, audio.ErrNoSpeech) {
		t.Fatalf("expected no speech, got %+v", u)
	}
}

func TestPartialResults(t *testing.T) {
	tr := &fakeASR{text: "partial words"}
	s := New(Options{
		Capture:         &fakeCapture{samples: audio.SampleRate},
		Transcriber:     tr,
		PartialInterval: 5 * time.Millisecond,
		Logger:          logging.NewTestLogger(),
	})
	defer s.Close()
	updates, unsubscribe := s.Subscribe(16)
	defer unsubscribe()

	if err := s.StartRecording(); err != nil {
		t.Fatalf("start: %v", err)
	}
	u := waitFor(t, updates, func(u Update) bool { return u.Partial })
	if u.Text != "partial words" {
		t.Fatalf("partial: %+v", u)
	}
	if v := s.Snapshot(); v.Text != "partial words" || !v.Recording {
		t.Fatalf("snapshot: %+v", v)
	}
	s.CancelRecording()
}

func TestToggle(t *testing.T) {
	var c commits
	s := newTestSession(&fakeCapture{samples: audio.SampleRate}, &fakeASR{text: "tap"}, &c)
	defer s.Close()
	on, err := s.Toggle()
	if err != nil || !on {
		t.Fatalf("toggle on: %v %v", on, err)
	}
	on, err = s.Toggle()
	if err != nil || on {
		t.Fatalf("toggle off: %v %v", on, err)
	}
	s.Wait()
	if c.len() != 1 {
		t.Fatalf("toggle should commit once, got %d", c.len())
	}
}

func TestDrivenByGestureController(t *testing.T) {
	var c commits
	s := newTestSession(&fakeCapture{samples: audio.SampleRate}, &fakeASR{text: "ni hao"}, &c)
	defer s.Close()
	ctl := gesture.NewController(s)
	surface := gesture.Surface{Width: 300, Height: 500}

	ctl.OnPointerMove(gesture.Point{X: 150, Y: 480}, surface)
	ctl.OnPointerMove(gesture.Point{X: 260, Y: 200}, surface)
	if a := ctl.OnPointerUp(gesture.Point{X: 260, Y: 200}, surface); a != gesture.ActionCommitted {
		t.Fatalf("action=%s", a)
	}
	s.Wait()
	if c.len() != 1 || c.got[0].Text != "ni hao" {
		t.Fatalf("commits: %+v", c.got)
	}

	ctl.OnPointerMove(gesture.Point{X: 150, Y: 480}, surface)
	if a := ctl.OnPointerUp(gesture.Point{X: 40, Y: 200}, surface); a != gesture.ActionCancelled {
		t.Fatalf("action=%s", a)
	}
	s.Wait()
	if c.len() != 1 {
		t.Fatalf("cancelled gesture committed")
	}
}

func TestFailedStartAbortsGesture(t *testing.T) {
	s := newTestSession(&fakeCapture{startErr: errors.New("permission denied")}, &fakeASR{}, &commits{})
	defer s.Close()
	ctl := gesture.NewController(s)
	tr := ctl.OnPointerMove(gesture.Point{X: 150, Y: 480}, gesture.Surface{Width: 300, Height: 500})
	if tr.Err == nil || ctl.State().Recording {
		t.Fatalf("expected aborted start: %+v", tr)
	}
}
