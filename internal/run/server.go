package run

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"holdtalk/internal/asr"
	"holdtalk/internal/audio"
	"holdtalk/internal/config"
	"holdtalk/internal/control"
	"holdtalk/internal/gesture"
	"holdtalk/internal/hook"
	"holdtalk/internal/logging"
	"holdtalk/internal/session"
	"holdtalk/internal/transcript"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Server owns the gesture controller and recording session and exposes them
// over the control socket.
type Server struct {
	cfg       *config.Config
	logger    *logrus.Logger
	hook      *hook.Runner
	startedAt time.Time

	session *session.Session
	store   *transcript.Store

	// gestureMu serializes controller calls across connections.
	gestureMu sync.Mutex
	ctl       *gesture.Controller
	// gestureOwner is the connection that sent the latest move of the open
	// gesture; zero when no gesture is open.
	gestureOwner uint64
	nextConn     atomic.Uint64

	metrics metrics
	hookCh  chan hook.Job
}

// New builds a server around the given capture and transcriber; either may
// be nil, in which case recording or recognition fails per take.
func New(cfg *config.Config, logger *logrus.Logger, capture audio.Capture, tr asr.Transcriber) *Server {
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		hook:      hook.NewRunner(cfg, logger),
		startedAt: time.Now(),
		store:     transcript.NewOS(cfg.Paths.TranscriptPath, cfg.UI.StatusTail),
		hookCh:    make(chan hook.Job, max(1, hookQueueSize(cfg))),
	}
	opts := session.Options{
		Capture:        capture,
		Transcriber:    tr,
		SampleRate:     cfg.Audio.SampleRate,
		MinRecord:      cfg.MinRecord(),
		MinSpeechRatio: cfg.VAD.MinSpeechRatio,
		OnCommit:       s.handleCommit,
		Logger:         logger,
	}
	if cfg.Session.PartialResults {
		opts.PartialInterval = cfg.PartialInterval()
	}
	if cfg.VAD.Enabled {
		opts.DetectSpeech = func(samples []float32) (float64, error) {
			return audio.DetectSpeech(samples, cfg.Audio.SampleRate, cfg.Audio.FrameMS, cfg.VAD.Aggressiveness)
		}
	}
	s.session = session.New(opts)
	s.ctl = gesture.NewController(s.session,
		gesture.WithHeights(cfg.Gesture.ActiveHeight, cfg.Gesture.InactiveHeight),
		gesture.WithLogger(logger),
	)
	s.ctl.OnActionTaken(s.metrics.recordAction)
	return s
}

// Serve runs the daemon until interrupted.
func Serve(cfg *config.Config, logger *logrus.Logger) error {
	if err := config.MustStatePaths(cfg); err != nil {
		return err
	}
	// Write pid file.
	if err := os.WriteFile(cfg.Paths.PidPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(cfg.Paths.PidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warnf("remove pid file: %v", err)
		}
	}()
	// Ensure socket removed
	if err := os.Remove(cfg.Paths.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Debugf("remove stale socket: %v", err)
	}

	capture, err := audio.New(audio.Options{
		DeviceName: cfg.Audio.DeviceName,
		SampleRate: cfg.Audio.SampleRate,
		MaxSeconds: cfg.Session.MaxRecordSec,
	})
	if err != nil {
		logger.Warnf("audio capture disabled: %v", err)
	} else {
		defer capture.Close()
	}
	tr, err := asr.New(asr.Options{
		ModelPath: cfg.ASR.ModelPath,
		Language:  cfg.ASR.Language,
		Threads:   cfg.ASR.Threads,
		Prompt:    cfg.ASR.Prompt,
	})
	if err != nil {
		logger.Warnf("speech recognition disabled: %v", err)
	} else {
		defer func() { _ = tr.Close() }()
	}

	srv := New(cfg, logger, capture, tr)
	defer srv.Close()

	ln, err := net.Listen("unix", cfg.Paths.SocketPath)
	if err != nil {
		return fmt.Errorf("control listen: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return srv.ServeControl(gctx, ln) })
	g.Go(func() error {
		srv.hookWorker(gctx)
		return nil
	})
	g.Go(func() error {
		srv.watchSession(gctx)
		return nil
	})
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			srv.metricsServe(gctx.Done(), cfg.Metrics.Addr, logger)
			return nil
		})
	}

	logger.Infof("holdtalk listening on %s", cfg.Paths.SocketPath)

	// Handle signals
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)
	select {
	case sig := <-sigCh:
		logger.Infof("received signal %s, shutting down", sig)
		cancel()
	case <-gctx.Done():
	}
	return g.Wait()
}

// Close cancels any open recording and waits for finalization.
func (s *Server) Close() {
	s.gestureMu.Lock()
	s.ctl.Reset()
	s.gestureOwner = 0
	s.gestureMu.Unlock()
	s.session.Close()
}

// ServeControl accepts control connections on ln until ctx is done.
func (s *Server) ServeControl(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Errorf("control accept: %v", err)
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() {
		if err := conn.Close(); err != nil && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warnf("control connection close: %v", err)
		}
	}()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	id := s.nextConn.Add(1)
	defer s.release(id)

	sc := bufio.NewScanner(conn)
	enc := json.NewEncoder(conn)
	for sc.Scan() {
		var req control.Request
		if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
			_ = enc.Encode(control.SimpleResponse{OK: false, Message: "bad request: " + err.Error()})
			continue
		}
		p := gesture.Point{X: req.X, Y: req.Y}
		surface := gesture.Surface{Width: req.Width, Height: req.Height}
		var resp any
		switch req.Op {
		case control.OpMove:
			resp = s.move(id, p, surface)
		case control.OpUp:
			resp = s.up(p, surface)
		case control.OpToggle:
			resp = s.toggle()
		case control.OpText:
			resp = s.session.Snapshot()
		case control.OpStatus:
			resp = s.status()
		case control.OpHealth:
			resp = control.SimpleResponse{OK: true, Message: "ok"}
		case control.OpWatch:
			s.streamUpdates(ctx, conn, enc)
			return
		default:
			resp = control.SimpleResponse{OK: false, Message: fmt.Sprintf("unknown op %q", req.Op)}
		}
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) move(conn uint64, p gesture.Point, surface gesture.Surface) control.MoveResponse {
	s.gestureMu.Lock()
	tr := s.ctl.OnPointerMove(p, surface)
	s.gestureOwner = conn
	s.gestureMu.Unlock()

	resp := control.MoveResponse{From: tr.From.String(), Zone: tr.To.String(), Ignored: tr.Ignored, Started: tr.Started}
	switch {
	case tr.Err != nil:
		s.metrics.incStartFailed()
		resp.Error = tr.Err.Error()
	case tr.Started:
		s.metrics.incStarted()
	}
	return resp
}

func (s *Server) up(p gesture.Point, surface gesture.Surface) control.UpResponse {
	s.gestureMu.Lock()
	end := s.ctl.Classify(p, surface)
	action := s.ctl.OnPointerUp(p, surface)
	s.gestureOwner = 0
	s.gestureMu.Unlock()
	return control.UpResponse{Action: action.String(), Zone: end.String()}
}

// release abandons the open gesture if conn sent its latest move.
func (s *Server) release(conn uint64) {
	s.gestureMu.Lock()
	defer s.gestureMu.Unlock()
	if s.gestureOwner != conn {
		return
	}
	s.gestureOwner = 0
	if s.ctl.State().Recording {
		s.logger.Warn("control connection dropped mid-gesture; resetting")
	}
	s.ctl.Reset()
}

// toggle starts or commits a tap-to-talk take. A take opened by a gesture
// belongs to that gesture and is left alone.
func (s *Server) toggle() control.ToggleResponse {
	s.gestureMu.Lock()
	defer s.gestureMu.Unlock()
	if s.ctl.State().Recording {
		return control.ToggleResponse{Recording: true, Error: fmt.Errorf("gesture in progress: %w", session.ErrBusy).Error()}
	}
	on, err := s.session.Toggle()
	resp := control.ToggleResponse{Recording: on}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func (s *Server) status() control.Status {
	s.gestureMu.Lock()
	st := s.ctl.State()
	s.gestureMu.Unlock()
	return control.Status{
		Running:     true,
		UptimeSec:   time.Since(s.startedAt).Seconds(),
		Zone:        st.ActiveZone.String(),
		Recording:   st.Recording,
		Session:     s.session.Snapshot(),
		Transcripts: s.store.Recent(),
	}
}

func (s *Server) streamUpdates(ctx context.Context, conn net.Conn, enc *json.Encoder) {
	updates, unsubscribe := s.session.Subscribe(32)
	defer unsubscribe()
	// The client never writes after watch; EOF means it went away.
	go func() {
		_, _ = io.Copy(io.Discard, conn)
		unsubscribe()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := enc.Encode(u); err != nil {
				return
			}
		}
	}
}

// watchSession feeds recognition outcomes into metrics.
func (s *Server) watchSession(ctx context.Context) {
	updates, unsubscribe := s.session.Subscribe(64)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-updates:
			if !u.Final {
				continue
			}
			if u.Err != nil {
				s.metrics.incRecognitionFailed()
			} else {
				s.metrics.incRecognized()
			}
		}
	}
}

func (s *Server) handleCommit(c session.Commit) {
	if s.cfg.Transcripts.Enabled {
		if err := s.store.Append(transcript.Entry{Take: c.Take, Text: c.Text, Timestamp: c.At}); err != nil {
			s.logger.Warnf("write transcript: %v", err)
		}
	}
	if s.cfg.Session.SaveAudio {
		if err := os.MkdirAll(s.cfg.Paths.AudioDir, 0o755); err != nil {
			s.logger.Warnf("audio dir: %v", err)
		} else if err := audio.SaveWAV(filepath.Join(s.cfg.Paths.AudioDir, c.Take+".wav"), c.Samples, s.cfg.Audio.SampleRate); err != nil {
			s.logger.Warnf("save audio: %v", err)
		}
	}

	hk := hook.SelectHookConfig(s.cfg, c.Text)
	if hk == nil {
		s.logger.Debug("no hooks configured; transcript not dispatched")
		return
	}
	if hk.MinChars > 0 && len(c.Text) < hk.MinChars {
		s.metrics.incSkipped()
		return
	}
	if !s.hook.Allow(hk) {
		s.logger.Debug("hook skipped (cooldown)")
		s.metrics.incSkipped()
		return
	}
	logging.WithTake(s.logger, c.Take).Infof("dispatching hook payload: %q", c.Text)
	job := hook.Job{Hook: hk, Take: c.Take, Text: c.Text, Timestamp: c.At}
	select {
	case s.hookCh <- job:
	default:
		s.metrics.incDropped()
		s.logger.Warn("hook queue full, dropping job")
	}
}

func hookQueueSize(cfg *config.Config) int {
	maxQ := 16
	for i := range cfg.Hooks {
		if cfg.Hooks[i].QueueSize > maxQ {
			maxQ = cfg.Hooks[i].QueueSize
		}
	}
	return maxQ
}
