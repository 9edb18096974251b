package run

import (
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"holdtalk/internal/gesture"
)

type metrics struct {
	gestures      atomic.Int64
	committed     atomic.Int64
	cancelled     atomic.Int64
	started       atomic.Int64
	startFailed   atomic.Int64
	recognized    atomic.Int64
	recognitionKO atomic.Int64
	sent          atomic.Int64
	skipped       atomic.Int64
	dropped       atomic.Int64
}

func (m *metrics) recordAction(a gesture.Action) {
	m.gestures.Add(1)
	switch a {
	case gesture.ActionCommitted:
		m.committed.Add(1)
	case gesture.ActionCancelled:
		m.cancelled.Add(1)
	}
}

func (m *metrics) incStarted()           { m.started.Add(1) }
func (m *metrics) incStartFailed()       { m.startFailed.Add(1) }
func (m *metrics) incRecognized()        { m.recognized.Add(1) }
func (m *metrics) incRecognitionFailed() { m.recognitionKO.Add(1) }
func (m *metrics) incSent()              { m.sent.Add(1) }
func (m *metrics) incSkipped()           { m.skipped.Add(1) }
func (m *metrics) incDropped()           { m.dropped.Add(1) }

func (s *Server) metricsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	m := &s.metrics
	fmt.Fprintf(w, "holdtalk_gestures_total %d\n", m.gestures.Load())
	fmt.Fprintf(w, "holdtalk_gestures_committed_total %d\n", m.committed.Load())
	fmt.Fprintf(w, "holdtalk_gestures_cancelled_total %d\n", m.cancelled.Load())
	fmt.Fprintf(w, "holdtalk_recordings_started_total %d\n", m.started.Load())
	fmt.Fprintf(w, "holdtalk_recordings_start_failed_total %d\n", m.startFailed.Load())
	fmt.Fprintf(w, "holdtalk_recognized_total %d\n", m.recognized.Load())
	fmt.Fprintf(w, "holdtalk_recognition_failed_total %d\n", m.recognitionKO.Load())
	fmt.Fprintf(w, "holdtalk_hooks_sent_total %d\n", m.sent.Load())
	fmt.Fprintf(w, "holdtalk_hooks_skipped_total %d\n", m.skipped.Load())
	fmt.Fprintf(w, "holdtalk_hooks_dropped_total %d\n", m.dropped.Load())
}

func (s *Server) metricsServe(ctxDone <-chan struct{}, addr string, logger interface {
	Infof(string, ...any)
	Warnf(string, ...any)
}) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.metricsHandler)
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		<-ctxDone
		_ = server.Close()
	}()
	logger.Infof("metrics listening on http://%s/metrics", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warnf("metrics server: %v", err)
	}
}
