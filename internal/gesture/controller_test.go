package gesture

import (
	"errors"
	"testing"
)

type fakeRecorder struct {
	starts, stops, cancels int
	startErr               error
}

func (f *fakeRecorder) StartRecording() error {
	f.starts++
	return f.startErr
}
func (f *fakeRecorder) StopRecording()   { f.stops++ }
func (f *fakeRecorder) CancelRecording() { f.cancels++ }

var surface = Surface{Width: 300, Height: 500}

var (
	speechPt  = Point{X: 150, Y: 480}
	cancelPt  = Point{X: 40, Y: 200}
	convertPt = Point{X: 260, Y: 200}
)

func TestClassifyRegions(t *testing.T) {
	c := NewController(&fakeRecorder{})
	cases := []struct {
		p    Point
		want Zone
	}{
		{speechPt, ZoneSpeech},
		{cancelPt, ZoneCancel},
		{convertPt, ZoneConvert},
		{Point{X: 150, Y: 200}, ZoneCancel}, // midline belongs to cancel
		{Point{X: 150.5, Y: 200}, ZoneConvert},
		{Point{X: 0, Y: 500}, ZoneSpeech},
		{Point{X: 299, Y: 422}, ZoneConvert}, // on the inactive threshold line
	}
	for _, tc := range cases {
		if got := c.Classify(tc.p, surface); got != tc.want {
			t.Fatalf("Classify(%+v)=%s want %s", tc.p, got, tc.want)
		}
	}
}

func TestClassifyHysteresis(t *testing.T) {
	rec := &fakeRecorder{}
	c := NewController(rec)
	p := Point{X: 100, Y: 500 - DefaultInactiveHeight - 1}
	if got := c.Classify(p, surface); got != ZoneCancel {
		t.Fatalf("inactive band: got %s want cancel", got)
	}

	c.OnPointerMove(speechPt, surface)
	if got := c.Classify(p, surface); got != ZoneSpeech {
		t.Fatalf("active band should be taller: got %s", got)
	}
	edge := Point{X: 100, Y: 500 - DefaultActiveHeight - 1}
	if got := c.Classify(edge, surface); got != ZoneCancel {
		t.Fatalf("outside active band: got %s", got)
	}

	tr := c.OnPointerMove(p, surface)
	if tr.To != ZoneSpeech || c.State().ActiveZone != ZoneSpeech {
		t.Fatalf("sticky speech band not honored: %+v", tr)
	}
}

func TestClassifyZeroSurface(t *testing.T) {
	c := NewController(&fakeRecorder{})
	if got := c.Classify(Point{X: 0, Y: -100}, Surface{}); got != ZoneCancel {
		t.Fatalf("zero surface left: got %s", got)
	}
	if got := c.Classify(Point{X: 1, Y: -100}, Surface{}); got != ZoneConvert {
		t.Fatalf("zero surface right: got %s", got)
	}
}

func TestSpeechThenCancelCancels(t *testing.T) {
	rec := &fakeRecorder{}
	c := NewController(rec)

	if tr := c.OnPointerMove(speechPt, surface); !tr.Started {
		t.Fatalf("expected recording to start: %+v", tr)
	}
	c.OnPointerMove(convertPt, surface)
	c.OnPointerMove(cancelPt, surface)
	if got := c.OnPointerUp(cancelPt, surface); got != ActionCancelled {
		t.Fatalf("action=%s want cancelled", got)
	}
	if rec.starts != 1 || rec.cancels != 1 || rec.stops != 0 {
		t.Fatalf("calls start=%d stop=%d cancel=%d", rec.starts, rec.stops, rec.cancels)
	}
}

func TestReleaseOverConvertCommits(t *testing.T) {
	rec := &fakeRecorder{}
	c := NewController(rec)
	c.OnPointerMove(speechPt, surface)
	c.OnPointerMove(convertPt, surface)
	if got := c.OnPointerUp(convertPt, surface); got != ActionCommitted {
		t.Fatalf("action=%s want committed", got)
	}
	if rec.starts != 1 || rec.stops != 1 || rec.cancels != 0 {
		t.Fatalf("calls start=%d stop=%d cancel=%d", rec.starts, rec.stops, rec.cancels)
	}
}

func TestRecordingStartsOnlyFromNone(t *testing.T) {
	rec := &fakeRecorder{}
	c := NewController(rec)

	// Entering speech from cancel is not a fresh press.
	c.OnPointerMove(cancelPt, surface)
	tr := c.OnPointerMove(speechPt, surface)
	if tr.Started || rec.starts != 0 {
		t.Fatalf("recording must not start from cancel: %+v", tr)
	}
	if got := c.OnPointerUp(cancelPt, surface); got != ActionNone {
		t.Fatalf("action=%s want none", got)
	}

	// Leaving and re-entering speech within one gesture starts once.
	c.OnPointerMove(speechPt, surface)
	c.OnPointerMove(cancelPt, surface)
	c.OnPointerMove(speechPt, surface)
	c.OnPointerUp(speechPt, surface)
	if rec.starts != 1 || rec.stops != 1 {
		t.Fatalf("calls start=%d stop=%d", rec.starts, rec.stops)
	}
}

func TestCancelOnlyGestureMakesNoCalls(t *testing.T) {
	rec := &fakeRecorder{}
	c := NewController(rec)
	c.OnPointerMove(cancelPt, surface)
	c.OnPointerMove(Point{X: 20, Y: 100}, surface)
	if got := c.OnPointerUp(cancelPt, surface); got != ActionNone {
		t.Fatalf("action=%s want none", got)
	}
	if rec.starts+rec.stops+rec.cancels != 0 {
		t.Fatalf("expected no session calls, got %+v", rec)
	}
}

func TestMoveBelowSurfaceIgnored(t *testing.T) {
	rec := &fakeRecorder{}
	c := NewController(rec)
	c.OnPointerMove(convertPt, surface)
	tr := c.OnPointerMove(Point{X: 10, Y: 501}, surface)
	if !tr.Ignored || tr.To != ZoneConvert {
		t.Fatalf("expected ignored move, got %+v", tr)
	}
	if c.State().ActiveZone != ZoneConvert {
		t.Fatalf("zone changed on ignored move: %s", c.State().ActiveZone)
	}
	if rec.starts != 0 {
		t.Fatalf("ignored move must not start recording")
	}
}

func TestPointerUpBelowSurfaceStillClassified(t *testing.T) {
	rec := &fakeRecorder{}
	c := NewController(rec)
	c.OnPointerMove(speechPt, surface)
	if got := c.OnPointerUp(Point{X: 10, Y: 900}, surface); got != ActionCommitted {
		t.Fatalf("action=%s want committed", got)
	}
}

func TestPointerUpResetsState(t *testing.T) {
	for _, end := range []Point{speechPt, cancelPt, convertPt} {
		c := NewController(&fakeRecorder{})
		c.OnPointerMove(speechPt, surface)
		c.OnPointerUp(end, surface)
		if st := c.State(); st.ActiveZone != ZoneNone || st.Recording {
			t.Fatalf("state after up at %+v: %+v", end, st)
		}
	}
	c := NewController(&fakeRecorder{})
	if got := c.OnPointerUp(cancelPt, surface); got != ActionNone {
		t.Fatalf("redundant up: action=%s", got)
	}
}

func TestStartFailureAbortsTransition(t *testing.T) {
	rec := &fakeRecorder{startErr: errors.New("permission denied")}
	c := NewController(rec)
	var changes int
	c.OnZoneChanged(func(from, to Zone) { changes++ })

	tr := c.OnPointerMove(speechPt, surface)
	if tr.Err == nil || tr.Started || tr.To != ZoneNone {
		t.Fatalf("expected aborted transition, got %+v", tr)
	}
	if st := c.State(); st.ActiveZone != ZoneNone || st.Recording {
		t.Fatalf("state not rolled back: %+v", st)
	}
	if changes != 0 {
		t.Fatalf("zone callback fired on aborted transition")
	}

	rec.startErr = nil
	if tr := c.OnPointerMove(speechPt, surface); !tr.Started {
		t.Fatalf("retry should start: %+v", tr)
	}
	if got := c.OnPointerUp(speechPt, surface); got != ActionCommitted {
		t.Fatalf("action=%s", got)
	}
	if rec.starts != 2 || rec.stops != 1 {
		t.Fatalf("calls start=%d stop=%d", rec.starts, rec.stops)
	}
}

func TestCallbacks(t *testing.T) {
	c := NewController(&fakeRecorder{}, WithHeights(120, 100))
	var zones []Zone
	var actions []Action
	c.OnZoneChanged(func(from, to Zone) { zones = append(zones, to) })
	c.OnActionTaken(func(a Action) { actions = append(actions, a) })

	c.OnPointerMove(Point{X: 150, Y: 410}, surface) // inside the 100pt band
	c.OnPointerMove(Point{X: 150, Y: 390}, surface) // still inside the 120pt active band
	c.OnPointerMove(cancelPt, surface)
	c.OnPointerUp(cancelPt, surface)

	want := []Zone{ZoneSpeech, ZoneCancel, ZoneNone}
	if len(zones) != len(want) {
		t.Fatalf("zones=%v want %v", zones, want)
	}
	for i := range want {
		if zones[i] != want[i] {
			t.Fatalf("zones=%v want %v", zones, want)
		}
	}
	if len(actions) != 1 || actions[0] != ActionCancelled {
		t.Fatalf("actions=%v", actions)
	}
}

func TestResetCancelsOpenRecording(t *testing.T) {
	rec := &fakeRecorder{}
	c := NewController(rec)
	c.OnPointerMove(speechPt, surface)
	c.Reset()
	if rec.cancels != 1 {
		t.Fatalf("expected cancel on reset")
	}
	if st := c.State(); st.Recording || st.ActiveZone != ZoneNone {
		t.Fatalf("state after reset: %+v", st)
	}
}

func TestResetReportsZoneChange(t *testing.T) {
	c := NewController(&fakeRecorder{})
	var changes [][2]Zone
	c.OnZoneChanged(func(from, to Zone) { changes = append(changes, [2]Zone{from, to}) })
	c.OnPointerMove(speechPt, surface)
	c.Reset()
	if len(changes) != 2 || changes[1] != [2]Zone{ZoneSpeech, ZoneNone} {
		t.Fatalf("zone changes=%v", changes)
	}
	c.Reset()
	if len(changes) != 2 {
		t.Fatalf("idle reset reported a change: %v", changes)
	}
}

func TestParseZone(t *testing.T) {
	for _, z := range []Zone{ZoneNone, ZoneSpeech, ZoneCancel, ZoneConvert} {
		got, err := ParseZone(z.String())
		if err != nil || got != z {
			t.Fatalf("ParseZone(%q)=%v,%v", z.String(), got, err)
		}
	}
	if _, err := ParseZone("left"); err == nil {
		t.Fatalf("expected error for unknown zone")
	}
}
