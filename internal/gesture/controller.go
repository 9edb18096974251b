package gesture

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Recorder is the recording session collaborator driven by the controller.
// Stop and Cancel are fire-and-forget; results arrive through the recorder's
// own notification channel.
type Recorder interface {
	StartRecording() error
	StopRecording()
	CancelRecording()
}

// State is the per-gesture state owned by a Controller.
type State struct {
	ActiveZone Zone `json:"active_zone"`
	Recording  bool `json:"recording"`
}

// Transition is the outcome of a pointer move.
type Transition struct {
	From    Zone
	To      Zone
	Ignored bool  // pointer was below the surface; nothing changed
	Started bool  // this move started a recording
	Err     error // StartRecording failed; the speech transition was aborted
}

// Option configures a Controller.
type Option func(*Controller)

// WithHeights overrides the active/inactive speech band heights.
func WithHeights(active, inactive float64) Option {
	return func(c *Controller) {
		c.activeHeight = active
		c.inactiveHeight = inactive
	}
}

// WithLogger sets the logger used for transition debugging.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Controller) { c.logger = l }
}

// Controller tracks one pointer gesture at a time. It is not safe for
// concurrent use; the input layer serializes calls.
type Controller struct {
	rec            Recorder
	activeHeight   float64
	inactiveHeight float64
	logger         logrus.FieldLogger
	state          State

	onZoneChanged func(from, to Zone)
	onActionTaken func(Action)
}

// NewController returns a controller driving rec.
func NewController(rec Recorder, opts ...Option) *Controller {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	c := &Controller{
		rec:            rec,
		activeHeight:   DefaultActiveHeight,
		inactiveHeight: DefaultInactiveHeight,
		logger:         discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnZoneChanged registers fn to be called whenever the active zone changes.
func (c *Controller) OnZoneChanged(fn func(from, to Zone)) { c.onZoneChanged = fn }

// OnActionTaken registers fn to be called at the end of every gesture.
func (c *Controller) OnActionTaken(fn func(Action)) { c.onActionTaken = fn }

// State returns a copy of the current gesture state.
func (c *Controller) State() State { return c.state }

// Classify returns the zone under p given the current active zone.
func (c *Controller) Classify(p Point, s Surface) Zone {
	return classify(p, s, c.state.ActiveZone, c.activeHeight, c.inactiveHeight)
}

// OnPointerMove handles a pointer sample while the pointer is down.
func (c *Controller) OnPointerMove(p Point, s Surface) Transition {
	from := c.state.ActiveZone
	if p.Y > s.Height {
		return Transition{From: from, To: from, Ignored: true}
	}
	to := c.Classify(p, s)
	tr := Transition{From: from, To: to}
	if from == ZoneNone && to == ZoneSpeech {
		if err := c.rec.StartRecording(); err != nil {
			c.logger.WithError(err).Warn("start recording failed; speech transition aborted")
			tr.To = from
			tr.Err = err
			return tr
		}
		c.state.Recording = true
		tr.Started = true
	}
	c.setZone(to)
	return tr
}

// OnPointerUp ends the gesture and issues at most one terminal call.
func (c *Controller) OnPointerUp(p Point, s Surface) Action {
	end := c.Classify(p, s)
	action := ActionNone
	if c.state.Recording {
		if end == ZoneCancel {
			c.rec.CancelRecording()
			action = ActionCancelled
		} else {
			c.rec.StopRecording()
			action = ActionCommitted
		}
	}
	c.state.Recording = false
	c.setZone(ZoneNone)
	c.logger.WithFields(logrus.Fields{"end_zone": end, "action": action}).Debug("gesture ended")
	if c.onActionTaken != nil {
		c.onActionTaken(action)
	}
	return action
}

// Reset abandons the current gesture, e.g. when the host connection drops.
// An open recording is cancelled.
func (c *Controller) Reset() {
	if c.state.Recording {
		c.rec.CancelRecording()
	}
	c.state.Recording = false
	c.setZone(ZoneNone)
}

func (c *Controller) setZone(to Zone) {
	from := c.state.ActiveZone
	c.state.ActiveZone = to
	if from == to {
		return
	}
	c.logger.WithFields(logrus.Fields{"from": from, "to": to}).Debug("zone changed")
	if c.onZoneChanged != nil {
		c.onZoneChanged(from, to)
	}
}
