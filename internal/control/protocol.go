package control

import (
	"time"

	"holdtalk/internal/session"
	"holdtalk/internal/transcript"
)

// Ops understood by the daemon.
const (
	OpMove   = "move"
	OpUp     = "up"
	OpToggle = "toggle"
	OpText   = "text"
	OpStatus = "status"
	OpHealth = "health"
	OpWatch  = "watch"
)

// Request is one newline-delimited JSON request. Pointer ops carry the
// pointer location and the surface size of the current layout pass.
type Request struct {
	Op     string  `json:"op"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// MoveResponse answers OpMove.
type MoveResponse struct {
	From    string `json:"from"`
	Zone    string `json:"zone"`
	Ignored bool   `json:"ignored,omitempty"`
	Started bool   `json:"started,omitempty"`
	Error   string `json:"error,omitempty"`
}

// UpResponse answers OpUp.
type UpResponse struct {
	Action string `json:"action"`
	Zone   string `json:"zone"`
}

// ToggleResponse answers OpToggle.
type ToggleResponse struct {
	Recording bool   `json:"recording"`
	Error     string `json:"error,omitempty"`
}

// Status answers OpStatus.
type Status struct {
	Running     bool               `json:"running"`
	UptimeSec   float64            `json:"uptime_sec"`
	Zone        string             `json:"zone"`
	Recording   bool               `json:"recording"`
	Session     session.View       `json:"session"`
	Transcripts []transcript.Entry `json:"transcripts"`
}

type SimpleResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Timeout bounds single request/response exchanges.
const Timeout = 5 * time.Second
