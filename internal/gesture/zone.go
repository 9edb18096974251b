// Package gesture implements the press-hold-drag interaction controller that
// maps a single pointer gesture over a "hold to talk" surface onto recording
// session lifecycle calls.
package gesture

import (
	"fmt"
	"strings"
)

const (
	// DefaultActiveHeight is the height of the speech band while speech is the active zone.
	DefaultActiveHeight = 94.0
	// DefaultInactiveHeight is the height of the speech band otherwise.
	DefaultInactiveHeight = 78.0
)

// Zone is a discrete region of the surface.
type Zone int

const (
	ZoneNone Zone = iota
	ZoneSpeech
	ZoneCancel
	ZoneConvert
)

func (z Zone) String() string {
	switch z {
	case ZoneSpeech:
		return "speech"
	case ZoneCancel:
		return "cancel"
	case ZoneConvert:
		return "convert"
	default:
		return "none"
	}
}

// ParseZone is the inverse of Zone.String. The empty string parses as ZoneNone.
func ParseZone(s string) (Zone, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ZoneNone, nil
	case "speech":
		return ZoneSpeech, nil
	case "cancel":
		return ZoneCancel, nil
	case "convert":
		return ZoneConvert, nil
	}
	return ZoneNone, fmt.Errorf("unknown zone %q", s)
}

// Point is a pointer location in surface coordinates; Y grows downward.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Surface is the interactive canvas as laid out by the host.
type Surface struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Action is the terminal action taken when a gesture ends.
type Action int

const (
	ActionNone Action = iota
	ActionCommitted
	ActionCancelled
)

func (a Action) String() string {
	switch a {
	case ActionCommitted:
		return "committed"
	case ActionCancelled:
		return "cancelled"
	default:
		return "none"
	}
}

// classify implements the zone rule. The speech band is taller while speech
// is already active so the boundary does not flicker once recording began.
func classify(p Point, s Surface, active Zone, activeHeight, inactiveHeight float64) Zone {
	band := inactiveHeight
	if active == ZoneSpeech {
		band = activeHeight
	}
	switch {
	case p.Y > s.Height-band:
		return ZoneSpeech
	case p.X <= s.Width/2:
		return ZoneCancel
	default:
		return ZoneConvert
	}
}
