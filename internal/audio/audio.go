// Package audio provides microphone capture and sample helpers.
package audio

import (
	"errors"
)

// SampleRate is the rate whisper expects.
const SampleRate = 16000

var (
	// ErrUnavailable is returned when the binary was built without audio support.
	ErrUnavailable = errors.New("audio capture unavailable: build with -tags whisper (PortAudio required)")
	// ErrNoSpeech is returned when a take contains no voiced frames.
	ErrNoSpeech = errors.New("no speech detected")
)

// Capture records mono float32 samples from an input device.
type Capture interface {
	// Start begins recording; a second Start while recording is a no-op.
	Start() error
	// Snapshot returns a copy of the samples captured so far.
	Snapshot() []float32
	// Stop ends recording and returns everything captured.
	Stop() []float32
	Close()
}

// Options selects and configures the input device.
type Options struct {
	DeviceName string
	SampleRate int
	MaxSeconds int
}

// Device describes an input device.
type Device struct {
	Index     int     `json:"index"`
	Name      string  `json:"name"`
	Channels  int     `json:"channels"`
	LatencyMs float64 `json:"latency_ms"`
	Default   bool    `json:"default"`
}

// Pad appends silence so len(samples) >= min. Whisper rejects very short input.
func Pad(samples []float32, min int) []float32 {
	if len(samples) >= min {
		return samples
	}
	return append(samples, make([]float32, min-len(samples))...)
}

// Resample converts samples between rates with linear interpolation.
func Resample(in []float32, srcSR, dstSR int) []float32 {
	if srcSR == dstSR || len(in) == 0 {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}
	ratio := float64(dstSR) / float64(srcSR)
	outLen := int(float64(len(in))*ratio + 0.9999)
	out := make([]float32, outLen)
	for i := 0; i < outLen; i++ {
		pos := float64(i) / ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = in[idx]*(1-frac) + in[idx+1]*frac
	}
	return out
}

// ToPCM16 converts float samples to 16-bit PCM, clipping out-of-range values.
func ToPCM16(in []float32) []int16 {
	out := make([]int16, len(in))
	for i, s := range in {
		switch {
		case s > 1:
			s = 1
		case s < -1:
			s = -1
		}
		out[i] = int16(s * 32767)
	}
	return out
}
