//go:build whisper

package audio

import (
	"fmt"

	vad "github.com/maxhawkins/go-webrtcvad"
)

// DetectSpeech returns the fraction of frames the webrtc VAD marks as voiced.
func DetectSpeech(samples []float32, sampleRate, frameMS, mode int) (float64, error) {
	frame := sampleRate * frameMS / 1000
	if !vad.ValidRateAndFrameLength(sampleRate, frame) {
		return 0, fmt.Errorf("invalid frame_ms %d for sample_rate %d", frameMS, sampleRate)
	}
	v, err := vad.New()
	if err != nil {
		return 0, err
	}
	if err := v.SetMode(mode); err != nil {
		return 0, fmt.Errorf("vad mode: %w", err)
	}
	pcm := pcmBytes(ToPCM16(samples))
	var total, voiced int
	step := frame * 2
	for off := 0; off+step <= len(pcm); off += step {
		ok, err := v.Process(sampleRate, pcm[off:off+step])
		if err != nil {
			return 0, err
		}
		total++
		if ok {
			voiced++
		}
	}
	if total == 0 {
		return 0, nil
	}
	return float64(voiced) / float64(total), nil
}

func pcmBytes(in []int16) []byte {
	out := make([]byte, len(in)*2)
	for i, s := range in {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}
