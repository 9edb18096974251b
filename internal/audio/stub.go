//go:build !whisper

package audio

// New returns ErrUnavailable; capture needs the whisper build.
func New(opts Options) (Capture, error) {
	return nil, ErrUnavailable
}

// ListDevices returns ErrUnavailable; device listing needs the whisper build.
func ListDevices() ([]Device, error) {
	return nil, ErrUnavailable
}

// CheckPortAudio returns ErrUnavailable.
func CheckPortAudio() error {
	return ErrUnavailable
}

// DetectSpeech reports every take as speech when VAD is not compiled in.
func DetectSpeech(samples []float32, sampleRate, frameMS, mode int) (float64, error) {
	return 1, nil
}
