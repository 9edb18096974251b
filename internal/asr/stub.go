//go:build !whisper

package asr

// New returns ErrUnavailable; transcription needs the whisper build.
func New(opts Options) (Transcriber, error) {
	return nil, ErrUnavailable
}
