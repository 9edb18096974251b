//go:build whisper

package audio

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 1024

type recorder struct {
	opts    Options
	mu      sync.Mutex
	stream  *portaudio.Stream
	buffer  []float32
	samples []float32
	running bool
	done    chan struct{}
}

// New initializes PortAudio and returns a capture for the configured device.
func New(opts Options) (Capture, error) {
	if opts.SampleRate == 0 {
		opts.SampleRate = SampleRate
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	return &recorder{
		opts:   opts,
		buffer: make([]float32, framesPerBuffer),
	}, nil
}

func (r *recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}
	dev, err := selectDevice(r.opts.DeviceName)
	if err != nil {
		return err
	}
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(r.opts.SampleRate),
		FramesPerBuffer: framesPerBuffer,
	}, r.buffer)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("start stream: %w", err)
	}
	r.samples = make([]float32, 0, r.opts.SampleRate*10)
	r.stream = stream
	r.running = true
	r.done = make(chan struct{})
	go r.loop(stream, r.done)
	return nil
}

func (r *recorder) loop(stream *portaudio.Stream, done chan struct{}) {
	defer close(done)
	limit := r.opts.MaxSeconds * r.opts.SampleRate
	for {
		r.mu.Lock()
		running := r.running
		r.mu.Unlock()
		if !running {
			return
		}
		if err := stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				continue
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		r.mu.Lock()
		if r.running && (limit <= 0 || len(r.samples) < limit) {
			r.samples = append(r.samples, r.buffer...)
		}
		r.mu.Unlock()
	}
}

func (r *recorder) Snapshot() []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running || len(r.samples) == 0 {
		return nil
	}
	out := make([]float32, len(r.samples))
	copy(out, r.samples)
	return out
}

func (r *recorder) Stop() []float32 {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	stream := r.stream
	r.stream = nil
	samples := r.samples
	r.samples = nil
	done := r.done
	r.mu.Unlock()

	// A blocking Read returns within one buffer period.
	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
	}
	if stream != nil {
		_ = stream.Stop()
		_ = stream.Close()
	}
	return samples
}

func (r *recorder) Close() {
	r.Stop()
	_ = portaudio.Terminate()
}

func selectDevice(preferred string) (*portaudio.DeviceInfo, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if preferred != "" {
		for _, d := range devs {
			if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), strings.ToLower(preferred)) {
				return d, nil
			}
		}
	}
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		return def, nil
	}
	for _, d := range devs {
		if d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no input devices found")
}

// ListDevices returns the available input devices.
func ListDevices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	defer func() { _ = portaudio.Terminate() }()

	devs, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	def, _ := portaudio.DefaultInputDevice()
	out := []Device{}
	for i, d := range devs {
		if d.MaxInputChannels < 1 {
			continue
		}
		out = append(out, Device{
			Index:     i,
			Name:      d.Name,
			Channels:  d.MaxInputChannels,
			LatencyMs: d.DefaultLowInputLatency.Seconds() * 1000,
			Default:   def != nil && d.Name == def.Name,
		})
	}
	return out, nil
}

// CheckPortAudio checks that PortAudio initializes.
func CheckPortAudio() error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	return portaudio.Terminate()
}
