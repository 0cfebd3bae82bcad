// Package audio implements microphone capture, speaker playback and
// device-change detection on top of portaudio.
package audio

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog/log"

	"github.com/dentavoice/voiceclient/internal/app/levels"
	"github.com/dentavoice/voiceclient/internal/core"
)

const (
	captureRate = 48000
	// frameSize is 20ms of mono samples, the opus packet cadence.
	frameSize = 960
)

// Microphone acquires tracks from the current default input device.
type Microphone struct{}

func NewMicrophone() *Microphone { return &Microphone{} }

// Acquire opens the default input device and starts pumping 20ms PCM
// frames. The browser-style processing options (echo cancellation,
// noise suppression, auto gain) are delegated to the OS capture
// pipeline; they are kept on the call for contract parity and logging.
func (m *Microphone) Acquire(_ context.Context, opts core.CaptureOptions) (core.LocalTrack, error) {
	label := "default"
	if dev, err := portaudio.DefaultInputDevice(); err == nil && dev != nil {
		label = dev.Name
	}

	buf := make([]int16, frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(captureRate), len(buf), buf)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "denied") {
			return nil, fmt.Errorf("%w: %v", core.ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("open capture stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("start capture stream: %w", err)
	}

	t := &captureTrack{
		label:  label,
		stream: stream,
		buf:    buf,
		pcm:    make(chan []int16, 8),
		tee:    levels.NewTee(32),
		done:   make(chan struct{}),
	}
	go t.pump()

	log.Info().Str("module", "audio").Str("device", label).
		Bool("echo_cancellation", opts.EchoCancellation).
		Bool("noise_suppression", opts.NoiseSuppression).
		Bool("auto_gain", opts.AutoGainControl).
		Msg("microphone acquired")
	return t, nil
}

type captureTrack struct {
	label  string
	stream *portaudio.Stream
	buf    []int16
	pcm    chan []int16
	tee    *levels.Tee
	done   chan struct{}

	mu      sync.Mutex
	stopped bool
}

// pump fans every captured frame out to the publication channel and the
// level tee. Slow consumers lose frames instead of stalling capture.
func (t *captureTrack) pump() {
	defer close(t.pcm)
	for {
		select {
		case <-t.done:
			return
		default:
		}
		if err := t.stream.Read(); err != nil {
			log.Debug().Err(err).Str("module", "audio").Msg("capture read ended")
			return
		}
		frame := make([]int16, len(t.buf))
		copy(frame, t.buf)
		select {
		case t.pcm <- frame:
		default:
		}
		t.tee.Push(frame)
	}
}

func (t *captureTrack) Label() string { return t.label }

func (t *captureTrack) SampleRate() int { return captureRate }

func (t *captureTrack) PCM() <-chan []int16 { return t.pcm }

func (t *captureTrack) Levels() core.LevelSource { return t.tee }

// Stop releases the capture device. Idempotent.
func (t *captureTrack) Stop() error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	t.mu.Unlock()

	close(t.done)
	_ = t.stream.Stop()
	err := t.stream.Close()
	_ = t.tee.Close()
	log.Info().Str("module", "audio").Str("device", t.label).Msg("microphone released")
	return err
}

func (t *captureTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}
