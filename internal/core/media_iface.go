package core

import (
	"context"
	"errors"

	"github.com/dentavoice/voiceclient/internal/domain"
)

// ErrPermissionDenied is returned by microphone acquisition when the OS
// or browser denied capture access; callers surface it distinctly so the
// UI can prompt for a re-grant instead of a generic retry.
var ErrPermissionDenied = errors.New("capture permission denied")

// CaptureOptions mirror browser getUserMedia audio constraints.
type CaptureOptions struct {
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// DefaultCaptureOptions is what a voice call wants.
func DefaultCaptureOptions() CaptureOptions {
	return CaptureOptions{
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
	}
}

// LevelSource yields PCM frames for loudness analysis.
// A source may start suspended; Resume must succeed before frames flow
// and is only invocable with a user gesture token.
type LevelSource interface {
	Resume(g Gesture) error
	// ReadFrame blocks for the next PCM frame.
	ReadFrame() ([]int16, error)
	// Close is safe to call more than once.
	Close() error
}

// LocalTrack is an acquired microphone source. Ownership is exclusive:
// whoever holds it must Stop it when replacing or disabling it.
type LocalTrack interface {
	Label() string
	SampleRate() int
	// PCM yields capture frames for publication; closed on Stop.
	PCM() <-chan []int16
	Stop() error
	Stopped() bool
	Levels() LevelSource
}

// RemoteTrack is a subscribed inbound audio track from another participant.
type RemoteTrack interface {
	Participant() domain.Identity
	SetVolume(v float64)
	Volume() float64
	Levels() LevelSource
	// Detach removes any rendering sink created for the track.
	Detach()
}

// MicrophoneSource acquires tracks from the default input device.
type MicrophoneSource interface {
	Acquire(ctx context.Context, opts CaptureOptions) (LocalTrack, error)
}

// AudioSink renders PCM to an output device at a playback volume.
type AudioSink interface {
	WritePCM(frame []int16) error
	SetVolume(v float64)
	Volume() float64
	Close() error
}

// SinkFactory opens playback sinks for subscribed tracks.
type SinkFactory interface {
	NewSink(sampleRate, channels int) (AudioSink, error)
}

// DeviceEvent announces an OS-level audio device change.
type DeviceEvent struct {
	Label string
}

// DeviceNotifier is a long-lived subscription to device changes.
// Owned by the adapter; the adapter must Close() it.
type DeviceNotifier interface {
	Events() <-chan DeviceEvent
	Close() error
}
