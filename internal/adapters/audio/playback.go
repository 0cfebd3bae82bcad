package audio

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog/log"

	"github.com/dentavoice/voiceclient/internal/core"
)

// Speakers opens playback sinks on the default output device.
type Speakers struct{}

func NewSpeakers() *Speakers { return &Speakers{} }

func (s *Speakers) NewSink(sampleRate, channels int) (core.AudioSink, error) {
	buf := make([]int16, frameSize*channels)
	stream, err := portaudio.OpenDefaultStream(0, channels, float64(sampleRate), len(buf), buf)
	if err != nil {
		return nil, fmt.Errorf("open playback stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("start playback stream: %w", err)
	}
	sink := &speakerSink{stream: stream, buf: buf}
	sink.volume.Store(math.Float64bits(1.0))
	return sink, nil
}

type speakerSink struct {
	stream *portaudio.Stream
	buf    []int16
	queue  []int16
	volume atomic.Uint64 // float64 bits

	mu     sync.Mutex
	closed bool
}

// WritePCM scales the frame by the current volume and plays it in
// device-sized chunks; a trailing partial chunk waits for more input.
func (s *speakerSink) WritePCM(frame []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	vol := math.Float64frombits(s.volume.Load())
	for _, sample := range frame {
		s.queue = append(s.queue, int16(float64(sample)*vol))
	}
	for len(s.queue) >= len(s.buf) {
		copy(s.buf, s.queue[:len(s.buf)])
		s.queue = s.queue[len(s.buf):]
		if err := s.stream.Write(); err != nil {
			return fmt.Errorf("playback write: %w", err)
		}
	}
	return nil
}

func (s *speakerSink) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.volume.Store(math.Float64bits(v))
}

func (s *speakerSink) Volume() float64 {
	return math.Float64frombits(s.volume.Load())
}

func (s *speakerSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.stream.Stop()
	err := s.stream.Close()
	log.Debug().Str("module", "audio").Msg("playback sink closed")
	return err
}
