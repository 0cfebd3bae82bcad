// Package levels turns raw PCM frames into a normalized loudness value
// for UI rendering (0-100, saturating). Local and remote monitoring run
// as independent instances with no shared state.
package levels

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dentavoice/voiceclient/internal/core"
)

type Options struct {
	// Smoothing is the weight of the previous value in the running
	// estimate. Tuning parameter, not a correctness requirement.
	Smoothing float64
	// Boost scales the normalized magnitude before saturation so quiet
	// speech still moves the visualizer.
	Boost float64
}

func DefaultOptions() Options {
	return Options{Smoothing: 0.8, Boost: 4.0}
}

// Monitor is one running analysis loop over a single level source.
type Monitor struct {
	src     core.LevelSource
	opts    Options
	publish func(float64)

	level  atomic.Uint64 // float64 bits
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
}

// Start resumes the source and begins the per-frame loop. The source may
// start suspended (browser autoplay policy); resumption requires a user
// gesture token, which is why remote monitoring waits for the first
// speak toggle instead of starting on track-subscribed.
func Start(name string, src core.LevelSource, g core.Gesture, opts Options, publish func(float64)) (*Monitor, error) {
	if err := src.Resume(g); err != nil {
		return nil, err
	}
	if opts.Smoothing <= 0 || opts.Smoothing >= 1 {
		opts.Smoothing = DefaultOptions().Smoothing
	}
	if opts.Boost <= 0 {
		opts.Boost = DefaultOptions().Boost
	}
	if publish == nil {
		publish = func(float64) {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{src: src, opts: opts, publish: publish, cancel: cancel}

	logger := log.With().Str("module", "levels").Str("monitor", name).Logger()
	logger.Debug().Msg("starting level loop")
	go m.loop(ctx, &logger)
	return m, nil
}

// loop reads frames until the source dries up or the monitor is stopped.
func (m *Monitor) loop(ctx context.Context, logger *zerolog.Logger) {
	smoothed := 0.0
	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("level loop ctx done")
			return
		default:
		}
		frame, err := m.src.ReadFrame()
		if err != nil {
			logger.Debug().Err(err).Msg("level source drained, stopping loop")
			return
		}
		smoothed = m.opts.Smoothing*smoothed + (1-m.opts.Smoothing)*meanMagnitude(frame)
		m.set(normalize(smoothed, m.opts.Boost))
	}
}

// set is a no-op once stopped, so a frame decoded while Stop runs
// cannot publish a stale value after the reset to 0.
func (m *Monitor) set(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.level.Store(math.Float64bits(v))
	m.publish(v)
}

// Level is the most recently published value.
func (m *Monitor) Level() float64 {
	return math.Float64frombits(m.level.Load())
}

// Stop cancels the loop, closes the source and resets the published
// level to 0. Safe to call multiple times.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.mu.Unlock()

	m.cancel()
	_ = m.src.Close()
	m.level.Store(math.Float64bits(0))
	m.publish(0)
}

func meanMagnitude(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range frame {
		sum += math.Abs(float64(s))
	}
	return sum / float64(len(frame))
}

// normalize maps a mean sample magnitude onto the 0-100 UI scale,
// saturating at 100.
func normalize(mean, boost float64) float64 {
	v := mean / math.MaxInt16 * 100 * boost
	if v > 100 {
		return 100
	}
	return v
}
