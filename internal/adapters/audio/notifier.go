package audio

import (
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog/log"

	"github.com/dentavoice/voiceclient/internal/core"
)

// Notifier polls the default input device and emits an event when it
// changes. portaudio has no native change notification, so a cheap poll
// stands in for the browser's devicechange event.
type Notifier struct {
	interval time.Duration
	events   chan core.DeviceEvent

	once sync.Once
	done chan struct{}
}

func NewNotifier(interval time.Duration) *Notifier {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	n := &Notifier{
		interval: interval,
		events:   make(chan core.DeviceEvent, 4),
		done:     make(chan struct{}),
	}
	go n.poll()
	return n
}

func (n *Notifier) poll() {
	defer close(n.events)
	last := defaultInputName()
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()
	for {
		select {
		case <-n.done:
			return
		case <-ticker.C:
			name := defaultInputName()
			if name == last || name == "" {
				continue
			}
			last = name
			log.Info().Str("module", "audio").Str("device", name).Msg("default input device changed")
			select {
			case n.events <- core.DeviceEvent{Label: name}:
			default:
			}
		}
	}
}

func defaultInputName() string {
	dev, err := portaudio.DefaultInputDevice()
	if err != nil || dev == nil {
		return ""
	}
	return dev.Name
}

func (n *Notifier) Events() <-chan core.DeviceEvent { return n.events }

func (n *Notifier) Close() error {
	n.once.Do(func() { close(n.done) })
	return nil
}
