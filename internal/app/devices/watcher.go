// Package devices forwards OS audio device changes to the session so an
// active microphone publication can be migrated without dropping the
// call.
package devices

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dentavoice/voiceclient/internal/core"
)

// Watcher drains a device notifier for its whole lifetime. The
// subscription is cheap and stays active outside calls; the handler
// decides whether an event matters.
type Watcher struct {
	notifier core.DeviceNotifier
	cancel   context.CancelFunc

	once sync.Once
	done chan struct{}
}

// Watch starts forwarding events to handle until Close is called or the
// notifier's channel is closed.
func Watch(notifier core.DeviceNotifier, handle func(core.DeviceEvent)) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{notifier: notifier, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(w.done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-notifier.Events():
				if !ok {
					log.Debug().Str("module", "devices").Msg("notifier closed")
					return
				}
				log.Info().Str("module", "devices").Str("device", ev.Label).Msg("audio device change")
				handle(ev)
			}
		}
	}()
	return w
}

// Close stops forwarding and closes the notifier. Idempotent.
func (w *Watcher) Close() {
	w.once.Do(func() {
		w.cancel()
		_ = w.notifier.Close()
		<-w.done
	})
}
