package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dentavoice/voiceclient/internal/app/levels"
	"github.com/dentavoice/voiceclient/internal/app/relay"
	"github.com/dentavoice/voiceclient/internal/core"
	"github.com/dentavoice/voiceclient/internal/domain"
)

// ToggleSpeaking flips microphone publication. Turning on is the
// designated user-action entry point of the session: the gesture minted
// here unlocks audio analysis for both the local and any deferred remote
// track.
func (c *Controller) ToggleSpeaking(ctx context.Context) error {
	c.mu.Lock()
	if c.room == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	if c.speaking {
		room := c.room
		track := c.localTrack
		c.localTrack = nil
		mon := c.localMon
		c.localMon = nil
		c.speaking = false
		c.mu.Unlock()

		if mon != nil {
			mon.Stop()
		}
		_ = room.UnpublishMicrophone()
		if track != nil {
			_ = track.Stop()
		}
		log.Info().Str("module", "session").Msg("microphone off")
		return nil
	}
	room := c.room
	gen := c.gen
	c.mu.Unlock()

	g := core.UserGesture()

	track, err := c.deps.Mic.Acquire(ctx, c.cfg.Capture)
	if err != nil {
		msg := "microphone unavailable: " + err.Error()
		if errors.Is(err, core.ErrPermissionDenied) {
			msg = "microphone permission denied; please grant access and retry"
		}
		c.setError(msg)
		return fmt.Errorf("acquire microphone: %w", err)
	}
	if err := room.PublishMicrophone(ctx, track); err != nil {
		_ = track.Stop()
		c.setError("could not publish microphone: " + err.Error())
		return fmt.Errorf("publish microphone: %w", err)
	}

	mon, err := levels.Start("self", track.Levels(), g, c.cfg.Levels, c.setLocalLevel)
	if err != nil {
		// The call works without a visualizer.
		log.Warn().Err(err).Str("module", "session").Msg("local level monitor failed to start")
	}

	c.mu.Lock()
	if c.gen != gen || c.status != domain.StatusConnected {
		// A disconnect raced the toggle; release everything teardown
		// could not see and settle as disconnected.
		c.mu.Unlock()
		if mon != nil {
			mon.Stop()
		}
		_ = room.UnpublishMicrophone()
		_ = track.Stop()
		log.Warn().Str("module", "session").Msg("speak toggle aborted mid-flight")
		return ErrNotConnected
	}
	c.localTrack = track
	c.localMon = mon
	c.speaking = true
	c.gesture = g
	pending := c.pendingRemote
	c.pendingRemote = nil
	c.mu.Unlock()

	log.Info().Str("module", "session").Str("device", track.Label()).Msg("microphone on")

	if pending != nil {
		c.startRemoteMonitor(pending, g)
	}
	return nil
}

func (c *Controller) startRemoteMonitor(rt core.RemoteTrack, g core.Gesture) {
	mon, err := levels.Start("agent", rt.Levels(), g, c.cfg.Levels, c.setRemoteLevel)
	if err != nil {
		log.Warn().Err(err).Str("module", "session").Msg("remote level monitor failed to start")
		return
	}
	c.mu.Lock()
	if c.status != domain.StatusConnected {
		c.mu.Unlock()
		mon.Stop()
		return
	}
	if c.remoteMon != nil {
		old := c.remoteMon
		c.remoteMon = mon
		c.mu.Unlock()
		old.Stop()
		return
	}
	c.remoteMon = mon
	c.mu.Unlock()
}

// SetVolume applies playback volume to every subscribed remote track and
// records it as the session-wide baseline so later subscriptions inherit
// it.
func (c *Controller) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	c.mu.Lock()
	c.volume = v
	subs := make([]core.RemoteTrack, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, rt := range subs {
		rt.SetVolume(v)
	}
	log.Debug().Str("module", "session").Float64("volume", v).Msg("volume applied")
}

// SendChatMessage appends the user's message optimistically, then
// publishes it with reliable delivery. A failed publish is reported as a
// system chat entry; the optimistic append is not rolled back.
func (c *Controller) SendChatMessage(ctx context.Context, text string) error {
	payload, ok := relay.EncodeChat(text)
	if !ok {
		return domain.ErrEmptyMessage
	}

	c.mu.Lock()
	if c.status != domain.StatusConnected || c.room == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	room := c.room
	msg, _ := domain.NewChatMessage(domain.SenderUser, string(payload))
	c.chat = append(c.chat, msg)
	c.mu.Unlock()

	if err := room.SendData(ctx, payload); err != nil {
		c.mu.Lock()
		note, _ := domain.NewChatMessage(domain.SenderSystem, "message could not be delivered: "+err.Error())
		c.chat = append(c.chat, note)
		c.mu.Unlock()
		log.Error().Err(err).Str("module", "session").Msg("chat publish failed")
		return err
	}
	return nil
}

// HandleDeviceChange migrates the published microphone to the new
// default device. The old track is fully unpublished and stopped before
// the replacement is published; at no point are two microphone tracks
// live.
func (c *Controller) HandleDeviceChange(ctx context.Context, ev core.DeviceEvent) {
	c.mu.Lock()
	if c.status != domain.StatusConnected || !c.speaking {
		c.mu.Unlock()
		log.Debug().Str("module", "session").Msg("device change ignored, no active publication")
		return
	}
	room := c.room
	old := c.localTrack
	c.localTrack = nil
	mon := c.localMon
	c.localMon = nil
	g := c.gesture
	c.mu.Unlock()

	log.Info().Str("module", "session").Str("device", ev.Label).Msg("audio device changed, migrating microphone")

	if mon != nil {
		mon.Stop()
	}
	_ = room.UnpublishMicrophone()
	if old != nil {
		_ = old.Stop()
	}

	// Give the OS a moment to settle on the new default device.
	time.Sleep(c.cfg.DeviceSettle)

	track, err := c.deps.Mic.Acquire(ctx, c.cfg.Capture)
	if err != nil {
		c.setError("microphone lost after device change; please reconnect")
		log.Error().Err(err).Str("module", "session").Msg("device migration acquire failed")
		return
	}
	if err := room.PublishMicrophone(ctx, track); err != nil {
		_ = track.Stop()
		c.setError("microphone lost after device change; please reconnect")
		log.Error().Err(err).Str("module", "session").Msg("device migration publish failed")
		return
	}

	// The original speak gesture still covers the swapped track.
	newMon, err := levels.Start("self", track.Levels(), g, c.cfg.Levels, c.setLocalLevel)
	if err != nil {
		log.Warn().Err(err).Str("module", "session").Msg("level monitor did not resume after device change")
	}

	c.mu.Lock()
	if c.status != domain.StatusConnected || !c.speaking {
		// Torn down while we were swapping.
		c.mu.Unlock()
		if newMon != nil {
			newMon.Stop()
		}
		_ = room.UnpublishMicrophone()
		_ = track.Stop()
		return
	}
	c.localTrack = track
	c.localMon = newMon
	label := track.Label()
	if label == "" {
		label = ev.Label
	}
	if label != "" {
		c.appendSystemLocked("microphone switched to " + label)
	}
	c.mu.Unlock()
}

func (c *Controller) setError(msg string) {
	c.mu.Lock()
	c.lastErr = msg
	c.mu.Unlock()
}
