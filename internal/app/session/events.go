package session

import (
	"github.com/rs/zerolog/log"

	"github.com/dentavoice/voiceclient/internal/app/relay"
	"github.com/dentavoice/voiceclient/internal/core"
	"github.com/dentavoice/voiceclient/internal/domain"
)

// handlers builds the listener set passed to the dialer, so registration
// is atomic with opening the room.
func (c *Controller) handlers() core.EventHandlers {
	return core.EventHandlers{
		OnParticipantJoined: c.onParticipantJoined,
		OnParticipantLeft:   c.onParticipantLeft,
		OnTrackSubscribed:   c.onTrackSubscribed,
		OnTrackUnsubscribed: c.onTrackUnsubscribed,
		OnData:              c.onData,
		OnQualityChanged:    c.onQualityChanged,
		OnDisconnected:      c.onDisconnected,
	}
}

func (c *Controller) onParticipantJoined(id domain.Identity) {
	c.mu.Lock()
	if domain.ClassifyIdentity(id) == domain.RoleAgent {
		c.appendSystemLocked("assistant joined the room")
	} else {
		c.appendSystemLocked(string(id) + " joined the room")
	}
	c.mu.Unlock()
	log.Info().Str("module", "session").Str("identity", string(id)).Str("role", domain.ClassifyIdentity(id).String()).Msg("participant joined")
}

func (c *Controller) onParticipantLeft(id domain.Identity) {
	c.mu.Lock()
	if domain.ClassifyIdentity(id) == domain.RoleAgent {
		c.appendSystemLocked("assistant left the room")
	} else {
		c.appendSystemLocked(string(id) + " left the room")
	}
	c.mu.Unlock()
	log.Info().Str("module", "session").Str("identity", string(id)).Msg("participant left")
}

// onTrackSubscribed wires playback for a new inbound audio track. Level
// monitoring of the agent track is deferred until the first speak
// gesture: this event fires from the network, and resuming audio
// analysis outside a user gesture would fail silently.
func (c *Controller) onTrackSubscribed(rt core.RemoteTrack) {
	c.mu.Lock()
	c.subs = append(c.subs, rt)
	vol := c.volume
	isAgent := domain.ClassifyIdentity(rt.Participant()) == domain.RoleAgent
	unlocked := c.gesture.Granted()
	g := c.gesture
	if isAgent && !unlocked {
		c.pendingRemote = rt
	}
	c.mu.Unlock()

	rt.SetVolume(vol)
	log.Info().Str("module", "session").Str("identity", string(rt.Participant())).Bool("agent", isAgent).Msg("track subscribed")

	if isAgent && unlocked {
		c.startRemoteMonitor(rt, g)
	}
}

func (c *Controller) onTrackUnsubscribed(rt core.RemoteTrack) {
	c.mu.Lock()
	for i, s := range c.subs {
		if s == rt {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	if c.pendingRemote == rt {
		c.pendingRemote = nil
	}
	mon := c.remoteMon
	isAgent := domain.ClassifyIdentity(rt.Participant()) == domain.RoleAgent
	if isAgent {
		c.remoteMon = nil
	}
	c.mu.Unlock()

	rt.Detach()
	if isAgent && mon != nil {
		mon.Stop()
	}
	log.Info().Str("module", "session").Str("identity", string(rt.Participant())).Msg("track unsubscribed")
}

func (c *Controller) onData(from domain.Identity, payload []byte) {
	in := relay.Decode(string(from), payload)

	c.mu.Lock()
	switch in.Kind {
	case relay.KindTranscript:
		c.transcript = append(c.transcript, domain.NewTranscriptEntry(in.Speaker, in.Text))
	case relay.KindChat:
		msg, err := domain.NewChatMessage(domain.SenderAgent, in.Text)
		if err == nil {
			c.chat = append(c.chat, msg)
		}
	}
	c.mu.Unlock()
}

func (c *Controller) onQualityChanged(id domain.Identity, quality string) {
	// Observability only.
	log.Debug().Str("module", "session").Str("identity", string(id)).Str("quality", quality).Msg("connection quality changed")
}

func (c *Controller) onDisconnected(reason string) {
	note := "connection lost"
	if reason != "" {
		note = "connection lost: " + reason
	}
	// The transport already closed the session; clean up local state only.
	c.teardown(false, note)
}
