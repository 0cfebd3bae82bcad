// Package livekit adapts the LiveKit room SDK to the core transport
// interfaces. All SDK specifics stay behind this package.
package livekit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
	"gopkg.in/hraban/opus.v2"

	"github.com/dentavoice/voiceclient/internal/core"
	"github.com/dentavoice/voiceclient/internal/domain"
)

const (
	playbackRate  = 48000
	frameDuration = 20 * time.Millisecond
)

var ErrNotPublished = errors.New("no microphone publication")

type Dialer struct {
	sinks core.SinkFactory
}

func NewDialer(sinks core.SinkFactory) *Dialer {
	return &Dialer{sinks: sinks}
}

// Dial opens the room with the listener set wired into the SDK callback
// struct, so registration is atomic with the connect.
func (d *Dialer) Dial(ctx context.Context, url, token string, name domain.RoomName, h core.EventHandlers) (core.RoomSession, error) {
	rs := &roomSession{
		name:     name,
		sinks:    d.sinks,
		handlers: h,
		tracks:   make(map[string]*remoteTrack),
	}

	cb := &lksdk.RoomCallback{
		OnParticipantConnected: func(rp *lksdk.RemoteParticipant) {
			if h.OnParticipantJoined != nil {
				h.OnParticipantJoined(domain.Identity(rp.Identity()))
			}
		},
		OnParticipantDisconnected: func(rp *lksdk.RemoteParticipant) {
			if h.OnParticipantLeft != nil {
				h.OnParticipantLeft(domain.Identity(rp.Identity()))
			}
		},
		OnDisconnected: func() {
			if h.OnDisconnected != nil {
				h.OnDisconnected("transport closed")
			}
		},
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed:   rs.onTrackSubscribed,
			OnTrackUnsubscribed: rs.onTrackUnsubscribed,
			OnDataPacket:        rs.onDataPacket,
			OnConnectionQualityChanged: func(update *livekit.ConnectionQualityInfo, p lksdk.Participant) {
				if h.OnQualityChanged != nil {
					h.OnQualityChanged(domain.Identity(p.Identity()), update.Quality.String())
				}
			},
		},
	}

	room, err := awaitConnect(ctx, func() (*lksdk.Room, error) {
		return lksdk.ConnectToRoomWithToken(url, token, cb, lksdk.WithAutoSubscribe(true))
	}, func(r *lksdk.Room) { r.Disconnect() })
	if err != nil {
		return nil, fmt.Errorf("connect to room: %w", err)
	}

	rs.mu.Lock()
	rs.room = room
	rs.mu.Unlock()

	log.Info().Str("module", "livekit").Str("room", string(name)).Msg("room opened")
	return rs, nil
}

// awaitConnect runs the SDK connect in its own goroutine so a stalled
// dial cannot outlive the caller's deadline. A room that arrives after
// the context is done has no owner and is handed to discard.
func awaitConnect(ctx context.Context, connect func() (*lksdk.Room, error), discard func(*lksdk.Room)) (*lksdk.Room, error) {
	type result struct {
		room *lksdk.Room
		err  error
	}
	res := make(chan result, 1)
	go func() {
		room, err := connect()
		res <- result{room: room, err: err}
	}()

	select {
	case r := <-res:
		return r.room, r.err
	case <-ctx.Done():
		go func() {
			if r := <-res; r.room != nil {
				log.Warn().Str("module", "livekit").Msg("room arrived after deadline, discarding")
				discard(r.room)
			}
		}()
		return nil, ctx.Err()
	}
}

type roomSession struct {
	name     domain.RoomName
	sinks    core.SinkFactory
	handlers core.EventHandlers

	mu         sync.Mutex
	room       *lksdk.Room
	pub        *lksdk.LocalTrackPublication
	stopEncode context.CancelFunc
	tracks     map[string]*remoteTrack
	closed     bool
}

func (rs *roomSession) Name() domain.RoomName { return rs.name }

func (rs *roomSession) RemoteParticipants() []domain.Identity {
	rs.mu.Lock()
	room := rs.room
	rs.mu.Unlock()
	if room == nil {
		return nil
	}
	var out []domain.Identity
	for _, rp := range room.GetRemoteParticipants() {
		out = append(out, domain.Identity(rp.Identity()))
	}
	return out
}

// PublishMicrophone wraps the PCM track into an opus sample track tagged
// as a microphone source, the designation browsers expect for voice.
func (rs *roomSession) PublishMicrophone(ctx context.Context, lt core.LocalTrack) error {
	rs.mu.Lock()
	room := rs.room
	already := rs.pub != nil
	rs.mu.Unlock()
	if room == nil {
		return errors.New("room closed")
	}
	if already {
		return errors.New("microphone already published")
	}

	sampleTrack, err := lksdk.NewLocalSampleTrack(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: playbackRate,
		Channels:  1,
	})
	if err != nil {
		return fmt.Errorf("create sample track: %w", err)
	}

	enc, err := opus.NewEncoder(lt.SampleRate(), 1, opus.AppVoIP)
	if err != nil {
		return fmt.Errorf("create opus encoder: %w", err)
	}

	pub, err := room.LocalParticipant.PublishTrack(sampleTrack, &lksdk.TrackPublicationOptions{
		Name:   "microphone",
		Source: livekit.TrackSource_MICROPHONE,
	})
	if err != nil {
		return fmt.Errorf("publish track: %w", err)
	}

	encCtx, cancel := context.WithCancel(context.Background())
	rs.mu.Lock()
	rs.pub = pub
	rs.stopEncode = cancel
	rs.mu.Unlock()

	go encodeLoop(encCtx, lt, enc, sampleTrack)

	log.Info().Str("module", "livekit").Str("sid", pub.SID()).Str("device", lt.Label()).Msg("microphone published")
	return nil
}

func encodeLoop(ctx context.Context, lt core.LocalTrack, enc *opus.Encoder, out *lksdk.LocalSampleTrack) {
	buf := make([]byte, 1400)
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-lt.PCM():
			if !ok {
				return
			}
			n, err := enc.Encode(frame, buf)
			if err != nil {
				log.Error().Err(err).Str("module", "livekit").Msg("opus encode")
				continue
			}
			data := make([]byte, n)
			copy(data, buf[:n])
			if err := out.WriteSample(media.Sample{Data: data, Duration: frameDuration}, nil); err != nil {
				log.Error().Err(err).Str("module", "livekit").Msg("write sample")
				return
			}
		}
	}
}

func (rs *roomSession) UnpublishMicrophone() error {
	rs.mu.Lock()
	room := rs.room
	pub := rs.pub
	cancel := rs.stopEncode
	rs.pub = nil
	rs.stopEncode = nil
	rs.mu.Unlock()

	if pub == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}
	if room != nil {
		if err := room.LocalParticipant.UnpublishTrack(pub.SID()); err != nil {
			log.Error().Err(err).Str("module", "livekit").Str("sid", pub.SID()).Msg("unpublish track")
			return err
		}
	}
	log.Info().Str("module", "livekit").Str("sid", pub.SID()).Msg("microphone unpublished")
	return nil
}

func (rs *roomSession) SendData(_ context.Context, payload []byte) error {
	rs.mu.Lock()
	room := rs.room
	rs.mu.Unlock()
	if room == nil {
		return errors.New("room closed")
	}
	return room.LocalParticipant.PublishData(payload, lksdk.WithDataPublishReliable(true))
}

func (rs *roomSession) Close() error {
	rs.mu.Lock()
	if rs.closed {
		rs.mu.Unlock()
		return nil
	}
	rs.closed = true
	room := rs.room
	rs.room = nil
	cancel := rs.stopEncode
	rs.stopEncode = nil
	rs.pub = nil
	tracks := rs.tracks
	rs.tracks = make(map[string]*remoteTrack)
	rs.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, rt := range tracks {
		rt.Detach()
	}
	if room != nil {
		room.Disconnect()
	}
	log.Info().Str("module", "livekit").Str("room", string(rs.name)).Msg("room closed")
	return nil
}
