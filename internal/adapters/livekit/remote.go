package livekit

import (
	"context"
	"sync"

	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"gopkg.in/hraban/opus.v2"

	"github.com/dentavoice/voiceclient/internal/app/levels"
	"github.com/dentavoice/voiceclient/internal/core"
	"github.com/dentavoice/voiceclient/internal/domain"
)

// maxOpusFrame is 120ms at 48kHz mono, the largest frame opus allows.
const maxOpusFrame = 5760

// remoteTrack decodes a subscribed opus track, renders it to a playback
// sink and tees decoded PCM into a gesture-gated level source.
type remoteTrack struct {
	identity domain.Identity
	sink     core.AudioSink
	tee      *levels.Tee
	cancel   context.CancelFunc

	once sync.Once
}

func (rs *roomSession) onTrackSubscribed(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}

	sink, err := rs.sinks.NewSink(playbackRate, 1)
	if err != nil {
		log.Error().Err(err).Str("module", "livekit").Str("identity", rp.Identity()).Msg("open playback sink")
		return
	}
	dec, err := opus.NewDecoder(playbackRate, 1)
	if err != nil {
		log.Error().Err(err).Str("module", "livekit").Msg("create opus decoder")
		_ = sink.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rt := &remoteTrack{
		identity: domain.Identity(rp.Identity()),
		sink:     sink,
		tee:      levels.NewTee(32),
		cancel:   cancel,
	}

	rs.mu.Lock()
	rs.tracks[pub.SID()] = rt
	rs.mu.Unlock()

	go rt.readLoop(ctx, track, dec)

	log.Info().Str("module", "livekit").Str("sid", pub.SID()).Str("identity", rp.Identity()).Msg("audio track subscribed")
	if rs.handlers.OnTrackSubscribed != nil {
		rs.handlers.OnTrackSubscribed(rt)
	}
}

func (rs *roomSession) onTrackUnsubscribed(_ *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	rs.mu.Lock()
	rt, ok := rs.tracks[pub.SID()]
	if ok {
		delete(rs.tracks, pub.SID())
	}
	rs.mu.Unlock()
	if !ok {
		return
	}

	log.Info().Str("module", "livekit").Str("sid", pub.SID()).Str("identity", rp.Identity()).Msg("audio track unsubscribed")
	if rs.handlers.OnTrackUnsubscribed != nil {
		rs.handlers.OnTrackUnsubscribed(rt)
	}
	rt.Detach()
}

func (rs *roomSession) onDataPacket(data lksdk.DataPacket, params lksdk.DataReceiveParams) {
	user, ok := data.(*lksdk.UserDataPacket)
	if !ok {
		return
	}
	if rs.handlers.OnData != nil {
		rs.handlers.OnData(domain.Identity(params.SenderIdentity), user.Payload)
	}
}

// readLoop pulls RTP, decodes to PCM and fans out until the track is
// detached or the stream ends.
func (rt *remoteTrack) readLoop(ctx context.Context, track *webrtc.TrackRemote, dec *opus.Decoder) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			log.Debug().Err(err).Str("module", "livekit").Str("identity", string(rt.identity)).Msg("remote track read ended")
			return
		}
		if len(pkt.Payload) == 0 {
			continue
		}
		pcm := make([]int16, maxOpusFrame)
		n, err := dec.Decode(pkt.Payload, pcm)
		if err != nil {
			log.Debug().Err(err).Str("module", "livekit").Msg("opus decode")
			continue
		}
		frame := pcm[:n]
		if err := rt.sink.WritePCM(frame); err != nil {
			log.Debug().Err(err).Str("module", "livekit").Msg("playback write")
		}
		rt.tee.Push(frame)
	}
}

func (rt *remoteTrack) Participant() domain.Identity { return rt.identity }

func (rt *remoteTrack) SetVolume(v float64) { rt.sink.SetVolume(v) }

func (rt *remoteTrack) Volume() float64 { return rt.sink.Volume() }

func (rt *remoteTrack) Levels() core.LevelSource { return rt.tee }

// Detach stops decoding and releases the sink. Safe to call twice.
func (rt *remoteTrack) Detach() {
	rt.once.Do(func() {
		rt.cancel()
		_ = rt.tee.Close()
		_ = rt.sink.Close()
	})
}
