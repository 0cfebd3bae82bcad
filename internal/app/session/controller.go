// Package session owns the connect/disconnect/publish/subscribe
// sequencing for one client of the clinic assistant room.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dentavoice/voiceclient/internal/app/levels"
	"github.com/dentavoice/voiceclient/internal/core"
	"github.com/dentavoice/voiceclient/internal/domain"
)

var (
	ErrAlreadyConnected = errors.New("already connected or connecting")
	ErrNotConnected     = errors.New("not connected")
	ErrConnectAborted   = errors.New("connect aborted by disconnect")
)

type Config struct {
	// RoomName overrides the per-user room convention when non-empty.
	RoomName       domain.RoomName
	ConnectTimeout time.Duration
	// DeviceSettle is how long to wait after a device change before the
	// new default device is asked for a track.
	DeviceSettle time.Duration
	Capture      core.CaptureOptions
	Levels       levels.Options
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 15 * time.Second,
		DeviceSettle:   300 * time.Millisecond,
		Capture:        core.DefaultCaptureOptions(),
		Levels:         levels.DefaultOptions(),
	}
}

type Deps struct {
	Tokens core.TokenProvider
	Dialer core.RoomDialer
	Mic    core.MicrophoneSource
}

// Controller is the session lifecycle state machine. All mutable
// per-connection state lives here and is reset on every connect; nothing
// leaks across connections.
type Controller struct {
	cfg      Config
	deps     Deps
	identity domain.Identity

	mu      sync.Mutex
	status  domain.ConnectionStatus
	room    core.RoomSession
	lastErr string
	gen     uint64 // bumped on teardown to abort in-flight connects

	speaking      bool
	gesture       core.Gesture // granted after the first speak toggle
	localTrack    core.LocalTrack
	localMon      *levels.Monitor
	remoteMon     *levels.Monitor
	pendingRemote core.RemoteTrack

	volume float64
	subs   []core.RemoteTrack

	chat       []domain.ChatMessage
	transcript []domain.TranscriptEntry

	localLevel  atomic.Uint64 // float64 bits
	remoteLevel atomic.Uint64
}

func NewController(cfg Config, deps Deps) *Controller {
	return &Controller{
		cfg:      cfg,
		deps:     deps,
		identity: domain.NewIdentity(),
		volume:   1.0,
	}
}

// Connect acquires a token and opens the room. The microphone is NOT
// published here; the user enables speaking separately, so they can hear
// the agent before committing their own audio.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.status != domain.StatusDisconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.status = domain.StatusConnecting
	c.lastErr = ""
	c.chat = nil
	c.transcript = nil
	gen := c.gen
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	roomName := c.cfg.RoomName
	if roomName == "" {
		roomName = domain.RoomFor(c.identity)
	}

	creds, err := c.deps.Tokens.GenerateToken(ctx, roomName, c.identity)
	if err != nil {
		return c.failConnect(gen, fmt.Errorf("token request: %w", err))
	}

	room, err := c.deps.Dialer.Dial(ctx, creds.URL, creds.Token, creds.Room, c.handlers())
	if err != nil {
		return c.failConnect(gen, fmt.Errorf("room open: %w", err))
	}

	c.mu.Lock()
	if c.gen != gen || c.status != domain.StatusConnecting {
		// A disconnect raced the dial; settle as disconnected.
		c.mu.Unlock()
		_ = room.Close()
		log.Warn().Str("module", "session").Str("identity", string(c.identity)).Msg("connect aborted mid-flight")
		return ErrConnectAborted
	}
	c.room = room
	c.status = domain.StatusConnected
	c.appendSystemLocked("connected to " + string(creds.Room))
	for _, id := range room.RemoteParticipants() {
		if domain.ClassifyIdentity(id) == domain.RoleAgent {
			c.appendSystemLocked("assistant is in the room")
		} else {
			c.appendSystemLocked(string(id) + " is in the room")
		}
	}
	c.mu.Unlock()

	log.Info().Str("module", "session").Str("identity", string(c.identity)).Str("room", string(creds.Room)).Msg("connected")
	return nil
}

func (c *Controller) failConnect(gen uint64, err error) error {
	c.mu.Lock()
	if c.gen == gen && c.status == domain.StatusConnecting {
		c.status = domain.StatusDisconnected
		c.lastErr = err.Error()
	}
	c.mu.Unlock()
	log.Error().Err(err).Str("module", "session").Msg("connect failed")
	return err
}

// Disconnect closes the session and releases every held resource.
// Always safe to call, including when never connected.
func (c *Controller) Disconnect() {
	c.teardown(true, "disconnected")
}

// teardown is the single cleanup path, shared by explicit disconnect and
// transport-initiated drops (closeRoom=false: the session is already
// gone, only local resources remain).
func (c *Controller) teardown(closeRoom bool, note string) {
	c.mu.Lock()
	c.gen++
	wasActive := c.status != domain.StatusDisconnected
	c.status = domain.StatusDisconnected
	room := c.room
	c.room = nil
	track := c.localTrack
	c.localTrack = nil
	lm, rm := c.localMon, c.remoteMon
	c.localMon, c.remoteMon = nil, nil
	c.pendingRemote = nil
	c.speaking = false
	c.gesture = core.Gesture{}
	subs := c.subs
	c.subs = nil
	if wasActive {
		c.appendSystemLocked(note)
	}
	c.mu.Unlock()

	if lm != nil {
		lm.Stop()
	}
	if rm != nil {
		rm.Stop()
	}
	for _, rt := range subs {
		rt.Detach()
	}
	if room != nil {
		_ = room.UnpublishMicrophone()
	}
	if track != nil {
		_ = track.Stop()
	}
	if room != nil && closeRoom {
		_ = room.Close()
	}
	if wasActive {
		log.Info().Str("module", "session").Str("identity", string(c.identity)).Str("note", note).Msg("session torn down")
	}
}

func (c *Controller) appendSystemLocked(text string) {
	c.transcript = append(c.transcript, domain.NewTranscriptEntry("system", text))
}

func (c *Controller) setLocalLevel(v float64) {
	c.localLevel.Store(math.Float64bits(v))
}

func (c *Controller) setRemoteLevel(v float64) {
	c.remoteLevel.Store(math.Float64bits(v))
}
