package core

import (
	"context"

	"github.com/dentavoice/voiceclient/internal/domain"
)

// EventHandlers is the full listener set for a room session.
// Handlers are registered atomically with opening the session so no
// early event (e.g. an already-present agent) is missed.
type EventHandlers struct {
	OnParticipantJoined func(id domain.Identity)
	OnParticipantLeft   func(id domain.Identity)
	OnTrackSubscribed   func(t RemoteTrack)
	OnTrackUnsubscribed func(t RemoteTrack)
	OnData              func(from domain.Identity, payload []byte)
	OnQualityChanged    func(id domain.Identity, quality string)
	OnDisconnected      func(reason string)
}

// RoomSession is the open transport session. It is exclusively owned by
// the session controller; no other component mutates it directly.
type RoomSession interface {
	Name() domain.RoomName
	// RemoteParticipants snapshots identities already present in the room.
	RemoteParticipants() []domain.Identity

	PublishMicrophone(ctx context.Context, track LocalTrack) error
	UnpublishMicrophone() error

	// SendData publishes a payload on the data channel with reliable
	// delivery semantics.
	SendData(ctx context.Context, payload []byte) error

	// Close is idempotent.
	Close() error
}

// RoomDialer opens a transport session with the given credential.
type RoomDialer interface {
	Dial(ctx context.Context, url, token string, room domain.RoomName, h EventHandlers) (RoomSession, error)
}
