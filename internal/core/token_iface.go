package core

import (
	"context"

	"github.com/dentavoice/voiceclient/internal/domain"
)

// Credentials is a short-lived room access grant from the token API.
type Credentials struct {
	Token string
	URL   string
	Room  domain.RoomName
}

type TokenProvider interface {
	GenerateToken(ctx context.Context, room domain.RoomName, identity domain.Identity) (Credentials, error)
}
