// Package domain contains entity without logic, just meta-data
package domain

import (
	"strings"

	"github.com/google/uuid"
)

type (
	RoomName string
	Identity string
)

// AgentPrefix is the identity-prefix convention used to tell the clinic
// assistant apart from human participants in a room.
const AgentPrefix = "agent"

type Role int

const (
	RolePeer Role = iota
	RoleAgent
)

func (r Role) String() string {
	if r == RoleAgent {
		return "agent"
	}
	return "peer"
}

// ClassifyIdentity maps a participant identity to a role by prefix.
func ClassifyIdentity(id Identity) Role {
	if strings.HasPrefix(string(id), AgentPrefix) {
		return RoleAgent
	}
	return RolePeer
}

// NewIdentity generates a participant identity for this process run.
// It is stable for the lifetime of the process and never persisted.
func NewIdentity() Identity {
	return Identity("patient-" + uuid.NewString()[:8])
}

// RoomFor returns the per-user room name convention used by the token API.
func RoomFor(id Identity) RoomName {
	return RoomName("room-" + string(id))
}
