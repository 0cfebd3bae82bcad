package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrEmptyMessage = errors.New("empty message")

type Sender string

const (
	SenderUser   Sender = "user"
	SenderAgent  Sender = "agent"
	SenderSystem Sender = "system"
)

// ChatMessage is one entry of the append-only chat sequence.
// Never mutated after creation.
type ChatMessage struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChatMessage avoids raw literals in adapters and keeps construction obvious.
func NewChatMessage(sender Sender, text string) (ChatMessage, error) {
	if len(text) == 0 {
		return ChatMessage{}, ErrEmptyMessage
	}
	return ChatMessage{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    sender,
		Timestamp: time.Now(),
	}, nil
}

// TranscriptEntry is one entry of the append-only transcript sequence,
// produced from structured data-channel payloads.
type TranscriptEntry struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTranscriptEntry(speaker, text string) TranscriptEntry {
	return TranscriptEntry{Speaker: speaker, Text: text, Timestamp: time.Now()}
}
