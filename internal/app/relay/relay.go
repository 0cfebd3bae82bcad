// Package relay decodes inbound data-channel payloads and encodes
// outbound chat. The remote side may emit either structured transcript
// envelopes or plain chat text; both are handled without negotiation.
package relay

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"
)

type Kind int

const (
	KindChat Kind = iota
	KindTranscript
)

// Inbound is the tagged result of decoding one data-channel payload.
type Inbound struct {
	Kind    Kind
	Speaker string
	Text    string
}

type envelope struct {
	Type    string `json:"type"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Decode interprets payload as UTF-8 text. A JSON envelope carrying the
// transcript marker becomes a transcript event attributed to its speaker
// (falling back to the sending participant); anything else is freeform
// chat from the remote party. Malformed structured data degrades to chat
// on purpose, it never raises.
func Decode(sender string, payload []byte) Inbound {
	text := string(payload)

	var env envelope
	if err := json.Unmarshal(payload, &env); err == nil && env.Type == "transcript" {
		speaker := env.Speaker
		if speaker == "" {
			speaker = sender
		}
		return Inbound{Kind: KindTranscript, Speaker: speaker, Text: env.Text}
	}

	log.Debug().Str("module", "relay").Str("from", sender).Msg("payload is not a transcript envelope, treating as chat")
	return Inbound{Kind: KindChat, Speaker: sender, Text: text}
}

// EncodeChat prepares user chat for the wire: plain UTF-8, no envelope.
func EncodeChat(text string) ([]byte, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, false
	}
	return []byte(trimmed), true
}
