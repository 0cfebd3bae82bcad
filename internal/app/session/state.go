package session

import (
	"math"

	"github.com/dentavoice/voiceclient/internal/domain"
)

// Snapshot is the read-only view the presentation layer renders from.
type Snapshot struct {
	Status      domain.ConnectionStatus
	Identity    domain.Identity
	Speaking    bool
	LocalLevel  float64
	RemoteLevel float64
	Volume      float64
	LastError   string
	Chat        []domain.ChatMessage
	Transcript  []domain.TranscriptEntry
}

// State copies the current session state. The chat and transcript slices
// are append-only, so the copies stay valid render input.
func (c *Controller) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	chat := make([]domain.ChatMessage, len(c.chat))
	copy(chat, c.chat)
	transcript := make([]domain.TranscriptEntry, len(c.transcript))
	copy(transcript, c.transcript)
	return Snapshot{
		Status:      c.status,
		Identity:    c.identity,
		Speaking:    c.speaking,
		LocalLevel:  math.Float64frombits(c.localLevel.Load()),
		RemoteLevel: math.Float64frombits(c.remoteLevel.Load()),
		Volume:      c.volume,
		LastError:   c.lastErr,
		Chat:        chat,
		Transcript:  transcript,
	}
}

func (c *Controller) Status() domain.ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) Identity() domain.Identity { return c.identity }

func (c *Controller) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

func (c *Controller) LocalLevel() float64 {
	return math.Float64frombits(c.localLevel.Load())
}

func (c *Controller) RemoteLevel() float64 {
	return math.Float64frombits(c.remoteLevel.Load())
}

func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}
