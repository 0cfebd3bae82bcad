// Package token is the HTTP client for the external token-issuance API.
package token

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dentavoice/voiceclient/internal/core"
	"github.com/dentavoice/voiceclient/internal/domain"
)

var ErrBadResponse = errors.New("token API returned an unusable response")

type Client struct {
	base string
	http *http.Client
}

func NewClient(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

type tokenRequest struct {
	RoomName        string `json:"room_name"`
	ParticipantName string `json:"participant_name"`
	Metadata        string `json:"metadata,omitempty"`
}

type tokenResponse struct {
	Token           string `json:"token"`
	URL             string `json:"url"`
	RoomName        string `json:"room_name"`
	ParticipantName string `json:"participant_name"`
}

// GenerateToken requests a short-lived room access credential. Any
// non-2xx status is a failure.
func (c *Client) GenerateToken(ctx context.Context, room domain.RoomName, identity domain.Identity) (core.Credentials, error) {
	body, err := json.Marshal(tokenRequest{
		RoomName:        string(room),
		ParticipantName: string(identity),
	})
	if err != nil {
		return core.Credentials{}, fmt.Errorf("encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/generate-token", bytes.NewReader(body))
	if err != nil {
		return core.Credentials{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return core.Credentials{}, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error().Str("module", "token").Int("status", resp.StatusCode).Msg("token request rejected")
		return core.Credentials{}, fmt.Errorf("token request: unexpected status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return core.Credentials{}, fmt.Errorf("decode token response: %w", err)
	}
	if tr.Token == "" || tr.URL == "" {
		return core.Credentials{}, ErrBadResponse
	}

	return core.Credentials{
		Token: tr.Token,
		URL:   tr.URL,
		Room:  domain.RoomName(tr.RoomName),
	}, nil
}
