package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/rs/zerolog/log"

	"github.com/dentavoice/voiceclient/internal/config"
	"github.com/dentavoice/voiceclient/internal/domain"
)

type TokenRequest struct {
	RoomName        string `json:"room_name"`
	ParticipantName string `json:"participant_name"`
	Metadata        string `json:"metadata"`
}

type TokenResponse struct {
	Token           string `json:"token"`
	URL             string `json:"url"`
	RoomName        string `json:"room_name"`
	ParticipantName string `json:"participant_name"`
}

type CreateRoomRequest struct {
	RoomName string `json:"room_name"`
}

// RoomCreator is the slice of the LiveKit room service the handlers
// need, kept narrow so tests can stand in for the real server.
type RoomCreator interface {
	CreateRoom(ctx context.Context, req *livekit.CreateRoomRequest) (*livekit.Room, error)
}

type TokenService struct {
	cfg   *config.Config
	rooms RoomCreator
}

func NewTokenService(cfg *config.Config) *TokenService {
	// RoomServiceClient speaks HTTP even when clients join over ws://.
	host := strings.Replace(cfg.LiveKitURL, "ws://", "http://", 1)
	host = strings.Replace(host, "wss://", "https://", 1)
	client := lksdk.NewRoomServiceClient(host, cfg.LiveKitAPIKey, cfg.LiveKitAPISecret)
	return &TokenService{cfg: cfg, rooms: client}
}

func (s *TokenService) HandleGenerateToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ParticipantName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid participant_name"})
		return
	}

	room := req.RoomName
	if room == "" {
		room = string(domain.RoomFor(domain.Identity(req.ParticipantName)))
	}

	at := auth.NewAccessToken(s.cfg.LiveKitAPIKey, s.cfg.LiveKitAPISecret)
	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     room,
	}
	grant.SetCanPublish(true)
	grant.SetCanSubscribe(true)
	grant.SetCanPublishData(true)
	at.SetVideoGrant(grant).
		SetIdentity(req.ParticipantName).
		SetValidFor(s.cfg.TokenTTL)
	if req.Metadata != "" {
		at.SetMetadata(req.Metadata)
	}

	token, err := at.ToJWT()
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("sign access token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	log.Info().Str("module", "adapters.http").Str("room", room).Str("identity", req.ParticipantName).Msg("token issued")
	c.JSON(http.StatusOK, TokenResponse{
		Token:           token,
		URL:             s.cfg.LiveKitURL,
		RoomName:        room,
		ParticipantName: req.ParticipantName,
	})
}

func (s *TokenService) HandleCreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RoomName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid room_name"})
		return
	}

	room, err := s.rooms.CreateRoom(c.Request.Context(), &livekit.CreateRoomRequest{
		Name: req.RoomName,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("room", req.RoomName).Msg("create room")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"room_name": room.Name, "sid": room.Sid})
}

func (s *TokenService) HandleHealth(c *gin.Context) {
	configured := s.cfg.LiveKitURL != "" && s.cfg.LiveKitAPIKey != ""
	url := s.cfg.LiveKitURL
	if url == "" {
		url = "not configured"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"livekit_configured": configured,
		"livekit_url":        url,
	})
}
