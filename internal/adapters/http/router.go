// Package http exposes the token service REST API: short-lived room
// tokens for clients plus a couple of operational endpoints.
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dentavoice/voiceclient/internal/config"
)

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

func SetupRouter(cfg *config.Config, svc *TokenService) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	log.Info().Str("module", "adapters.http").Str("livekit", cfg.LiveKitURL).Msg("router setup")

	api := r.Group("/api")
	api.POST("/generate-token", svc.HandleGenerateToken)
	api.POST("/create-room", svc.HandleCreateRoom)
	api.GET("/health", svc.HandleHealth)

	return r
}
