package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"patrol-session-backend/config"
	"patrol-session-backend/internal/mw"
	"patrol-session-backend/internal/patrol"
	"patrol-session-backend/internal/store"
)

// NewRouter creates and configures the gin router for the patrol terminal.
func NewRouter(cfg *config.Config, orch *patrol.Orchestrator, s store.SnapshotStore, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(orch, s, webpushOptions, cfg.Patrol.PhotoDir)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst, cfg.Server.RequestIPHeader)

	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/patrol/start", handler.StartPatrol)
		api.POST("/patrol/capture", handler.CapturePhoto)
		api.POST("/patrol/cancel", handler.CancelCapture)
		api.POST("/patrol/face-scan", handler.FaceScanCompleted)
		api.GET("/patrol/status", handler.GetStatus)
		api.GET("/patrol/checkpoints", caching, handler.GetCheckpoints)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
