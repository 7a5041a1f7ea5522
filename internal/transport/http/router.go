package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/waste3d/cardvault-api/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps carries what NewRouter wires. DiscoverLimit may be nil.
type RouterDeps struct {
	Discovery      *DiscoveryHandler
	Auth           gin.HandlerFunc
	DiscoverLimit  gin.HandlerFunc
	Store          Pinger
	AllowedOrigins []string
	Log            *zap.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(deps.Log))

	if len(deps.AllowedOrigins) > 0 {
		config := cors.DefaultConfig()
		config.AllowOrigins = deps.AllowedOrigins
		config.AllowCredentials = true
		config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
		config.AllowMethods = []string{"GET", "POST", "PATCH", "OPTIONS"}
		config.MaxAge = 12 * time.Hour
		r.Use(cors.New(config))
	}

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 2*time.Second)
		defer cancel()
		if err := deps.Store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	api.Use(deps.Auth)
	{
		cards := api.Group("/cards")
		{
			cards.GET("", deps.Discovery.Catalog)
			discover := []gin.HandlerFunc{deps.Discovery.Discover}
			if deps.DiscoverLimit != nil {
				discover = append([]gin.HandlerFunc{deps.DiscoverLimit}, discover...)
			}
			cards.POST("/discover", discover...)
			cards.GET("/collection", deps.Discovery.Collection)
			cards.PATCH("/collection/:id/favorite", deps.Discovery.ToggleFavorite)
		}
		progress := api.Group("/progress")
		{
			progress.GET("", deps.Discovery.GetProgress)
			progress.POST("", deps.Discovery.UpdateProgress)
			progress.GET("/triggers", deps.Discovery.CheckTriggers)
		}
	}

	return r
}
