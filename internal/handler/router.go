package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/evstore/internal/middleware"
)

type RouterDeps struct {
	Ingest          *IngestHandler
	Query           *QueryHandler
	Sessions        *SessionHandler
	Export          *ExportHandler
	JWTSecret       []byte
	RateLimitWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))

	authGroup.POST("/sessions/ingest", middleware.RateLimit(deps.RateLimitWindow), deps.Ingest.Ingest)
	authGroup.POST("/sessions/:id/query", deps.Query.Query)
	authGroup.GET("/sessions/:id", deps.Sessions.Info)
	authGroup.DELETE("/sessions/:id", deps.Sessions.Delete)
	authGroup.GET("/sessions/:id/export", deps.Export.Stream)
	authGroup.POST("/sessions/:id/export", deps.Export.Push)
}
