package handlers

import (
	"github.com/JeroniMan/solana-indexer/internal/middleware"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the status endpoints. Everything except /health
// sits behind basic auth.
func RegisterRoutes(r *gin.Engine) {
	r.GET("/health", GetHealth)

	root := r.Group("/")
	{
		root.Use(middleware.Authorization)
		root.GET("/checkpoints/:stage", GetCheckpoints)
		root.GET("/gaps", GetGaps)
		root.GET("/queue", GetQueue)
	}
}
