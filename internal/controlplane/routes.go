package controlplane

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"
)

func SetupRoutes(h *Handler) http.Handler {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(sloggin.New(slog.Default()))

	v1 := r.Group("/v1")
	{
		v1.GET("/status", h.Status)
		v1.GET("/pairs", h.ListPairs)

		v1Pair := v1.Group("/pairs/:id")
		{
			v1Pair.POST("/check", h.CheckPair)
			v1Pair.POST("/rebuild", h.RebuildPair)
			v1Pair.POST("/invalidate", h.InvalidatePair)
			v1Pair.GET("/version", h.GetVersion)
			v1Pair.GET("/entries", h.ListEntries)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error": "method not allowed",
		})
	})

	return r
}
