package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the HTTP routes.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	SetupRoutes(r, h)
	return r
}

// SetupRoutes registers the API routes on r.
func SetupRoutes(r *gin.Engine, h *Handler) {
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		api.POST("/accounts/:id/import", h.Import)

		transactions := api.Group("/transactions")
		{
			transactions.POST("/:id/reprocess", h.Reprocess)
			transactions.POST("/:id/correction", h.Correct)
		}

		suggestions := api.Group("/suggestions")
		{
			suggestions.GET("", h.ListSuggestions)
			suggestions.POST("/:id/accept", h.AcceptSuggestion)
			suggestions.POST("/:id/reject", h.RejectSuggestion)
		}
	}
}
