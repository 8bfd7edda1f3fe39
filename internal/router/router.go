package router

import (
	"net/http"
	"time"

	"github.com/dethiai/dethiai-backend/internal/config"
	"github.com/dethiai/dethiai-backend/internal/handler"
	"github.com/dethiai/dethiai-backend/internal/middleware"
	"github.com/dethiai/dethiai-backend/internal/response"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Document   *handler.DocumentHandler
	Generation *handler.GenerationHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Uploads and generation requests fan out into recognition and
	// generation backend calls; budget them separately from plain reads.
	pipelineLimiter := middleware.NewRateLimiter(10, time.Minute)

	api := router.Group("/api/v1")
	api.Use(middleware.RequireUser(cfg.JWTSecret))
	{
		// Documents and their pipeline status
		api.POST("/documents", pipelineLimiter.Middleware(), handlers.Document.UploadDocument)
		api.GET("/documents", handlers.Document.ListDocuments)
		api.GET("/documents/:document_id", handlers.Document.GetDocument)
		api.DELETE("/documents/:document_id", handlers.Document.DeleteDocument)

		// Extracted structure
		api.GET("/documents/:document_id/elements", handlers.Document.ListElements)
		api.GET("/documents/:document_id/questions", handlers.Document.ListQuestions)

		// Exam generation
		api.POST("/documents/:document_id/generations", pipelineLimiter.Middleware(), handlers.Generation.StartGeneration)
		api.GET("/documents/:document_id/generations", handlers.Generation.ListGenerations)
		api.GET("/generations/:generation_id", handlers.Generation.GetGeneration)
		api.DELETE("/generations/:generation_id", handlers.Generation.DeleteGeneration)
		api.GET("/generations/:generation_id/export", handlers.Generation.ExportGeneration)
	}

	return router
}
