package api

import (
	"github.com/Conceptual-Machines/magda-patterns/internal/api/handlers"
	apimiddleware "github.com/Conceptual-Machines/magda-patterns/internal/api/middleware"
	"github.com/Conceptual-Machines/magda-patterns/internal/config"
	"github.com/gin-gonic/gin"
)

func SetupRouter(cfg *config.Config, version string) *gin.Engine {
	router := gin.New()

	// Recovery middleware (must be first)
	router.Use(apimiddleware.RecoverWithSentry())

	// Sentry middleware for error tracking
	router.Use(apimiddleware.SentryMiddleware())

	// Request tracking and structured logging
	router.Use(apimiddleware.RequestTracking())

	// CORS middleware
	router.Use(apimiddleware.CORS())

	// Health check
	router.GET("/health", handlers.HealthCheck)

	// Metrics endpoint
	metricsHandler := handlers.NewMetricsHandler(version)
	router.GET("/api/metrics", metricsHandler.GetMetrics)

	// API routes v1 - pattern generation is stateless, no auth required
	v1 := router.Group("/api/v1")
	{
		patternHandler := handlers.NewPatternHandler(cfg)
		v1.POST("/patterns", patternHandler.GeneratePattern)
		v1.GET("/patterns/meta", patternHandler.GetPatternMeta)
	}

	return router
}
