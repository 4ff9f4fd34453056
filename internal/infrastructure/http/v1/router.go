// Package v1 provides HTTP API version 1.
package v1

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tombstone/internal/domain/lifecycle"
	"tombstone/internal/infrastructure/http/v1/handlers"
	"tombstone/internal/infrastructure/http/v1/middleware"
	"tombstone/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Service is the lifecycle engine behind /records
	Service *lifecycle.Service

	// Logger for request logging
	Logger *logger.Logger

	// Ping checks the database for /health/ready
	Ping func(ctx context.Context) error

	// Gatherer serves /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Actor())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Ping)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	baseHandler := handlers.NewBaseHandler()
	api := router.Group("/api/v1")
	{
		RegisterRecordRoutes(api.Group("/records"), handlers.NewRecordHandler(baseHandler, cfg.Service))

		meta := handlers.NewMetadataHandler(baseHandler, cfg.Service.Registry())
		api.GET("/meta/types", meta.ListTypes)
		api.GET("/meta/types/:name", meta.GetType)
	}

	return router
}
