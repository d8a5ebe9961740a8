package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"parts-inventory/internal/gateway/handlers"
	"parts-inventory/internal/gateway/middleware"
	"parts-inventory/internal/query"
)

// Pinger is anything the detailed health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type routerDeps struct {
	parts       *handlers.PartsHTTPHandler
	cache       *query.Cache
	upstream    Pinger
	redis       Pinger // nil when cross-instance invalidation is off
	rateLimit   string
	corsOrigins []string
	logger      *zap.Logger
}

func setupRouter(deps routerDeps) (*gin.Engine, error) {
	limit, err := middleware.RateLimit(deps.rateLimit)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	r.Use(middleware.CORS(deps.corsOrigins))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.logger))
	r.Use(middleware.Recovery(deps.logger))
	r.Use(limit)

	// --- API Group ---
	api := r.Group("/api/v1")
	deps.parts.RegisterRoutes(api)

	r.GET("/health", healthCheckHandler(deps.cache))
	r.GET("/health/detailed", detailedHealthCheckHandler(deps.upstream, deps.redis))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "Route not found",
		})
	})

	return r, nil
}

func healthCheckHandler(cache *query.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":        "healthy",
			"message":       "Server is running",
			"cache_entries": cache.Len(),
			"timestamp":     time.Now(),
		})
	}
}

func detailedHealthCheckHandler(upstream, redis Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		services := map[string]interface{}{
			"parts_api": checkServiceHealth(ctx, upstream),
		}
		if redis != nil {
			services["redis"] = checkServiceHealth(ctx, redis)
		}

		overallStatus := "healthy"
		httpStatus := http.StatusOK
		for _, service := range services {
			if serviceMap, ok := service.(map[string]interface{}); ok {
				if serviceMap["status"] != "healthy" {
					overallStatus = "degraded"
					httpStatus = http.StatusServiceUnavailable
				}
			}
		}

		c.JSON(httpStatus, gin.H{
			"overall_status": overallStatus,
			"services":       services,
			"timestamp":      time.Now(),
		})
	}
}

func checkServiceHealth(ctx context.Context, p Pinger) map[string]interface{} {
	if p == nil {
		return map[string]interface{}{
			"status":  "unavailable",
			"message": "Service client not initialized",
		}
	}
	if err := p.Ping(ctx); err != nil {
		return map[string]interface{}{
			"status":  "unavailable",
			"message": err.Error(),
		}
	}
	return map[string]interface{}{
		"status":  "healthy",
		"message": "Service is responding",
	}
}
