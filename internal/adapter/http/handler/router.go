package handler

import (
	"rupeeverse-engine/internal/adapter/http/middleware"
	"rupeeverse-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	QueueSvc       ports.QueueService
	TokenCodec     ports.TokenCodec
	HealthCheckers []ports.HealthChecker
	Registry       *prometheus.Registry // nil = /metrics disabled
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check verifies the configured slot store
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	if deps.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	queueHandler := NewQueueHandler(deps.QueueSvc)
	payments := v1.Group("/payments")
	{
		payments.POST("", queueHandler.CreatePayment)
		payments.GET("", queueHandler.ListPayments)
	}

	queue := v1.Group("/queue")
	{
		queue.GET("/status", queueHandler.GetQueueStatus)
		queue.POST("/sync", queueHandler.ForceSync)
	}

	tokenHandler := NewTokenHandler(deps.TokenCodec)
	tokens := v1.Group("/tokens")
	{
		tokens.POST("/encode", tokenHandler.EncodeToken)
		tokens.POST("/decode", tokenHandler.DecodeToken)
	}

	return r
}
