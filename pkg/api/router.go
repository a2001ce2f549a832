// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package api assembles the gin engine: middleware chain, /v1 routes,
// health, and the metrics endpoint.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/api/handlers"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/config"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger/log"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/metrics"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/model/rest"
)

// NewEngine builds the configured gin engine
func NewEngine(cfg *config.Config, handler *handlers.Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(metrics.GinMiddleware())
	if cfg.Middleware.IsLoggingEnabled() {
		engine.Use(requestLogger())
	}

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, rest.SuccessResp(c.Request.Context(), gin.H{"status": "ok"}))
	})
	engine.GET("/metrics", metrics.Handler())

	v1 := engine.Group("/v1")
	{
		analyses := v1.Group("/analyses")
		{
			analyses.POST("", handler.CreateAnalysis)
			analyses.GET("/:id", handler.GetAnalysis)
			analyses.GET("/:id/full-status", handler.GetFullStatus)
			analyses.GET("/:id/events", handler.StreamEvents)
			analyses.GET("/:id/issues", handler.ListIssues)
			analyses.GET("/:id/architecture", handler.GetArchitecture)
			analyses.GET("/:id/ai-scan", handler.GetAIScan)
		}
		v1.GET("/repositories/:id/analyses", handler.ListAnalyses)
	}
	return engine
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Authorization, Accept, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger logs one line per request after it finishes.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		log.Infof("http: %s %s -> %d in %s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(started))
	}
}
