// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package metrics registers the service's prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	dispatchCount        *prometheus.CounterVec
	transitionCount      *prometheus.CounterVec
	trackDuration        *prometheus.HistogramVec
	llmRequestCount      *prometheus.CounterVec
	llmRequestDuration   *prometheus.HistogramVec
	gcDeletedCount       prometheus.Counter
	httpRequestCount     *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
)

func init() {
	dispatchCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: "codelens",
			Name:      "dispatch_total",
			Help:      "Total number of analysis dispatch attempts",
		},
		[]string{"trigger_type", "outcome"}, // outcome: queued, conflict, rejected, error
	)
	prometheus.MustRegister(dispatchCount)

	transitionCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: "codelens",
			Name:      "track_transition_total",
			Help:      "Total number of applied track status transitions",
		},
		[]string{"track", "status"},
	)
	prometheus.MustRegister(transitionCount)

	trackDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Subsystem: "codelens",
			Name:      "track_duration_seconds",
			Help:      "Wall time of one track execution",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"track", "outcome"}, // outcome: completed, failed
	)
	prometheus.MustRegister(trackDuration)

	llmRequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: "codelens",
			Name:      "llm_request_total",
			Help:      "Total number of model chat requests",
		},
		[]string{"model", "outcome"}, // outcome: ok, error
	)
	prometheus.MustRegister(llmRequestCount)

	llmRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Subsystem: "codelens",
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of model chat requests",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"model"},
	)
	prometheus.MustRegister(llmRequestDuration)

	gcDeletedCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Subsystem: "codelens",
			Name:      "content_cache_gc_deleted_total",
			Help:      "Total number of content caches reclaimed by GC",
		},
	)
	prometheus.MustRegister(gcDeletedCount)

	httpRequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: "codelens",
			Name:      "http_request_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	prometheus.MustRegister(httpRequestCount)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Subsystem: "codelens",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP request handling",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	prometheus.MustRegister(httpRequestDuration)
}

// ObserveDispatch records one dispatch attempt
func ObserveDispatch(triggerType, outcome string) {
	dispatchCount.WithLabelValues(triggerType, outcome).Inc()
}

// ObserveTransition records one applied status transition
func ObserveTransition(track, status string) {
	transitionCount.WithLabelValues(track, status).Inc()
}

// ObserveTrackDuration records one finished track execution
func ObserveTrackDuration(track, outcome string, duration time.Duration) {
	trackDuration.WithLabelValues(track, outcome).Observe(duration.Seconds())
}

// ObserveLLMRequest records one model chat round trip
func ObserveLLMRequest(model string, err error, duration time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	llmRequestCount.WithLabelValues(model, outcome).Inc()
	llmRequestDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// ObserveGCDeleted records reclaimed content caches
func ObserveGCDeleted(count int) {
	gcDeletedCount.Add(float64(count))
}

// GinMiddleware records request counts and latencies per route. The
// route template, not the raw path, keys the series to bound
// cardinality.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestCount.WithLabelValues(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(
			c.Request.Method, path).Observe(time.Since(started).Seconds())
	}
}

// Handler exposes the prometheus scrape endpoint
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
