/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics for the file manager,
tracking HTTP requests, file operations, thumbnail cache behaviour and
archive processing. Every Metrics value owns a private registry.

# Features

- HTTP request metrics (latency, throughput, size)
- File operation metrics (outcome by error kind, duration)
- Thumbnail cache hit/miss/failure counts and generation time
- Archive entries written, extracted and skipped
- Uptime and Go runtime collectors

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Time operations
	timer := monitoring.NewTimer(metrics, "move")
	// ... perform operation ...
	timer.Stop(monitoring.StatusOK)

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
