// Package middleware provides production-ready HTTP middleware for the file manager.
//
// Middleware stack includes:
//   - Recovery: Panic recovery with an error envelope
//   - RequestID: Request ID propagation via X-Request-ID
//   - Logger: Structured request logging with zap
//   - CORS: Cross-origin resource sharing with configurable origins
//   - RateLimit: Per-IP token bucket rate limiting
//
// Rate Limiting:
//   - Per-IP tracking with idle client eviction
//   - Token bucket algorithm
//   - Configurable RPS and burst capacity
//   - Global rate limiting option
//
// Example Usage:
//
//	router.Use(middleware.Recovery(logger), middleware.RequestID(), middleware.Logger(logger))
//	router.Use(middleware.CORS(middleware.CORSForOrigins(cfg.CORS.Origins)))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
