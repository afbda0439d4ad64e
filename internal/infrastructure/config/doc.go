// Package config provides 12-factor configuration management for the file manager.
//
// Configuration is loaded from environment variables with sensible defaults.
// An optional file named by FM_CONFIG_FILE is decoded over the environment
// values; keys present in the file win.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host, connection cap, shutdown)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - CORS: Allowed origins
//   - Storage: Sandbox root, thumbnail root, public path prefix
//   - Upload: Upload size limit in bytes
//   - Images: Image extensions and thumbnail bounds
//   - Security: Read-only mode, folder downloads, restriction rules
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("Serving %s on %s:%s\n", cfg.Storage.FileRoot, cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, MAX_CONNECTIONS, SHUTDOWN_TIMEOUT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - CORS_ORIGINS
//   - FM_FILE_ROOT, FM_THUMBNAIL_ROOT, FM_PUBLIC_PREFIX, FM_UPLOAD_LIMIT
//   - FM_IMAGE_EXTENSIONS, FM_THUMBNAIL_ENABLED, FM_THUMBNAIL_MAX_WIDTH, FM_THUMBNAIL_MAX_HEIGHT
//   - FM_READ_ONLY, FM_ALLOW_FOLDER_DOWNLOAD, FM_DEFAULT_POLICY, FM_RULES_IGNORE_CASE, FM_EXTRACT_MAX_ENTRY
//   - FM_CONFIG_FILE
//
// Restriction rules are only read from the config file.
package config
