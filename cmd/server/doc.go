// Package main is the entry point for the file manager server.
//
// The server exposes a sandboxed directory tree over a single HTTP
// connector endpoint, /api/filemanager, plus /health and /metrics.
//
// Configuration:
//   - Environment variables (12-factor), e.g. PORT, FM_FILE_ROOT
//   - An optional YAML, TOML or JSON file named by FM_CONFIG_FILE,
//     whose values override the environment
//   - Defaults for development
//
// Usage:
//
//	# Serve ./userfiles on :8000
//	./server
//
//	# Read-only, with restriction rules from a file
//	FM_READ_ONLY=true FM_CONFIG_FILE=filemanager.yaml ./server
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
