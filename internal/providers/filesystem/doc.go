// Package filesystem implements the sandboxed file manager operations.
//
// The package is organized by concern:
//   - engine: Engine construction and the shared validation helpers
//   - directory: Listing, folder creation and sandbox summaries
//   - basic: Info, reads, image and thumbnail streams, downloads, saves, uploads
//   - operations: Move, copy, rename and delete
//   - search: Recursive prefix search
//   - archives: Zip extraction
//   - metadata: Descriptors, content type and charset detection
//
// Every operation runs the same ordered checks before touching disk:
//   - Resolve the client path inside the sandbox root
//   - Require existence and the expected kind (file or folder)
//   - Refuse the root and the thumbnail tree where it matters
//   - Check permission bits and restriction rules
//   - Detect collisions with existing entries
//
// Validation failures abort before any mutation. Thumbnail maintenance
// after a mutation is best effort and only logged when it fails.
//
// Example Usage:
//
//	engine := filesystem.NewEngine(cfg, resolver, rules, thumbs).
//		WithLogger(logger).
//		WithMetrics(metrics)
//	list, err := engine.ReadFolder(ctx, "/docs", "")
package filesystem
