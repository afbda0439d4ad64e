// Package logging wraps uber/zap for the file manager.
//
// Production builds emit JSON; development builds emit colored console
// output. The level comes from configuration and falls back to info when
// it cannot be parsed.
//
// Components take a *Logger through a WithLogger builder and name
// themselves with Named, so every line carries its origin:
//
//	logger := logging.FromLevel("debug", false)
//	engine := filesystem.NewEngine(cfg, resolver, rules, thumbs).WithLogger(logger)
//	logger.Named("server").Info("Server starting", zap.String("port", "8000"))
//
// Best-effort failures, such as a thumbnail that cannot be removed, are
// logged at Warn and never surface to clients.
package logging
