// Package http exposes the file engine over a single connector endpoint.
//
// Every operation is addressed by the mode parameter of /api/filemanager:
// GET carries read operations and simple mutations, POST carries uploads
// and file saves. Successful JSON replies are wrapped as {"data": ...};
// failures use an errors envelope whose title is the engine error kind
// and whose meta.arguments are the client-facing arguments.
//
// Example:
//
//	handlers := http.NewHandlers(engine, metrics).WithLogger(logger)
//	handlers.Register(router)
package http
