// Package fserr defines the error taxonomy of the file manager.
//
// Every failure surfaced by the engine is an *Error with a Kind and the
// arguments a client needs to render a message. The core never builds
// human-readable prose; the HTTP layer maps kinds to status codes and the
// client localises.
//
// # Usage
//
//	if errors.Is(err, fserr.ErrNotFound) {
//	    // path vanished
//	}
//	status := statusFor(fserr.KindOf(err))
package fserr
