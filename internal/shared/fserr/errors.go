package fserr

import (
	"errors"
	"strings"
)

// Kind classifies a file-manager failure. Kinds are stable codes that
// clients render into their own messages.
type Kind string

const (
	KindInvalidPath        Kind = "INVALID_PATH"
	KindNotFound           Kind = "NOT_FOUND"
	KindForbidden          Kind = "FORBIDDEN"
	KindForbiddenName      Kind = "FORBIDDEN_NAME"
	KindForbiddenCharacter Kind = "FORBIDDEN_CHARACTER"
	KindAlreadyExists      Kind = "ALREADY_EXISTS"
	KindPayloadTooLarge    Kind = "PAYLOAD_TOO_LARGE"
	KindEmptyPayload       Kind = "EMPTY_PAYLOAD"
	KindDirectoryRequired  Kind = "DIRECTORY_REQUIRED"
	KindFileRequired       Kind = "FILE_REQUIRED"
	KindDirectoryEmpty     Kind = "DIRECTORY_EMPTY"
	KindArchive            Kind = "ARCHIVE_ERROR"
	KindServer             Kind = "SERVER_ERROR"
)

// Error is a kinded failure carrying the arguments a client needs to
// render it (usually the offending path or name).
type Error struct {
	Kind Kind
	Args []string
	Err  error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	if len(e.Args) > 0 {
		sb.WriteString(" [")
		sb.WriteString(strings.Join(e.Args, ", "))
		sb.WriteString("]")
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// works regardless of arguments.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidPath        = &Error{Kind: KindInvalidPath}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrForbiddenName      = &Error{Kind: KindForbiddenName}
	ErrForbiddenCharacter = &Error{Kind: KindForbiddenCharacter}
	ErrAlreadyExists      = &Error{Kind: KindAlreadyExists}
	ErrPayloadTooLarge    = &Error{Kind: KindPayloadTooLarge}
	ErrEmptyPayload       = &Error{Kind: KindEmptyPayload}
	ErrDirectoryRequired  = &Error{Kind: KindDirectoryRequired}
	ErrFileRequired       = &Error{Kind: KindFileRequired}
	ErrDirectoryEmpty     = &Error{Kind: KindDirectoryEmpty}
	ErrArchive            = &Error{Kind: KindArchive}
	ErrServer             = &Error{Kind: KindServer}
)

// New creates an error of the given kind.
func New(kind Kind, args ...string) *Error {
	return &Error{Kind: kind, Args: args}
}

// Wrap creates an error of the given kind around a cause.
func Wrap(kind Kind, err error, args ...string) *Error {
	return &Error{Kind: kind, Args: args, Err: err}
}

// KindOf reports the kind of err. Foreign errors are SERVER_ERROR and a
// nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindServer
}

// ArgsOf returns the client-facing arguments of err, if any.
func ArgsOf(err error) []string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Args
	}
	return nil
}

func InvalidPath(path string) *Error        { return New(KindInvalidPath, path) }
func NotFound(path string) *Error           { return New(KindNotFound, path) }
func Forbidden(path string) *Error          { return New(KindForbidden, path) }
func ForbiddenName(name string) *Error      { return New(KindForbiddenName, name) }
func ForbiddenCharacter(name string) *Error { return New(KindForbiddenCharacter, name) }
func AlreadyExists(path string) *Error      { return New(KindAlreadyExists, path) }
func PayloadTooLarge(limit string) *Error   { return New(KindPayloadTooLarge, limit) }
func EmptyPayload(name string) *Error       { return New(KindEmptyPayload, name) }
func DirectoryRequired(path string) *Error  { return New(KindDirectoryRequired, path) }
func FileRequired(path string) *Error       { return New(KindFileRequired, path) }
func DirectoryEmpty(path string) *Error     { return New(KindDirectoryEmpty, path) }

// Archive wraps an archive read or write failure.
func Archive(err error, path string) *Error { return Wrap(KindArchive, err, path) }

// Server wraps an unexpected I/O failure.
func Server(err error, path string) *Error { return Wrap(KindServer, err, path) }
