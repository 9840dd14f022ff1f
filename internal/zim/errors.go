package zim

import (
	"errors"
	"fmt"
)

// Kind classifies failures so callers can map them onto structured responses.
type Kind string

const (
	// KindNotFound indicates an unknown archive name or entry path.
	KindNotFound Kind = "not_found"
	// KindInvalidArgument indicates a rejected request parameter.
	KindInvalidArgument Kind = "invalid_argument"
	// KindOpenFailure indicates an unreadable or corrupt archive file.
	KindOpenFailure Kind = "open_failure"
	// KindTimeout indicates a per-archive search exceeded its bound.
	KindTimeout Kind = "timeout"
	// KindRedirectLoop indicates a redirect chain exceeded the depth bound.
	KindRedirectLoop Kind = "redirect_loop"
)

// Error is the structured error type for all archive operations.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches errors of the same kind, so sentinel comparisons like
// errors.Is(err, zim.ErrNotFound("")) work across wrapped causes.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// NotFoundError reports an unknown archive or entry.
func NotFoundError(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// InvalidArgumentError reports a rejected parameter.
func InvalidArgumentError(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// OpenFailureError reports an unreadable archive, wrapping the cause.
func OpenFailureError(name string, err error) *Error {
	return &Error{Kind: KindOpenFailure, Message: "cannot open archive " + name, Err: err}
}

// TimeoutError reports an expired per-archive search.
func TimeoutError(name string) *Error {
	return &Error{Kind: KindTimeout, Message: "search timed out on archive " + name}
}

// RedirectLoopError reports a redirect chain past the depth bound.
func RedirectLoopError(path string, depth int) *Error {
	return &Error{Kind: KindRedirectLoop, Message: fmt.Sprintf("redirect chain from %s exceeds depth %d", path, depth)}
}

// KindOf extracts the Kind from an error, or empty string for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
