package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for API consumers. Every externally visible
// failure maps to exactly one kind with a stable wire code.
type Kind int

const (
	// KindInvalidRequest - schema, enum, or range violation in a request
	KindInvalidRequest Kind = iota
	// KindNotFound - repository, job, or entity absent
	KindNotFound
	// KindUnauthorized - missing or wrong credentials
	KindUnauthorized
	// KindUpstreamUnavailable - vector store, LLM gateway, git host, or subprocess failure
	KindUpstreamUnavailable
	// KindPatchInvalid - patch validator rejection
	KindPatchInvalid
	// KindConflict - concurrent index attempt or duplicate repository id
	KindConflict
	// KindInternal - anything else
	KindInternal
)

// Severity represents how critical an error is
type Severity int

const (
	// SeverityLow - can continue with degraded functionality
	SeverityLow Severity = iota
	// SeverityMedium - should be addressed but not fatal
	SeverityMedium
	// SeverityHigh - significant issue, may impact functionality
	SeverityHigh
	// SeverityCritical - must be addressed, stops the operation
	SeverityCritical
)

// Error is a structured error carrying a kind, severity, and wire details
type Error struct {
	Kind     Kind
	Severity Severity
	Message  string
	Cause    error
	Details  map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail attaches a key to the error's wire details
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Is matches errors by kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Code returns the stable wire code for the error's kind
func (e *Error) Code() string {
	return e.Kind.Code()
}

// Code returns the stable wire code for a kind
func (k Kind) Code() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	case KindPatchInvalid:
		return "patch_invalid"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

func (k Kind) String() string { return k.Code() }

// New creates an error with the given kind, severity, and message
func New(kind Kind, severity Severity, message string) *Error {
	return &Error{
		Kind:     kind,
		Severity: severity,
		Message:  message,
		Details:  make(map[string]any),
	}
}

// Wrap wraps an existing error; returns nil when err is nil
func Wrap(err error, kind Kind, severity Severity, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:     kind,
		Severity: severity,
		Message:  message,
		Cause:    err,
		Details:  make(map[string]any),
	}
}

// Convenience constructors, one per kind

func InvalidRequest(message string) *Error {
	return New(KindInvalidRequest, SeverityMedium, message)
}

func InvalidRequestf(format string, args ...any) *Error {
	return New(KindInvalidRequest, SeverityMedium, fmt.Sprintf(format, args...))
}

func NotFound(message string) *Error {
	return New(KindNotFound, SeverityMedium, message)
}

func NotFoundf(format string, args ...any) *Error {
	return New(KindNotFound, SeverityMedium, fmt.Sprintf(format, args...))
}

func Unauthorized(message string) *Error {
	return New(KindUnauthorized, SeverityHigh, message)
}

func Upstream(err error, message string) *Error {
	return Wrap(err, KindUpstreamUnavailable, SeverityHigh, message)
}

func Upstreamf(err error, format string, args ...any) *Error {
	return Wrap(err, KindUpstreamUnavailable, SeverityHigh, fmt.Sprintf(format, args...))
}

func PatchInvalid(message string) *Error {
	return New(KindPatchInvalid, SeverityMedium, message)
}

func PatchInvalidf(format string, args ...any) *Error {
	return New(KindPatchInvalid, SeverityMedium, fmt.Sprintf(format, args...))
}

func Conflict(message string) *Error {
	return New(KindConflict, SeverityMedium, message)
}

func Conflictf(format string, args ...any) *Error {
	return New(KindConflict, SeverityMedium, fmt.Sprintf(format, args...))
}

func Internal(err error, message string) *Error {
	return Wrap(err, KindInternal, SeverityCritical, message)
}

func Internalf(err error, format string, args ...any) *Error {
	return Wrap(err, KindInternal, SeverityCritical, fmt.Sprintf(format, args...))
}

// KindOf returns the kind of an error, unwrapping as needed.
// Unclassified errors report KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// SeverityOf returns the severity of an error
func SeverityOf(err error) Severity {
	var e *Error
	if errors.As(err, &e) {
		return e.Severity
	}
	return SeverityMedium
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// DetailsOf returns the wire details of an error, or nil
func DetailsOf(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}
