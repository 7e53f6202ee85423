package dashboard

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the dashboard core can surface.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthExpired
	KindRateLimited
	KindTimeout
	KindUnreachable
	KindValidation
	KindServer
	KindUnknownSchema
	// KindMalformedResponse is raised by endpoints that need a JSON payload
	// and received a 2xx without one.
	KindMalformedResponse
)

func (k Kind) String() string {
	switch k {
	case KindAuthExpired:
		return "auth_expired"
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	case KindUnreachable:
		return "unreachable"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	case KindUnknownSchema:
		return "unknown_schema"
	case KindMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// Error is the typed error returned by the request layer, the schema
// adapter and the stores. Callers can match on kind with errors.Is against
// the Err* sentinels, or extract details with errors.As:
//
//	var dashErr *dashboard.Error
//	if errors.As(err, &dashErr) && dashErr.Status == 422 { ... }
type Error struct {
	Kind Kind
	// Message is the human-readable detail shown to users.
	Message string
	// Status is the upstream HTTP status, 0 when no response was received.
	Status int
	// Err is the underlying cause, if any.
	Err error

	// notified is set when a session hook already told the user.
	notified bool
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a sentinel of the same kind. Sentinels are
// Errors with an empty Message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// userNotified reports whether err was already surfaced to the user by the
// session when the aggregator answered 401.
func userNotified(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.notified
}

// Sentinels for errors.Is.
var (
	ErrAuthExpired       = &Error{Kind: KindAuthExpired}
	ErrRateLimited       = &Error{Kind: KindRateLimited}
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrUnreachable       = &Error{Kind: KindUnreachable}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrServer            = &Error{Kind: KindServer}
	ErrUnknownSchema     = &Error{Kind: KindUnknownSchema}
	ErrMalformedResponse = &Error{Kind: KindMalformedResponse}
	ErrUnknown           = &Error{Kind: KindUnknown}
)

const (
	msgAuthExpired = "authentication expired, please log in again"
	msgRateLimited = "too many requests, please try again later"
	msgTimeout     = "request timed out, check the network connection"
	msgUnreachable = "cannot reach the server, check the network connection or server status"
)

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func validationError(format string, args ...any) *Error {
	return newError(KindValidation, fmt.Sprintf(format, args...), nil)
}

// KindOf returns the Kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Describe composes the user-facing "{action} failed: {detail}" message.
func Describe(action string, err error) string {
	return fmt.Sprintf("%s failed: %s", action, err.Error())
}
