package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies failures surfaced by the command layer so the HTTP
// façade can map them to stable status codes.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindAuthorizationFailed
	KindTransportFailure
)

// Error carries a kind alongside the usual message/cause pair.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound reports a missing charge point, connector, transaction or tag record.
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Conflict reports a duplicate creation or a connector in the wrong state.
func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// AuthorizationFailed reports a non-accepted authorization decision for a tag.
func AuthorizationFailed(idTag, reason string) error {
	return &Error{
		Kind: KindAuthorizationFailed,
		Msg:  fmt.Sprintf("authorization failed for id tag %s, reason: %s", idTag, reason),
	}
}

// TransportFailure wraps an underlying connection or protocol error.
// It is not retried at this layer.
func TransportFailure(msg string, err error) error {
	return &Error{Kind: KindTransportFailure, Msg: msg, Err: err}
}

// KindOf extracts the kind of err, or KindUnknown for plain errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsNotFound reports whether err carries KindNotFound.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsConflict reports whether err carries KindConflict.
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}
