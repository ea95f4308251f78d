package services

import "errors"

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindAccessDenied
	KindValidationFailed
	KindAuthenticationFailed
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindAccessDenied:
		return "AccessDenied"
	case KindValidationFailed:
		return "ValidationFailed"
	case KindAuthenticationFailed:
		return "AuthenticationFailed"
	}
	return "Internal"
}

// Error is a caller-facing failure with a kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound             = &Error{Kind: KindNotFound, Message: "not found"}
	ErrAccessDenied         = &Error{Kind: KindAccessDenied, Message: "access denied"}
	ErrValidationFailed     = &Error{Kind: KindValidationFailed, Message: "validation failed"}
	ErrAuthenticationFailed = &Error{Kind: KindAuthenticationFailed, Message: "authentication error"}
)

func NotFound(msg string) error         { return &Error{Kind: KindNotFound, Message: msg} }
func AccessDenied(msg string) error     { return &Error{Kind: KindAccessDenied, Message: msg} }
func ValidationFailed(msg string) error { return &Error{Kind: KindValidationFailed, Message: msg} }

// KindOf returns the kind carried by err, or KindInternal for infrastructure errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
