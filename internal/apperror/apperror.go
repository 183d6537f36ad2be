// Package apperror defines the failure taxonomy surfaced by the client
// stores. Every store converts transport and precondition failures into an
// *Error before returning it, so callers only ever branch on Kind and Reason.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidationFailed is raised before any network call.
	KindValidationFailed
	// KindAuthRequired means a mandatory token was absent.
	KindAuthRequired
	// KindAuthFailed means the backend rejected the credentials.
	KindAuthFailed
	// KindNetworkFailed covers transport errors and non-2xx responses.
	KindNetworkFailed
	// KindConflict means the backend refused a state transition.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidationFailed:
		return "ValidationFailed"
	case KindAuthRequired:
		return "AuthRequired"
	case KindAuthFailed:
		return "AuthFailed"
	case KindNetworkFailed:
		return "NetworkFailed"
	case KindConflict:
		return "Conflict"
	default:
		return "Unknown"
	}
}

// Reason refines KindAuthFailed.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonInvalidCredentials
	// ReasonEmailUnverified is remediable with a verification resend.
	ReasonEmailUnverified
)

func (r Reason) String() string {
	switch r {
	case ReasonInvalidCredentials:
		return "InvalidCredentials"
	case ReasonEmailUnverified:
		return "EmailUnverified"
	default:
		return ""
	}
}

// Error is a classified store failure. Message is safe to show to users.
type Error struct {
	Kind    Kind
	Reason  Reason
	Op      string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.String()
	if e.Reason != ReasonNone {
		msg += "/" + e.Reason.String()
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" (%v)", e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by Kind, and by Reason when the sentinel sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == ReasonNone || t.Reason == e.Reason
}

// Remediable reports whether the failure has an attached compensating action.
func (e *Error) Remediable() bool {
	return e.Kind == KindAuthFailed && e.Reason == ReasonEmailUnverified
}

// Sentinels for errors.Is.
var (
	ErrValidationFailed   = &Error{Kind: KindValidationFailed}
	ErrAuthRequired       = &Error{Kind: KindAuthRequired}
	ErrAuthFailed         = &Error{Kind: KindAuthFailed}
	ErrInvalidCredentials = &Error{Kind: KindAuthFailed, Reason: ReasonInvalidCredentials}
	ErrEmailUnverified    = &Error{Kind: KindAuthFailed, Reason: ReasonEmailUnverified}
	ErrNetworkFailed      = &Error{Kind: KindNetworkFailed}
	ErrConflict           = &Error{Kind: KindConflict}
)

// New returns a classified error.
func New(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf returns the Kind of err, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// MessageOf returns the user-visible message carried by err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
