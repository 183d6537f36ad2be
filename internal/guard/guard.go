// Package guard decides whether a session may enter a protected view.
// It performs no I/O and never mutates the session.
package guard

import "storefront/internal/domain"

// Decision is the outcome of a view access check.
type Decision int

const (
	Allow Decision = iota
	// RedirectLogin is returned for guests.
	RedirectLogin
	// AccessDenied is returned for authenticated sessions with the wrong role.
	AccessDenied
)

const (
	LoginPath        = "/login"
	AccessDeniedPath = "/access-denied"
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case AccessDenied:
		return "access_denied"
	default:
		return "unknown"
	}
}

// Redirect returns the view a consumer should navigate to, or "" for Allow.
func (d Decision) Redirect() string {
	switch d {
	case RedirectLogin:
		return LoginPath
	case AccessDenied:
		return AccessDeniedPath
	default:
		return ""
	}
}

// CanAccess reports whether session may enter a view requiring required.
// RoleNone is always satisfied; otherwise the roles must match exactly.
func CanAccess(session domain.Session, required domain.Role) bool {
	if required == domain.RoleNone {
		return true
	}
	return effectiveRole(session) == required
}

// Check is CanAccess plus the redirect a consumer should take on refusal.
func Check(session domain.Session, required domain.Role) Decision {
	if CanAccess(session, required) {
		return Allow
	}
	if effectiveRole(session) == domain.RoleGuest {
		return RedirectLogin
	}
	return AccessDenied
}

// effectiveRole enforces that a session without a token is a guest.
func effectiveRole(session domain.Session) domain.Role {
	if !session.Authenticated() || session.Role == domain.RoleNone {
		return domain.RoleGuest
	}
	return session.Role
}
