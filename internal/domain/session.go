package domain

import "time"

// Role is the access scope carried by a session.
type Role string

const (
	// RoleNone is only meaningful as a required role: it gates nothing.
	RoleNone     Role = ""
	RoleGuest    Role = "guest"
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// ParseRole maps a backend role name onto the client's role set. Any
// authenticated role other than admin is treated as a customer.
func ParseRole(s string) Role {
	switch s {
	case "admin":
		return RoleAdmin
	case "guest":
		return RoleGuest
	default:
		return RoleCustomer
	}
}

// Session is the authenticated identity held by the session store.
// A session without a token always has RoleGuest.
type Session struct {
	Token     string    `json:"token,omitempty"`
	Role      Role      `json:"role"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// GuestSession returns the anonymous session.
func GuestSession() Session {
	return Session{Role: RoleGuest}
}

// Authenticated reports whether the session carries a token.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// Expired reports whether the token's expiry, if known, has passed.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Profile is the registration payload.
type Profile struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// PendingVerification is the outcome of a successful registration: the
// account exists but cannot log in until the email is verified.
type PendingVerification struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

// PasswordReset is the payload for completing a password reset.
type PasswordReset struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}
