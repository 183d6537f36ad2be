package store

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/client"
	"storefront/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// AuthState is the session store's position in the login state machine.
type AuthState int

const (
	StateAnonymous AuthState = iota
	StateAuthenticating
	StateAuthenticated
	// StateAuthFailed holds until ClearError is called so the error stays visible.
	StateAuthFailed
)

func (s AuthState) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateAuthFailed:
		return "auth_failed"
	default:
		return "anonymous"
	}
}

// TokenSource is the read-only view of the session other stores depend on.
type TokenSource interface {
	Token() (string, bool)
}

type loginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
	User  *struct {
		Role string `json:"role"`
	} `json:"user,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// SessionStore owns the bearer token and role. It is the only writer of
// session state; the other stores read the token through TokenSource.
type SessionStore struct {
	client *client.Client
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	session  domain.Session
	state    AuthState
	err      *apperror.Error
	track    tracker
	verified map[string]string

	verify singleflight.Group
}

// NewSessionStore creates an anonymous session store.
func NewSessionStore(c *client.Client, logger *zap.Logger) *SessionStore {
	return &SessionStore{
		client:   c,
		logger:   logger,
		now:      time.Now,
		session:  domain.GuestSession(),
		verified: make(map[string]string),
	}
}

// Session returns the effective session. An expired token reads as a guest
// session; the stored state itself is left for Logout to clear.
func (s *SessionStore) Session() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.session.Authenticated() || s.session.Expired(s.now()) {
		return domain.GuestSession()
	}
	return s.session
}

// Token implements TokenSource.
func (s *SessionStore) Token() (string, bool) {
	session := s.Session()
	return session.Token, session.Authenticated()
}

// Role returns the effective role.
func (s *SessionStore) Role() domain.Role {
	return s.Session().Role
}

// State returns the current login state.
func (s *SessionStore) State() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Loading reports whether a login or registration call is in flight.
func (s *SessionStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.track.busy()
}

// Error returns the last login or registration failure, or nil.
func (s *SessionStore) Error() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err == nil {
		return nil
	}
	return s.err
}

// ClearError resets the error field only. Token and role are untouched.
func (s *SessionStore) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.err = nil
	if s.state == StateAuthFailed {
		if s.session.Authenticated() {
			s.state = StateAuthenticated
		} else {
			s.state = StateAnonymous
		}
	}
}

// Login exchanges credentials for a session. On failure the error field is
// set and any existing session is left as it was.
func (s *SessionStore) Login(ctx context.Context, creds domain.Credentials) (domain.Session, error) {
	const op = "login"

	if err := domain.Validate(creds); err != nil {
		appErr := invalid(op, err, "Email and password are required")
		s.mu.Lock()
		s.err = appErr
		s.state = StateAuthFailed
		s.mu.Unlock()
		return domain.GuestSession(), appErr
	}

	s.mu.Lock()
	tk := s.track.begin(ctx)
	prev := s.state
	if prev == StateAuthFailed {
		prev = StateAnonymous
		if s.session.Authenticated() {
			prev = StateAuthenticated
		}
	}
	s.err = nil
	s.state = StateAuthenticating
	s.mu.Unlock()

	s.logger.Debug("Login started", zap.String("email", creds.Email))

	var resp loginResponse
	err := s.client.Do(ctx, client.Anonymous(), http.MethodPost, "/auth/login", creds, &resp)
	if err == nil && resp.Token == "" {
		err = apperror.New(apperror.KindNetworkFailed, op, "Invalid login response", nil)
	}

	if err != nil {
		appErr := loginFailure(err)

		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.track.settle(tk) {
			if s.state == StateAuthenticating {
				s.state = prev
			}
			return domain.GuestSession(), ErrAbandoned
		}
		s.err = appErr
		s.state = StateAuthFailed

		s.logger.Warn("Login failed",
			zap.String("email", creds.Email),
			zap.Stringer("reason", appErr.Reason),
			zap.Error(err),
		)
		return domain.GuestSession(), appErr
	}

	session := s.sessionFromToken(resp)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.track.settle(tk) {
		if s.state == StateAuthenticating {
			s.state = prev
		}
		return domain.GuestSession(), ErrAbandoned
	}
	s.session = session
	s.state = StateAuthenticated
	s.err = nil

	s.logger.Info("User logged in", zap.String("role", string(session.Role)))
	return session, nil
}

// sessionFromToken resolves role and expiry. The role comes from the
// response body when present, otherwise from the token's claims.
func (s *SessionStore) sessionFromToken(resp loginResponse) domain.Session {
	session := domain.Session{Token: resp.Token}

	role := resp.Role
	if role == "" && resp.User != nil {
		role = resp.User.Role
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(resp.Token, claims); err == nil {
		if role == "" {
			role, _ = claims["role"].(string)
		}
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			session.ExpiresAt = exp.Time
		}
	} else {
		s.logger.Debug("Token is not a readable JWT", zap.Error(err))
	}

	session.Role = domain.ParseRole(role)
	return session
}

func loginFailure(err error) *apperror.Error {
	appErr := failure("login", err, "Login failed")
	if appErr.Status == 0 {
		return appErr
	}

	if strings.Contains(strings.ToLower(appErr.Message), "verify your email") {
		appErr.Kind = apperror.KindAuthFailed
		appErr.Reason = apperror.ReasonEmailUnverified
		return appErr
	}

	switch appErr.Status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		appErr.Kind = apperror.KindAuthFailed
		appErr.Reason = apperror.ReasonInvalidCredentials
	}
	return appErr
}

// Register creates an account pending email verification. No session is
// created.
func (s *SessionStore) Register(ctx context.Context, profile domain.Profile) (domain.PendingVerification, error) {
	const op = "register"

	if err := domain.Validate(profile); err != nil {
		appErr := invalid(op, err, "Registration details are invalid")
		s.mu.Lock()
		s.err = appErr
		s.mu.Unlock()
		return domain.PendingVerification{}, appErr
	}

	s.mu.Lock()
	tk := s.track.begin(ctx)
	s.err = nil
	s.mu.Unlock()

	var resp messageResponse
	err := s.client.Do(ctx, client.Anonymous(), http.MethodPost, "/auth/register", profile, &resp)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.track.settle(tk) {
		return domain.PendingVerification{}, ErrAbandoned
	}

	if err != nil {
		appErr := failure(op, err, "Registration failed")
		if appErr.Kind == apperror.KindConflict {
			appErr.Kind = apperror.KindValidationFailed
		}
		s.err = appErr
		s.logger.Warn("Registration failed", zap.String("email", profile.Email), zap.Error(err))
		return domain.PendingVerification{}, appErr
	}

	msg := resp.Message
	if msg == "" {
		msg = "Registration successful! Please check your email to verify your account."
	}
	s.logger.Info("User registered, verification pending", zap.String("email", profile.Email))
	return domain.PendingVerification{Email: profile.Email, Message: msg}, nil
}

// ResendVerification asks the backend to send a fresh verification email.
// It needs no session and is safe to repeat.
func (s *SessionStore) ResendVerification(ctx context.Context, email string) (string, error) {
	const op = "resendVerification"

	if err := domain.ValidateVar(email, "required,email"); err != nil {
		return "", invalid(op, err, "Please enter your email first")
	}

	var resp messageResponse
	body := map[string]string{"email": email}
	if err := s.client.Do(ctx, client.Anonymous(), http.MethodPost, "/auth/resend-verification", body, &resp); err != nil {
		return "", failure(op, err, "Failed to resend verification email")
	}
	if resp.Message == "" {
		resp.Message = "Verification email sent! Please check your inbox."
	}
	return resp.Message, nil
}

// ForgotPassword requests a reset email. The backend answers the same way
// whether or not the address exists.
func (s *SessionStore) ForgotPassword(ctx context.Context, email string) (string, error) {
	const op = "forgotPassword"

	if err := domain.ValidateVar(email, "required,email"); err != nil {
		return "", invalid(op, err, "Invalid email address")
	}

	var resp messageResponse
	body := map[string]string{"email": email}
	if err := s.client.Do(ctx, client.Anonymous(), http.MethodPost, "/auth/forgot-password", body, &resp); err != nil {
		return "", failure(op, err, "Failed to send reset email")
	}
	if resp.Message == "" {
		resp.Message = "If an account exists for that email, a reset link has been sent."
	}
	return resp.Message, nil
}

// ResetPassword completes a reset with the emailed token.
func (s *SessionStore) ResetPassword(ctx context.Context, reset domain.PasswordReset) (string, error) {
	const op = "resetPassword"

	if err := domain.Validate(reset); err != nil {
		return "", invalid(op, err, "Password must be at least 6 characters")
	}

	var resp messageResponse
	if err := s.client.Do(ctx, client.Anonymous(), http.MethodPost, "/auth/reset-password", reset, &resp); err != nil {
		return "", failure(op, err, "Failed to reset password")
	}
	if resp.Message == "" {
		resp.Message = "Password reset successfully. You can now login."
	}
	return resp.Message, nil
}

// VerifyEmail confirms an address. Concurrent calls with the same token share
// one request, and a token that already verified is answered from memory.
func (s *SessionStore) VerifyEmail(ctx context.Context, token string) (string, error) {
	const op = "verifyEmail"

	if token == "" {
		return "", apperror.New(apperror.KindValidationFailed, op, "Verification token is missing", nil)
	}

	s.mu.RLock()
	msg, ok := s.verified[token]
	gen := s.track.gen
	s.mu.RUnlock()
	if ok {
		return msg, nil
	}

	// The shared request outlives any single caller; each caller waits on
	// its own context.
	detached := context.WithoutCancel(ctx)
	ch := s.verify.DoChan(token, func() (interface{}, error) {
		s.mu.RLock()
		msg, ok := s.verified[token]
		s.mu.RUnlock()
		if ok {
			return msg, nil
		}

		var resp messageResponse
		path := "/auth/verify-email?token=" + url.QueryEscape(token)
		if err := s.client.Do(detached, client.Anonymous(), http.MethodGet, path, nil, &resp); err != nil {
			return "", err
		}
		if resp.Message == "" {
			resp.Message = "Your email has been verified successfully! You can now login."
		}

		s.mu.Lock()
		if s.track.gen == gen {
			s.verified[token] = resp.Message
		}
		s.mu.Unlock()
		return resp.Message, nil
	})

	select {
	case <-ctx.Done():
		return "", ErrAbandoned
	case res := <-ch:
		if res.Err != nil {
			return "", failure(op, res.Err, "Email verification failed")
		}
		s.logger.Debug("Email verified", zap.Bool("shared", res.Shared))
		return res.Val.(string), nil
	}
}

// Logout clears token and role in one step. Requests already sent with the
// old token are not cancelled.
func (s *SessionStore) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = domain.GuestSession()
	s.state = StateAnonymous
	s.logger.Info("User logged out")
}

// Dispose abandons in-flight login and registration results.
func (s *SessionStore) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.track.dispose()
	if s.state == StateAuthenticating {
		if s.session.Authenticated() {
			s.state = StateAuthenticated
		} else {
			s.state = StateAnonymous
		}
	}
}
