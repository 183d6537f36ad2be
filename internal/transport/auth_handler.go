package transport

import (
	"errors"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	msgRegistered        = "Registration successful! Please check your email to verify your account."
	msgInvalidLogin      = "Invalid email or password"
	msgUnverified        = "Please verify your email before logging in"
	msgDuplicateEmail    = "User with this email already exists"
	msgVerificationSent  = "Verification email sent"
	msgEmailVerified     = "Email verified successfully"
	msgAlreadyVerified   = "Email already verified"
	msgInvalidVerifyLink = "Invalid or expired verification token"
	msgResetSent         = "If that email exists, a reset link has been sent"
	msgPasswordReset     = "Password reset successful"
	msgInvalidResetLink  = "Invalid or expired reset token"
)

// EmailRequest carries a single address for the resend and forgot flows.
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token string      `json:"token"`
	Role  string      `json:"role"`
	User  UserProfile `json:"user"`
}

// UserProfile represents user profile data
type UserProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func profileOf(user *domain.User) UserProfile {
	return UserProfile{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role}
}

// AuthHandler handles the /auth endpoints
type AuthHandler struct {
	auth   service.AuthService
	logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(auth service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		logger: logger,
	}
}

// RegisterRoutes mounts /auth behind the given rate limiter.
func (h *AuthHandler) RegisterRoutes(r chi.Router, rateLimit func(http.Handler) http.Handler) {
	r.Route("/auth", func(r chi.Router) {
		r.Use(rateLimit)
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/resend-verification", h.ResendVerification)
		r.Get("/verify-email", h.VerifyEmail)
		r.Post("/forgot-password", h.ForgotPassword)
		r.Post("/reset-password", h.ResetPassword)
	})
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.Profile
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		h.logger.Debug("Registration validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	user, err := h.auth.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, repository.ErrUserAlreadyExists) {
			middleware.RespondWithError(w, http.StatusConflict, msgDuplicateEmail)
			return
		}
		h.logger.Error("Registration failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Failed to register user")
		return
	}

	h.logger.Info("User registered", zap.String("user_id", user.ID))
	middleware.RespondWithMessage(w, http.StatusCreated, msgRegistered)
}

// Login handles user authentication
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.Credentials
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		h.logger.Debug("Login validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	token, user, err := h.auth.Login(r.Context(), req)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		middleware.RespondWithError(w, http.StatusUnauthorized, msgInvalidLogin)
		return
	case errors.Is(err, service.ErrEmailNotVerified):
		middleware.RespondWithError(w, http.StatusForbidden, msgUnverified)
		return
	case err != nil:
		h.logger.Error("Login failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Failed to login")
		return
	}

	h.logger.Info("User logged in", zap.String("user_id", user.ID))
	middleware.RespondWithJSON(w, http.StatusOK, LoginResponse{
		Token: token,
		Role:  user.Role,
		User:  profileOf(user),
	})
}

// ResendVerification answers 200 whether or not the account exists.
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	if err := h.auth.ResendVerification(r.Context(), req.Email); err != nil {
		h.logger.Error("Resend verification failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Failed to send verification email")
		return
	}

	middleware.RespondWithMessage(w, http.StatusOK, msgVerificationSent)
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	already, err := h.auth.VerifyEmail(r.Context(), r.URL.Query().Get("token"))
	switch {
	case errors.Is(err, service.ErrInvalidToken):
		middleware.RespondWithError(w, http.StatusBadRequest, msgInvalidVerifyLink)
		return
	case err != nil:
		h.logger.Error("Email verification failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Failed to verify email")
		return
	}

	if already {
		middleware.RespondWithMessage(w, http.StatusOK, msgAlreadyVerified)
		return
	}
	middleware.RespondWithMessage(w, http.StatusOK, msgEmailVerified)
}

// ForgotPassword answers 200 whether or not the account exists.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	if err := h.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		h.logger.Error("Forgot password failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Failed to process request")
		return
	}

	middleware.RespondWithMessage(w, http.StatusOK, msgResetSent)
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.PasswordReset
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	err := h.auth.ResetPassword(r.Context(), req)
	switch {
	case errors.Is(err, service.ErrInvalidToken):
		middleware.RespondWithError(w, http.StatusBadRequest, msgInvalidResetLink)
		return
	case err != nil:
		h.logger.Error("Password reset failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Failed to reset password")
		return
	}

	middleware.RespondWithMessage(w, http.StatusOK, msgPasswordReset)
}
