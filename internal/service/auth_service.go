package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for password hashes
	BcryptCost = 10

	DefaultAccessTokenExpiration = time.Hour
	DefaultVerificationTTL       = 24 * time.Hour
	DefaultPasswordResetTTL      = 30 * time.Minute
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// AuthService covers registration, login and the email token flows.
type AuthService interface {
	Register(ctx context.Context, profile domain.Profile) (*domain.User, error)
	Login(ctx context.Context, creds domain.Credentials) (token string, user *domain.User, err error)
	ResendVerification(ctx context.Context, email string) error
	// VerifyEmail reports whether the account had already been verified.
	VerifyEmail(ctx context.Context, token string) (alreadyVerified bool, err error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, reset domain.PasswordReset) error
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims represents the JWT claims
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// AuthOptions tunes token lifetimes; zero values take the defaults.
type AuthOptions struct {
	AccessTokenExpiration time.Duration
	VerificationTTL       time.Duration
	PasswordResetTTL      time.Duration
}

type authService struct {
	users     repository.UserRepository
	tokens    repository.TokenRepository
	mailer    Mailer
	jwtSecret string
	opts      AuthOptions
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthService creates a new instance of AuthService
func NewAuthService(
	users repository.UserRepository,
	tokens repository.TokenRepository,
	mailer Mailer,
	jwtSecret string,
	opts AuthOptions,
	logger *zap.Logger,
) AuthService {
	if opts.AccessTokenExpiration <= 0 {
		opts.AccessTokenExpiration = DefaultAccessTokenExpiration
	}
	if opts.VerificationTTL <= 0 {
		opts.VerificationTTL = DefaultVerificationTTL
	}
	if opts.PasswordResetTTL <= 0 {
		opts.PasswordResetTTL = DefaultPasswordResetTTL
	}
	return &authService{
		users:     users,
		tokens:    tokens,
		mailer:    mailer,
		jwtSecret: jwtSecret,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// Register creates an unverified customer and mails the verification link.
func (s *authService) Register(ctx context.Context, profile domain.Profile) (*domain.User, error) {
	email := normalizeEmail(profile.Email)

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, repository.ErrUserAlreadyExists
	}

	hashedPassword, err := hashPassword(profile.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(profile.Name),
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         string(domain.RoleCustomer),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.sendVerification(ctx, user)
	return user, nil
}

// Login checks the password before the verification flag.
func (s *authService) Login(ctx context.Context, creds domain.Credentials) (string, *domain.User, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(creds.Email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	if !user.Verified {
		return "", nil, ErrEmailNotVerified
	}

	token, err := s.generateAccessToken(user)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	return token, user, nil
}

func (s *authService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user.Verified {
		return nil
	}

	s.sendVerification(ctx, user)
	return nil
}

// VerifyEmail leaves the token in place until it expires so a repeated
// click on the same link reports success.
func (s *authService) VerifyEmail(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, ErrInvalidToken
	}

	userID, err := s.tokens.Resolve(ctx, repository.TokenVerification, token)
	if errors.Is(err, repository.ErrTokenNotFound) {
		return false, ErrInvalidToken
	}
	if err != nil {
		return false, fmt.Errorf("failed to resolve token: %w", err)
	}

	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return false, ErrInvalidToken
	}
	if err != nil {
		return false, fmt.Errorf("failed to find user: %w", err)
	}
	if user.Verified {
		return true, nil
	}

	if err := s.users.MarkVerified(ctx, user.ID); err != nil {
		return false, fmt.Errorf("failed to verify user: %w", err)
	}

	s.logger.Info("Email verified", zap.String("user_id", user.ID))
	return false, nil
}

func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}

	token, err := s.tokens.Issue(ctx, repository.TokenPasswordReset, user.ID, s.opts.PasswordResetTTL)
	if err != nil {
		return fmt.Errorf("failed to issue reset token: %w", err)
	}

	if err := s.mailer.SendPasswordReset(ctx, user, token); err != nil {
		s.logger.Error("Failed to send password reset email", zap.String("user_id", user.ID), zap.Error(err))
	}
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, reset domain.PasswordReset) error {
	userID, err := s.tokens.Consume(ctx, repository.TokenPasswordReset, reset.Token)
	if errors.Is(err, repository.ErrTokenNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("failed to consume reset token: %w", err)
	}

	hashedPassword, err := hashPassword(reset.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, hashedPassword); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.logger.Info("Password reset", zap.String("user_id", userID))
	return nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (s *authService) sendVerification(ctx context.Context, user *domain.User) {
	token, err := s.tokens.Issue(ctx, repository.TokenVerification, user.ID, s.opts.VerificationTTL)
	if err != nil {
		s.logger.Error("Failed to issue verification token", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	if err := s.mailer.SendVerification(ctx, user, token); err != nil {
		s.logger.Error("Failed to send verification email", zap.String("user_id", user.ID), zap.Error(err))
	}
}

// generateAccessToken signs an HS256 token carrying the user ID and role
func (s *authService) generateAccessToken(user *domain.User) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.AccessTokenExpiration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtSecret))
}

func hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
