package service

import (
	"context"

	"storefront/internal/domain"

	"go.uber.org/zap"
)

// Mailer delivers account emails.
type Mailer interface {
	SendVerification(ctx context.Context, user *domain.User, token string) error
	SendPasswordReset(ctx context.Context, user *domain.User, token string) error
}

// LogMailer writes the links it would send to the log instead.
type LogMailer struct {
	BaseURL string
	Logger  *zap.Logger
}

func (m LogMailer) SendVerification(_ context.Context, user *domain.User, token string) error {
	m.Logger.Info("Verification email",
		zap.String("to", user.Email),
		zap.String("link", m.BaseURL+"/verify-email?token="+token),
	)
	return nil
}

func (m LogMailer) SendPasswordReset(_ context.Context, user *domain.User, token string) error {
	m.Logger.Info("Password reset email",
		zap.String("to", user.Email),
		zap.String("link", m.BaseURL+"/reset-password?token="+token),
	)
	return nil
}
