package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type sentMail struct {
	kind  string
	email string
	token string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) SendVerification(_ context.Context, user *domain.User, token string) error {
	m.record("verify", user.Email, token)
	return nil
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, user *domain.User, token string) error {
	m.record("reset", user.Email, token)
	return nil
}

func (m *recordingMailer) record(kind, email, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{kind: kind, email: email, token: token})
}

func (m *recordingMailer) last(kind string) sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].kind == kind {
			return m.sent[i]
		}
	}
	return sentMail{}
}

func newTestAuth() (*authService, *repository.Set, *recordingMailer) {
	set := repository.NewMemory()
	mailer := &recordingMailer{}
	svc := NewAuthService(set.Users, set.Tokens, mailer, "test-secret", AuthOptions{}, zap.NewNop())
	return svc.(*authService), set, mailer
}

func registerVerified(t *testing.T, svc *authService, mailer *recordingMailer, email, password string) *domain.User {
	t.Helper()
	ctx := context.Background()
	user, err := svc.Register(ctx, domain.Profile{Name: "Test", Email: email, Password: password})
	require.NoError(t, err)
	_, err = svc.VerifyEmail(ctx, mailer.last("verify").token)
	require.NoError(t, err)
	return user
}

func TestProperty_RegistrationCreatesHashedPasswords(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 20
	properties := gopter.NewProperties(params)

	properties.Property("passwords are hashed with bcrypt and not stored as plaintext", prop.ForAll(
		func(email string, password string) bool {
			svc, set, _ := newTestAuth()
			ctx := context.Background()

			user, err := svc.Register(ctx, domain.Profile{Name: "Ada", Email: email, Password: password})
			if err != nil {
				t.Logf("FAIL: Register: %v", err)
				return false
			}

			stored, err := set.Users.FindByEmail(ctx, email)
			if err != nil {
				return false
			}

			return stored.PasswordHash != password &&
				stored.PasswordHash == user.PasswordHash &&
				bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(password)) == nil &&
				!stored.Verified &&
				stored.Role == string(domain.RoleCustomer)
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{6,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_JWTTokensContainRequiredClaims(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 10
	properties := gopter.NewProperties(params)

	properties.Property("access tokens carry user ID, role and expiry", prop.ForAll(
		func(local string) bool {
			svc, _, mailer := newTestAuth()
			ctx := context.Background()
			email := local + "@example.com"

			user := registerVerified(t, svc, mailer, email, "secret1")

			token, _, err := svc.Login(ctx, domain.Credentials{Email: email, Password: "secret1"})
			if err != nil {
				t.Logf("FAIL: Login: %v", err)
				return false
			}

			claims, err := svc.ValidateToken(token)
			if err != nil {
				return false
			}

			return claims.UserID == user.ID &&
				claims.Subject == user.ID &&
				claims.Role == string(domain.RoleCustomer) &&
				claims.ExpiresAt != nil &&
				claims.ExpiresAt.After(time.Now())
		},
		gen.RegexMatch(`[a-z]{4,10}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestAuth()
	ctx := context.Background()

	_, err := svc.Register(ctx, domain.Profile{Name: "Ada", Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, domain.Profile{Name: "Ada", Email: " ADA@example.com", Password: "secret1"})
	require.ErrorIs(t, err, repository.ErrUserAlreadyExists)
}

func TestLoginOutcomes(t *testing.T) {
	svc, _, mailer := newTestAuth()
	ctx := context.Background()

	_, err := svc.Register(ctx, domain.Profile{Name: "Ada", Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, domain.Credentials{Email: "ada@example.com", Password: "wrong"})
	require.ErrorIs(t, err, ErrInvalidCredentials, "password is checked before verification")

	_, _, err = svc.Login(ctx, domain.Credentials{Email: "ada@example.com", Password: "secret1"})
	require.ErrorIs(t, err, ErrEmailNotVerified)

	_, _, err = svc.Login(ctx, domain.Credentials{Email: "nobody@example.com", Password: "secret1"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	already, err := svc.VerifyEmail(ctx, mailer.last("verify").token)
	require.NoError(t, err)
	require.False(t, already)

	token, user, err := svc.Login(ctx, domain.Credentials{Email: "Ada@Example.com", Password: "secret1"})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.True(t, user.Verified)
}

func TestVerifyEmailIsRepeatable(t *testing.T) {
	svc, _, mailer := newTestAuth()
	ctx := context.Background()

	_, err := svc.Register(ctx, domain.Profile{Name: "Ada", Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	token := mailer.last("verify").token

	already, err := svc.VerifyEmail(ctx, token)
	require.NoError(t, err)
	require.False(t, already)

	already, err = svc.VerifyEmail(ctx, token)
	require.NoError(t, err)
	require.True(t, already)

	_, err = svc.VerifyEmail(ctx, "unknown")
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.VerifyEmail(ctx, "")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestResendVerificationReusesLiveToken(t *testing.T) {
	svc, _, mailer := newTestAuth()
	ctx := context.Background()

	_, err := svc.Register(ctx, domain.Profile{Name: "Ada", Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	first := mailer.last("verify").token

	require.NoError(t, svc.ResendVerification(ctx, "ada@example.com"))
	require.Equal(t, first, mailer.last("verify").token)
	require.Len(t, mailer.sent, 2)

	require.NoError(t, svc.ResendVerification(ctx, "nobody@example.com"))
	require.Len(t, mailer.sent, 2)

	_, err = svc.VerifyEmail(ctx, first)
	require.NoError(t, err)
	require.NoError(t, svc.ResendVerification(ctx, "ada@example.com"))
	require.Len(t, mailer.sent, 2, "verified accounts get no mail")
}

func TestPasswordResetFlow(t *testing.T) {
	svc, _, mailer := newTestAuth()
	ctx := context.Background()
	registerVerified(t, svc, mailer, "ada@example.com", "secret1")

	require.NoError(t, svc.ForgotPassword(ctx, "nobody@example.com"))
	require.Empty(t, mailer.last("reset").token)

	require.NoError(t, svc.ForgotPassword(ctx, "ada@example.com"))
	token := mailer.last("reset").token
	require.NotEmpty(t, token)

	require.ErrorIs(t, svc.ResetPassword(ctx, domain.PasswordReset{Token: "bogus", Password: "newpass"}), ErrInvalidToken)
	require.NoError(t, svc.ResetPassword(ctx, domain.PasswordReset{Token: token, Password: "newpass"}))
	require.ErrorIs(t, svc.ResetPassword(ctx, domain.PasswordReset{Token: token, Password: "again1"}), ErrInvalidToken)

	_, _, err := svc.Login(ctx, domain.Credentials{Email: "ada@example.com", Password: "secret1"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, domain.Credentials{Email: "ada@example.com", Password: "newpass"})
	require.NoError(t, err)
}

func TestValidateTokenRejectsForeignAndExpiredTokens(t *testing.T) {
	svc, _, mailer := newTestAuth()
	ctx := context.Background()
	registerVerified(t, svc, mailer, "ada@example.com", "secret1")

	token, _, err := svc.Login(ctx, domain.Credentials{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)

	other := NewAuthService(nil, nil, nil, "other-secret", AuthOptions{}, zap.NewNop())
	_, err = other.ValidateToken(token)
	require.Error(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * DefaultAccessTokenExpiration) }
	_, err = svc.ValidateToken(token)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}
