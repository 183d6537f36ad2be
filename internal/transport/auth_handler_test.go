package transport

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"storefront/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func register(t *testing.T, api *testAPI, email, password string) {
	t.Helper()
	w := api.do(t, http.MethodPost, "/auth/register", "", domain.Profile{Name: "Ada", Email: email, Password: password})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, msgRegistered, messageOf(t, w))
}

func verifyPath(token string) string {
	return "/auth/verify-email?token=" + url.QueryEscape(token)
}

func TestProperty_InvalidRegistrationIsRejected(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 30
	properties := gopter.NewProperties(params)

	cases := []domain.Profile{
		{Name: "Ada", Email: "", Password: "secret1"},
		{Name: "Ada", Email: "not-an-email", Password: "secret1"},
		{Name: "Ada", Email: "ada@example.com", Password: "12345"},
		{Name: "", Email: "ada@example.com", Password: "secret1"},
	}

	properties.Property("invalid profiles answer 400 with a message", prop.ForAll(
		func(i int) bool {
			api := newTestAPI(t)
			w := api.do(t, http.MethodPost, "/auth/register", "", cases[i%len(cases)])
			if w.Code != http.StatusBadRequest {
				return false
			}
			return messageOf(t, w) != ""
		},
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	api := newTestAPI(t)
	register(t, api, "ada@example.com", "secret1")

	w := api.do(t, http.MethodPost, "/auth/register", "", domain.Profile{Name: "Ada", Email: "ADA@example.com", Password: "secret1"})
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, msgDuplicateEmail, messageOf(t, w))
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodPost, "/auth/login", "", "just a string")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Invalid request body", messageOf(t, w))
}

func TestLoginLifecycle(t *testing.T) {
	api := newTestAPI(t)
	register(t, api, "ada@example.com", "secret1")
	creds := domain.Credentials{Email: "ada@example.com", Password: "secret1"}

	w := api.do(t, http.MethodPost, "/auth/login", "", creds)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, msgUnverified, messageOf(t, w))

	w = api.do(t, http.MethodPost, "/auth/login", "", domain.Credentials{Email: creds.Email, Password: "wrong-pw"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, msgInvalidLogin, messageOf(t, w))

	token := api.mail.get("verify:ada@example.com")
	require.NotEmpty(t, token)

	w = api.do(t, http.MethodGet, verifyPath(token), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, msgEmailVerified, messageOf(t, w))

	w = api.do(t, http.MethodGet, verifyPath(token), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, msgAlreadyVerified, messageOf(t, w))

	w = api.do(t, http.MethodPost, "/auth/login", "", creds)
	require.Equal(t, http.StatusOK, w.Code)

	var resp LoginResponse
	decodeBody(t, w, &resp)
	require.NotEmpty(t, resp.Token)
	require.Equal(t, "customer", resp.Role)
	require.Equal(t, "ada@example.com", resp.User.Email)
	require.NotEmpty(t, resp.User.ID)
}

func TestVerifyEmailRejectsUnknownToken(t *testing.T) {
	api := newTestAPI(t)
	for _, path := range []string{verifyPath("nope"), "/auth/verify-email"} {
		w := api.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, msgInvalidVerifyLink, messageOf(t, w))
	}
}

func TestResendAndForgotDoNotRevealAccounts(t *testing.T) {
	api := newTestAPI(t)
	register(t, api, "ada@example.com", "secret1")

	for _, email := range []string{"ada@example.com", "ghost@example.com"} {
		w := api.do(t, http.MethodPost, "/auth/resend-verification", "", EmailRequest{Email: email})
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, msgVerificationSent, messageOf(t, w))

		w = api.do(t, http.MethodPost, "/auth/forgot-password", "", EmailRequest{Email: email})
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, msgResetSent, messageOf(t, w))
	}

	require.Empty(t, api.mail.get("reset:ghost@example.com"))
	require.NotEmpty(t, api.mail.get("reset:ada@example.com"))
}

func TestResetPasswordConsumesToken(t *testing.T) {
	api := newTestAPI(t)
	register(t, api, "ada@example.com", "secret1")
	w := api.do(t, http.MethodGet, verifyPath(api.mail.get("verify:ada@example.com")), "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodPost, "/auth/forgot-password", "", EmailRequest{Email: "ada@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	reset := domain.PasswordReset{Token: api.mail.get("reset:ada@example.com"), Password: "newpass1"}

	w = api.do(t, http.MethodPost, "/auth/reset-password", "", reset)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, msgPasswordReset, messageOf(t, w))

	w = api.do(t, http.MethodPost, "/auth/reset-password", "", reset)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, msgInvalidResetLink, messageOf(t, w))

	for password, want := range map[string]int{"secret1": http.StatusUnauthorized, "newpass1": http.StatusOK} {
		w = api.do(t, http.MethodPost, "/auth/login", "", domain.Credentials{Email: "ada@example.com", Password: password})
		require.Equal(t, want, w.Code, fmt.Sprintf("login with %q", password))
	}
}
