package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRequestVariantsControlAuthorizationHeader(t *testing.T) {
	var gotAuth, gotRequestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := New(server.URL + "/")

	require.NoError(t, c.Do(context.Background(), Anonymous(), http.MethodGet, "/ping", nil, nil))
	require.Empty(t, gotAuth)
	require.NotEmpty(t, gotRequestID)

	require.NoError(t, c.Do(context.Background(), Bearer("abc"), http.MethodGet, "/ping", nil, nil))
	require.Equal(t, "Bearer abc", gotAuth)

	require.False(t, Anonymous().Authorized())
	require.True(t, Bearer("abc").Authorized())
}

func TestDoDecodesJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		json.NewEncoder(w).Encode(map[string]string{"echo": in["value"]})
	}))
	defer server.Close()

	var out map[string]string
	err := New(server.URL).Do(context.Background(), nil, http.MethodPost, "/echo", map[string]string{"value": "hi"}, &out)
	require.NoError(t, err)
	require.Equal(t, "hi", out["echo"])
}

func TestNon2xxBecomesHTTPError(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"flat message", `{"message":"Invalid email or password"}`, http.StatusUnauthorized, "Invalid email or password"},
		{"nested message", `{"error":{"message":"not found"}}`, http.StatusNotFound, "not found"},
		{"no body", ``, http.StatusBadGateway, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			err := New(server.URL).Do(context.Background(), Anonymous(), http.MethodGet, "/", nil, nil)
			require.Error(t, err)
			require.Equal(t, tt.status, StatusCode(err))
			require.Equal(t, tt.message, ErrorMessage(err))
		})
	}
}

func TestDoMultipartSendsFieldsAndFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "Tea", r.FormValue("name"))

		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)

		require.Equal(t, `te"a.png`, header.Filename)
		require.Equal(t, "image/png", header.Header.Get("Content-Type"))
		require.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	form := NewForm().Field("name", "Tea").File("image", `te"a.png`, "image/png", []byte{0x89, 'P', 'N', 'G'})
	err := New(server.URL).DoMultipart(context.Background(), Bearer("t"), http.MethodPost, "/products", form, nil)
	require.NoError(t, err)
}

func TestRateLimitWaitHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := New(server.URL, WithRateLimit(0.001, 1), WithTimeout(time.Second))
	require.NoError(t, c.Do(context.Background(), nil, http.MethodGet, "/", nil, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := c.Do(ctx, nil, http.MethodGet, "/", nil, nil)
	require.Error(t, err)
	require.Zero(t, StatusCode(err))
}
