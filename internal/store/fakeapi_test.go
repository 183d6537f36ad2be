package store

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"storefront/internal/client"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// fakeAPI is a chi-routed test backend that counts the calls it receives.
type fakeAPI struct {
	chi.Router
	server *httptest.Server

	mu    sync.Mutex
	calls map[string]int
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()

	f := &fakeAPI{
		Router: chi.NewRouter(),
		calls:  make(map[string]int),
	}
	f.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			f.calls[r.Method+" "+r.URL.Path]++
			f.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	})
	f.server = httptest.NewServer(f)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) client() *client.Client {
	return client.New(f.server.URL)
}

// count returns how many times "METHOD /path" was hit.
func (f *fakeAPI) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeAPI) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// staticTokens is a TokenSource with a fixed token; "" means no session.
type staticTokens struct {
	mu    sync.Mutex
	token string
}

func (s *staticTokens) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

func (s *staticTokens) set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
