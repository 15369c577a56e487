package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/cadencehr/cadence/internal/shared"
)

func newStackServer(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	stack := MiddlewareStack(MiddlewareConfig{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		SessionManager: shared.NewSessionManager(client, "cadence_session", "session-secret", time.Hour, false),
		CSRFManager:    shared.NewCSRFManager("csrf-secret"),
	})

	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	for i := len(stack) - 1; i >= 0; i-- {
		handler = stack[i](handler)
	}
	return handler
}

func sessionCookie(t *testing.T, res *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range res.Result().Cookies() {
		if c.Name == "cadence_session" {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func TestCSRFTokenIssuedOnSafeMethods(t *testing.T) {
	handler := newStackServer(t)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(shared.CSRFHeader) == "" {
		t.Fatalf("expected %s header on GET response", shared.CSRFHeader)
	}
	sessionCookie(t, res)
}

func TestCSRFIssuedTokenAcceptedOnWrite(t *testing.T) {
	handler := newStackServer(t)

	// First contact: GET yields the session cookie and the token.
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	cookie := sessionCookie(t, res)
	token := res.Header().Get(shared.CSRFHeader)
	if token == "" {
		t.Fatalf("no token issued")
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("{}"))
	req.AddCookie(cookie)
	req.Header.Set(shared.CSRFHeader, token)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code == http.StatusForbidden {
		t.Fatalf("issued token rejected with 403")
	}
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestCSRFRejectsWriteWithoutToken(t *testing.T) {
	handler := newStackServer(t)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	cookie := sessionCookie(t, res)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("{}"))
	req.AddCookie(cookie)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", res.Code)
	}
}
