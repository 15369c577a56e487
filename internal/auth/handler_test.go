package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/cadencehr/cadence/internal/auth"
	"github.com/cadencehr/cadence/internal/authz"
	"github.com/cadencehr/cadence/internal/shared"
	_ "github.com/cadencehr/cadence/testing"
)

type stubRepo struct {
	users map[int64]*auth.User
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, shared.ErrInvalidCredentials
}

func (s *stubRepo) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (s *stubRepo) UserRole(ctx context.Context, tenantID, userID int64) (authz.Role, error) {
	u, ok := s.users[userID]
	if !ok || u.TenantID != tenantID {
		return "", shared.ErrNotFound
	}
	return u.Role, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	return nil
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(hash)
}

func newAuthHandler(t *testing.T, repo auth.Repository) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := auth.NewHandler(logger, auth.NewService(repo), sessionManager, nil)
	return handler, sessionManager
}

func newRouter(handler *auth.Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	return r
}

func withSession(t *testing.T, sm *shared.SessionManager, req *http.Request) (*http.Request, *shared.Session) {
	t.Helper()
	sess, err := sm.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess)), sess
}

func TestLoginSuccess(t *testing.T) {
	repo := &stubRepo{users: map[int64]*auth.User{
		1: {ID: 1, TenantID: 7, Email: "hr@acme.test", Role: authz.RoleHRManager, PasswordHash: hashOf(t, "correct-horse"), IsActive: true},
	}}
	handler, sm := newAuthHandler(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"hr@acme.test","password":"correct-horse"}`))
	req, sess := withSession(t, sm, req)

	res := httptest.NewRecorder()
	newRouter(handler).ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", res.Code, res.Body.String())
	}
	var body struct {
		UserID   int64  `json:"user_id"`
		TenantID int64  `json:"tenant_id"`
		Role     string `json:"role"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.UserID != 1 || body.TenantID != 7 || body.Role != "hr_manager" {
		t.Fatalf("unexpected session response: %+v", body)
	}
	if sess.UserID() != 1 {
		t.Fatalf("expected session user 1, got %d", sess.UserID())
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	repo := &stubRepo{users: map[int64]*auth.User{
		1: {ID: 1, TenantID: 7, Email: "hr@acme.test", Role: authz.RoleHRManager, PasswordHash: hashOf(t, "correct-horse"), IsActive: true},
	}}
	handler, sm := newAuthHandler(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"hr@acme.test","password":"wrong-password"}`))
	req, _ = withSession(t, sm, req)

	res := httptest.NewRecorder()
	newRouter(handler).ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", res.Code)
	}
}

func TestLoginInactiveUser(t *testing.T) {
	repo := &stubRepo{users: map[int64]*auth.User{
		1: {ID: 1, TenantID: 7, Email: "hr@acme.test", Role: authz.RoleHRManager, PasswordHash: hashOf(t, "correct-horse"), IsActive: false},
	}}
	handler, sm := newAuthHandler(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"hr@acme.test","password":"correct-horse"}`))
	req, _ = withSession(t, sm, req)

	res := httptest.NewRecorder()
	newRouter(handler).ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", res.Code)
	}
}

func TestImpersonationRequiresSuperAdmin(t *testing.T) {
	repo := &stubRepo{users: map[int64]*auth.User{
		1: {ID: 1, TenantID: 7, Email: "hr@acme.test", Role: authz.RoleHRManager, IsActive: true},
		2: {ID: 2, TenantID: 9, Email: "emp@other.test", Role: authz.RoleEmployee, IsActive: true},
	}}
	handler, sm := newAuthHandler(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/impersonate/2", nil)
	req, _ = withSession(t, sm, req)
	req = req.WithContext(shared.ContextWithActor(req.Context(), shared.Actor{UserID: 1, TenantID: 7, Role: authz.RoleHRManager}))

	res := httptest.NewRecorder()
	newRouter(handler).ServeHTTP(res, req)

	if res.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", res.Code)
	}
}

func TestImpersonationRescopesSession(t *testing.T) {
	repo := &stubRepo{users: map[int64]*auth.User{
		1: {ID: 1, TenantID: 0, Email: "ops@cadence.test", Role: authz.RoleSuperAdmin, IsActive: true},
		2: {ID: 2, TenantID: 9, Email: "emp@other.test", Role: authz.RoleEmployee, IsActive: true},
	}}
	handler, sm := newAuthHandler(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/impersonate/2", nil)
	req, sess := withSession(t, sm, req)
	sess.SetUser(1, 0)
	req = req.WithContext(shared.ContextWithActor(req.Context(), shared.Actor{UserID: 1, Role: authz.RoleSuperAdmin}))

	res := httptest.NewRecorder()
	newRouter(handler).ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", res.Code, res.Body.String())
	}
	if sess.UserID() != 2 || sess.TenantID() != 9 {
		t.Fatalf("expected session rescoped to target, got user=%d tenant=%d", sess.UserID(), sess.TenantID())
	}
	if !sess.Impersonating() {
		t.Fatal("expected session to be impersonating")
	}
	if sess.ImpersonatorID() != 1 {
		t.Fatalf("expected impersonator 1, got %d", sess.ImpersonatorID())
	}
}
