package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/lingvodoc/lingvodoc/internal/auth"
	"github.com/lingvodoc/lingvodoc/internal/shared"
	_ "github.com/lingvodoc/lingvodoc/testing"
)

type stubRepo struct {
	user    *auth.User
	clients []bool
}

func (s *stubRepo) FindByLogin(ctx context.Context, login string) (*auth.User, error) {
	if s.user == nil || s.user.Login != login {
		return nil, auth.ErrUserNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateClient(ctx context.Context, userID int64, browser bool) (int64, error) {
	s.clients = append(s.clients, browser)
	return int64(100 + len(s.clients)), nil
}

type harness struct {
	router   chi.Router
	sessions *shared.SessionManager
}

func newHarness(t *testing.T, repo auth.Repository) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	handler := auth.NewHandler(nil, auth.NewService(repo), sessions, shared.NewCSRFManager("csrfsecret"))

	router := chi.NewRouter()
	router.Route("/auth", handler.MountRoutes)
	return &harness{router: router, sessions: sessions}
}

// do runs req with a loaded session and commits it afterwards.
func (h *harness) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	sess, err := h.sessions.Load(req.Context(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	ctx := shared.WithSession(req.Context(), sess)
	res := httptest.NewRecorder()
	h.router.ServeHTTP(res, req.WithContext(ctx))
	if err := h.sessions.Commit(ctx, res, sess); err != nil {
		t.Fatalf("commit session: %v", err)
	}
	return res, sess
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	out, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return string(out)
}

func TestCSRFEndpointIssuesToken(t *testing.T) {
	h := newHarness(t, &stubRepo{})

	res, sess := h.do(t, httptest.NewRequest(http.MethodGet, "/auth/csrf", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["csrf_token"] == "" || body["csrf_token"] != sess.Get(shared.CSRFSessionKey) {
		t.Fatalf("expected session token in body, got %q", body["csrf_token"])
	}
}

func TestLoginCreatesClient(t *testing.T) {
	repo := &stubRepo{user: &auth.User{ID: 7, Login: "linguist", PasswordHash: hashed(t, "correctpass"), IsActive: true}}
	h := newHarness(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"login":"linguist","password":"correctpass"}`))
	res, sess := h.do(t, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if sess.User() != 7 || sess.Client() != 101 {
		t.Fatalf("session not bound: user=%d client=%d", sess.User(), sess.Client())
	}
	if len(repo.clients) != 1 || !repo.clients[0] {
		t.Fatalf("expected one browser client, got %v", repo.clients)
	}

	// The client survives a round trip through redis.
	next := httptest.NewRequest(http.MethodGet, "/auth/csrf", nil)
	next.AddCookie(&http.Cookie{Name: h.sessions.CookieName(), Value: sess.ID})
	_, reloaded := h.do(t, next)
	if reloaded.Client() != 101 {
		t.Fatalf("expected client 101 after reload, got %d", reloaded.Client())
	}
}

func TestLoginDeactivatedUserAllowed(t *testing.T) {
	repo := &stubRepo{user: &auth.User{ID: 3, Login: "retired", PasswordHash: hashed(t, "correctpass"), IsActive: false}}
	h := newHarness(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"login":"retired","password":"correctpass","desktop":true}`))
	res, _ := h.do(t, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if len(repo.clients) != 1 || repo.clients[0] {
		t.Fatalf("expected one desktop client, got %v", repo.clients)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	repo := &stubRepo{user: &auth.User{ID: 7, Login: "linguist", PasswordHash: hashed(t, "correctpass"), IsActive: true}}
	h := newHarness(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"login":"linguist","password":"wrongpass"}`))
	res, sess := h.do(t, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	if sess.Client() != 0 {
		t.Fatalf("session must stay anonymous")
	}
	if len(repo.clients) != 0 {
		t.Fatalf("no client should be created")
	}
}

func TestLoginValidation(t *testing.T) {
	h := newHarness(t, &stubRepo{})

	res, _ := h.do(t, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"login":"x","password":"short"}`)))
	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", res.Code)
	}
	res, _ = h.do(t, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"login":`)))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestLogoutDestroysSession(t *testing.T) {
	h := newHarness(t, &stubRepo{})

	res, sess := h.do(t, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if !sess.Destroyed() {
		t.Fatalf("expected session to be destroyed")
	}
	var cleared bool
	// The cookie is written after the handler, so read the live header map.
	for _, c := range (&http.Response{Header: res.Header()}).Cookies() {
		if c.Name == h.sessions.CookieName() && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("expected session cookie to be cleared")
	}
}

type brokenRepo struct{ stubRepo }

func (brokenRepo) FindByLogin(ctx context.Context, login string) (*auth.User, error) {
	return nil, errors.New("connection refused")
}

func TestLoginRepositoryFailureIsServerError(t *testing.T) {
	h := newHarness(t, &brokenRepo{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"login":"linguist","password":"correctpass"}`))
	res, sess := h.do(t, req)
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if sess.Client() != 0 {
		t.Fatalf("session must stay anonymous")
	}

	_, err := auth.NewService(&brokenRepo{}).Authenticate(context.Background(), "linguist", "correctpass")
	if err == nil || errors.Is(err, shared.ErrInvalidCredentials) {
		t.Fatalf("expected a lookup error, got %v", err)
	}
}
