package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	httptransport "github.com/spec-kit/auth-service/internal/api/http"
	"github.com/spec-kit/auth-service/internal/api/http/handlers"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/observability"
	"github.com/spec-kit/auth-service/internal/repository"
	"github.com/spec-kit/auth-service/internal/service"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*domain.User
	nextID int64
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*domain.User), nextID: 1}
	for _, u := range users {
		if u.ID == 0 {
			u.ID = repo.nextID
			repo.nextID++
		}
		repo.users[u.Username] = u
	}
	return repo
}

func (f *fakeUserRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[username]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.ID == id {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserRepo) Insert(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[user.Username]; exists {
		return repository.ErrDuplicateUsername
	}
	user.ID = f.nextID
	f.nextID++
	copied := *user
	f.users[user.Username] = &copied
	return nil
}

type storedCode struct {
	userID    int64
	code      string
	ip        string
	userAgent string
}

type fakeCodeRepo struct {
	mu     sync.Mutex
	stored []storedCode
}

func (f *fakeCodeRepo) Store(_ context.Context, userID int64, code, ip, userAgent string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, storedCode{userID: userID, code: code, ip: ip, userAgent: userAgent})
	return nil
}

func (f *fakeCodeRepo) GetByCode(_ context.Context, code string) (*repository.AuthCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sc := range f.stored {
		if sc.code == code {
			return &repository.AuthCode{UserID: sc.userID, Code: sc.code}, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeSessionRepo struct {
	mu     sync.Mutex
	scores map[string]int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{scores: make(map[string]int)}
}

func (f *fakeSessionRepo) GetScore(_ context.Context, sessionID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	score, ok := f.scores[sessionID]
	if !ok {
		return 0, repository.ErrSessionNotFound
	}
	return score, nil
}

func (f *fakeSessionRepo) DeleteSession(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.scores, sessionID)
	return nil
}

func (f *fakeSessionRepo) SaveScore(_ context.Context, sessionID string, score int, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores[sessionID] = score
	return nil
}

type testEnv struct {
	app      *fiber.App
	users    *fakeUserRepo
	codes    *fakeCodeRepo
	sessions *fakeSessionRepo
	tokens   *auth.TokenManager
}

func newTestEnv(t *testing.T, appEnv string) *testEnv {
	t.Helper()

	cfg := config.Config{
		App:    config.AppConfig{Name: "auth-service", Env: appEnv, PublicDomain: "example.test"},
		Auth:   config.AuthConfig{JWTSecret: "test-secret", BcryptCost: bcrypt.MinCost},
		Signup: config.SignupConfig{InviteKey: "letmein"},
	}

	users := newFakeUserRepo()
	codes := &fakeCodeRepo{}
	sessions := newFakeSessionRepo()
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, time.Hour)
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	loginService := service.NewLoginService(service.LoginDependencies{
		UserRepo:     users,
		AuthCodeRepo: codes,
		Tokens:       tokens,
	}, nil, logger)
	signupService := service.NewSignupService(cfg, service.SignupDependencies{
		UserRepo:    users,
		SessionRepo: sessions,
	}, nil, logger)

	authHandler := handlers.NewAuthHandler(loginService, signupService, cfg.App, logger, metrics)
	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, nil, nil)
	sessionMiddleware := auth.NewSessionMiddleware(tokens, users)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, 0)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:            healthHandler,
		Auth:              authHandler,
		SessionMiddleware: sessionMiddleware,
	})

	return &testEnv{app: app, users: users, codes: codes, sessions: sessions, tokens: tokens}
}

func (e *testEnv) seedUser(t *testing.T, username, password string, banned bool) *domain.User {
	t.Helper()
	hash, err := auth.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	user := &domain.User{Username: username, PasswordHash: hash, Domain: "example.test", Banned: banned}
	require.NoError(t, e.users.Insert(context.Background(), user))
	return user
}

func formRequest(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	return req
}

func decodeFailure(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var parsed map[string]any
	require.NoError(t, json.Unmarshal(body, &parsed))
	return parsed
}

func TestLoginHandlerSuccessSetsCookieAndRedirects(t *testing.T) {
	env := newTestEnv(t, "development")
	env.seedUser(t, "alice", "correct-horse", false)

	resp, err := env.app.Test(formRequest("/auth/login", url.Values{
		"username": {"alice"},
		"password": {"correct-horse"},
	}))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/inbox", resp.Header.Get("Location"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Empty(t, body, "redirect must carry no error body")

	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, auth.CookieName, cookie.Name)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, 604800, cookie.MaxAge)
	assert.True(t, cookie.HttpOnly)
	assert.False(t, cookie.Secure, "secure only in production")
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)

	claims, err := env.tokens.ParseToken(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, int64(1), claims.UserID)

	require.Len(t, env.codes.stored, 1, "one-time code must be stored before the cookie is handed out")
}

func TestLoginHandlerSecureCookieInProduction(t *testing.T) {
	env := newTestEnv(t, "production")
	env.seedUser(t, "alice", "correct-horse", false)

	resp, err := env.app.Test(formRequest("/auth/login", url.Values{
		"username": {"alice"},
		"password": {"correct-horse"},
	}))
	require.NoError(t, err)
	defer resp.Body.Close()

	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].Secure)
}

func TestLoginHandlerFailureBody(t *testing.T) {
	env := newTestEnv(t, "development")
	env.seedUser(t, "alice", "correct-horse", false)

	resp, err := env.app.Test(formRequest("/auth/login", url.Values{
		"username": {"Alice"},
		"password": {"battery-staple"},
	}))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	parsed := decodeFailure(t, resp)
	assert.Equal(t, false, parsed["success"])
	assert.Equal(t, "Invalid username or password.", parsed["error"])
	assert.Equal(t, "alice", parsed["username"])
	assert.Empty(t, resp.Cookies())
}

func TestLoginHandlerBannedUser(t *testing.T) {
	env := newTestEnv(t, "development")
	env.seedUser(t, "mallory", "correct-horse", true)

	resp, err := env.app.Test(formRequest("/auth/login", url.Values{
		"username": {"mallory"},
		"password": {"correct-horse"},
	}))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	parsed := decodeFailure(t, resp)
	assert.Equal(t, "Your account is banned.", parsed["error"])
}

func TestLoginHandlerClientIPPriority(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		wantIP  string
	}{
		{
			name: "cdn header wins",
			headers: map[string]string{
				"CF-Connecting-IP": "198.51.100.1",
				"X-Real-IP":        "198.51.100.2",
				"X-Forwarded-For":  "198.51.100.3, 198.51.100.4",
			},
			wantIP: "198.51.100.1",
		},
		{
			name: "real ip next",
			headers: map[string]string{
				"X-Real-IP":       "198.51.100.2",
				"X-Forwarded-For": "198.51.100.3, 198.51.100.4",
			},
			wantIP: "198.51.100.2",
		},
		{
			name: "first forwarded hop",
			headers: map[string]string{
				"X-Forwarded-For": "198.51.100.3, 198.51.100.4",
			},
			wantIP: "198.51.100.3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "development")
			env.seedUser(t, "alice", "correct-horse", false)

			req := formRequest("/auth/login", url.Values{
				"username": {"alice"},
				"password": {"correct-horse"},
			})
			req.Header.Set("User-Agent", "test-agent")
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			resp, err := env.app.Test(req)
			require.NoError(t, err)
			resp.Body.Close()

			require.Len(t, env.codes.stored, 1)
			assert.Equal(t, tt.wantIP, env.codes.stored[0].ip)
			assert.Equal(t, "test-agent", env.codes.stored[0].userAgent)
		})
	}
}

func signupForm() url.Values {
	return url.Values{
		"username":        {"alice"},
		"password":        {"password123"},
		"confirmPassword": {"password123"},
		"inviteKey":       {"letmein"},
		"sessionId":       {"sess-1"},
		"iqScore":         {"120"},
	}
}

func TestSignupHandlerSuccess(t *testing.T) {
	env := newTestEnv(t, "development")
	env.sessions.scores["sess-1"] = 120

	resp, err := env.app.Test(formRequest("/auth/signup", signupForm()))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	parsed := decodeFailure(t, resp)
	assert.Equal(t, true, parsed["success"])

	user, err := env.users.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 120, user.Score)

	_, err = env.sessions.GetScore(context.Background(), "sess-1")
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
}

func TestSignupHandlerUsernameTaken(t *testing.T) {
	env := newTestEnv(t, "development")
	env.seedUser(t, "alice", "correct-horse", false)
	env.sessions.scores["sess-1"] = 120

	resp, err := env.app.Test(formRequest("/auth/signup", signupForm()))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	parsed := decodeFailure(t, resp)
	assert.Equal(t, "Username already taken", parsed["error"])
	assert.Equal(t, "alice", parsed["username"])
}

func TestSignupHandlerInvalidInvite(t *testing.T) {
	env := newTestEnv(t, "development")
	env.sessions.scores["sess-1"] = 120

	form := signupForm()
	form.Set("inviteKey", "wrong")
	resp, err := env.app.Test(formRequest("/auth/signup", form))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	parsed := decodeFailure(t, resp)
	assert.Equal(t, "Invalid invite key", parsed["error"])
}

func TestMeRequiresSession(t *testing.T) {
	env := newTestEnv(t, "development")
	user := env.seedUser(t, "alice", "correct-horse", false)

	t.Run("without cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		resp, err := env.app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("with cookie", func(t *testing.T) {
		token, _, err := env.tokens.Issue(user)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
		resp, err := env.app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"username":"alice"`)
	})
}
