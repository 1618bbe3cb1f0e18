package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-cyber/portal/internal/auth"
	"github.com/sentinel-cyber/portal/internal/observability"
	"github.com/sentinel-cyber/portal/internal/platform/cache"
	"github.com/sentinel-cyber/portal/internal/rbac"
	"github.com/sentinel-cyber/portal/internal/roles"
	"github.com/sentinel-cyber/portal/internal/seed"
	"github.com/sentinel-cyber/portal/internal/shared"
	"github.com/sentinel-cyber/portal/internal/users"
)

func testConfig() *Config {
	return &Config{
		AppEnv:             "test",
		StoreDriver:        StoreMemory,
		SessionTTL:         time.Hour,
		CSRFSecret:         "test-secret",
		PermissionCacheTTL: time.Minute,
		RateLimitPerMinute: 1000,
		SeedDemoData:       true,
	}
}

type portalFixture struct {
	handler http.Handler
	redis   *miniredis.Miniredis
}

func newPortal(t *testing.T, extraChecks map[string]HealthCheck) portalFixture {
	t.Helper()
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stores, err := OpenStores(ctx, cfg, logger)
	require.NoError(t, err)
	require.NoError(t, stores.Seed(ctx, cfg, logger))

	metrics := observability.NewMetrics()
	sessions := shared.NewSessionManager(client, "sentinel_session", cfg.SessionTTL, false)
	csrf := shared.NewCSRFManager(cfg.CSRFSecret)
	resolver := rbac.NewService(rbac.ServiceConfig{
		Roles:    stores.Roles,
		Catalog:  stores.Roles,
		Cache:    rbac.NewCache(client, cfg.PermissionCacheTTL),
		Logger:   logger,
		Recorder: metrics,
	})
	mw := rbac.Middleware{Service: resolver, Logger: logger}
	rolesService := roles.NewService(stores.Roles, resolver, stores.Audit, logger)
	usersService := users.NewService(stores.Users, stores.Roles, resolver, stores.Audit, logger)
	resolver.SetSubjects(usersService)

	checks := map[string]HealthCheck{"redis": cache.HealthCheck(client)}
	for name, check := range extraChecks {
		checks[name] = check
	}

	handler := NewRouter(RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessions,
		CSRFManager:        csrf,
		AuthHandler:        auth.NewHandler(logger, auth.NewService(stores.Auth), usersService, resolver, sessions, csrf),
		RolesHandler:       roles.NewHandler(logger, rolesService, mw),
		PermissionsHandler: roles.NewPermissionsHandler(logger, rolesService, mw),
		UsersHandler:       users.NewHandler(logger, usersService, resolver, mw),
		HierarchyHandler:   rbac.NewHierarchyHandler(logger),
		RBACMiddleware:     mw,
		Metrics:            metrics,
		HealthChecks:       checks,
	})
	return portalFixture{handler: handler, redis: mr}
}

// browser replays cookies between requests the way a user agent would.
type browser struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
	csrf    string
}

func newBrowser(t *testing.T, h http.Handler) *browser {
	return &browser{t: t, handler: h, cookies: make(map[string]*http.Cookie)}
}

func (b *browser) do(method, path, body string) *httptest.ResponseRecorder {
	b.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "192.0.2.10:4321"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.csrf != "" {
		req.Header.Set(shared.CSRFHeader, b.csrf)
	}
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	res := httptest.NewRecorder()
	b.handler.ServeHTTP(res, req)
	for _, c := range res.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return res
}

func (b *browser) login(email string) {
	b.t.Helper()
	res := b.do(http.MethodGet, "/api/auth/csrf", "")
	require.Equal(b.t, http.StatusOK, res.Code)
	var issued map[string]string
	require.NoError(b.t, json.Unmarshal(res.Body.Bytes(), &issued))
	b.csrf = issued["csrfToken"]
	require.NotEmpty(b.t, b.csrf)

	res = b.do(http.MethodPost, "/api/auth/login", `{"email":"`+email+`","password":"`+seed.DemoPassword+`"}`)
	require.Equal(b.t, http.StatusOK, res.Code, res.Body.String())
	var login map[string]string
	require.NoError(b.t, json.Unmarshal(res.Body.Bytes(), &login))
	require.NotEqual(b.t, issued["csrfToken"], login["csrfToken"])
	b.csrf = login["csrfToken"]
}

func TestHealthz(t *testing.T) {
	p := newPortal(t, nil)
	res := newBrowser(t, p.handler).do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"redis":"ok"}}`, res.Body.String())
}

func TestHealthzDegraded(t *testing.T) {
	p := newPortal(t, map[string]HealthCheck{
		"postgres": func(ctx context.Context) error { return errors.New("connection refused") },
	})
	res := newBrowser(t, p.handler).do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusServiceUnavailable, res.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":{"redis":"ok","postgres":"connection refused"}}`, res.Body.String())
}

func TestUnknownRouteIsProblem(t *testing.T) {
	p := newPortal(t, nil)
	res := newBrowser(t, p.handler).do(http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, res.Code)
	assert.Contains(t, res.Body.String(), "no route for /nope")
}

func TestSecurityHeaders(t *testing.T) {
	p := newPortal(t, nil)
	res := newBrowser(t, p.handler).do(http.MethodGet, "/healthz", "")
	assert.Equal(t, "DENY", res.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", res.Header().Get("X-Content-Type-Options"))
}

func TestMutationsRequireCSRFToken(t *testing.T) {
	p := newPortal(t, nil)
	res := newBrowser(t, p.handler).do(http.MethodPost, "/api/auth/login", `{"email":"admin@sentinel.local","password":"sentinel-demo"}`)
	require.Equal(t, http.StatusForbidden, res.Code)
	assert.Contains(t, res.Body.String(), shared.ErrCSRFTokenMissing.Error())
}

func TestAuthRoutesLiveUnderAPI(t *testing.T) {
	p := newPortal(t, nil)
	b := newBrowser(t, p.handler)

	assert.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/auth/csrf", "").Code)
	res := b.do(http.MethodGet, "/auth/csrf", "")
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "application/problem+json", res.Header().Get("Content-Type"))
}

func TestAnonymousRequestsAreUnauthorized(t *testing.T) {
	p := newPortal(t, nil)
	res := newBrowser(t, p.handler).do(http.MethodGet, "/api/roles/", "")
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestAdminSessionFlow(t *testing.T) {
	p := newPortal(t, nil)
	b := newBrowser(t, p.handler)
	b.login("admin@sentinel.local")

	res := b.do(http.MethodGet, "/api/roles/", "")
	require.Equal(t, http.StatusOK, res.Code)
	var listed struct {
		Roles []rbac.Role `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &listed))
	assert.Len(t, listed.Roles, len(rbac.BaseRoles()))

	res = b.do(http.MethodPost, "/api/roles/validate", `{"name":"Billing","baseRole":"client","permissions":[{"id":"perm.billing.invoices.manage"}]}`)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"valid":false`)

	res = b.do(http.MethodGet, "/api/hierarchy/compare?a=admin&b=client", "")
	require.Equal(t, http.StatusOK, res.Code)

	res = b.do(http.MethodGet, "/api/auth/me", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "admin@sentinel.local")

	res = b.do(http.MethodPost, "/api/auth/logout", "")
	require.Equal(t, http.StatusNoContent, res.Code)
	assert.Empty(t, b.cookies)

	res = b.do(http.MethodGet, "/api/roles/", "")
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestClientCannotManageRoles(t *testing.T) {
	p := newPortal(t, nil)
	b := newBrowser(t, p.handler)
	b.login("client@sentinel.local")

	assert.Equal(t, http.StatusForbidden, b.do(http.MethodGet, "/api/roles/", "").Code)
	assert.Equal(t, http.StatusForbidden, b.do(http.MethodGet, "/api/users/", "").Code)

	res := b.do(http.MethodGet, "/api/auth/me", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "perm.billing.invoices.read")
}

func TestMetricsEndpoint(t *testing.T) {
	p := newPortal(t, nil)
	b := newBrowser(t, p.handler)
	b.do(http.MethodGet, "/healthz", "")

	res := b.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.NotEmpty(t, res.Body.String())
}
