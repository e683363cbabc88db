package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/pianostore/internal/metrics"
	"github.com/example/pianostore/internal/services"
	"github.com/example/pianostore/internal/session"
)

func token(t *testing.T, role string, exp time.Time) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "42",
		"role": role,
		"exp":  exp.Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return signed
}

func newApp() *fiber.App {
	return newAppWith(session.NewTokens("secret"), "http://backend.invalid/api")
}

func newAppWith(tokens *session.Tokens, backendURL string) *fiber.App {
	app := fiber.New()
	app.Use(Metrics(metrics.Noop()))
	app.Use(Session(SessionConfig{Tokens: tokens, Backend: services.NewClient(backendURL, time.Second)}))

	app.Get("/api/me", RequireAuth(), func(c *fiber.Ctx) error {
		return c.SendString(GetClient(c).Token())
	})
	app.Get("/api/admin/orders", RequireElevated(), func(c *fiber.Ctx) error {
		return c.SendString("orders")
	})
	admin := app.Group("/admin", AdminGate())
	admin.Get("/login", func(c *fiber.Ctx) error { return c.SendString("login") })
	admin.Get("/dashboard", func(c *fiber.Ctx) error { return c.SendString("dashboard") })
	return app
}

func request(t *testing.T, app *fiber.App, path string, cookies map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for name, value := range cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func clearedCookies(resp *http.Response) []string {
	var names []string
	for _, ck := range resp.Cookies() {
		if ck.Value == "" {
			names = append(names, ck.Name)
		}
	}
	return names
}

func TestRequireAuth(t *testing.T) {
	app := newApp()

	resp := request(t, app, "/api/me", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	tok := token(t, "customer", time.Now().Add(time.Hour))
	resp = request(t, app, "/api/me", map[string]string{session.TokenCookie: tok})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	expired := token(t, "customer", time.Now().Add(-time.Hour))
	resp = request(t, app, "/api/me", map[string]string{session.TokenCookie: expired})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.ElementsMatch(t, []string{session.TokenCookie, session.RoleCookie}, clearedCookies(resp))
}

func TestAdminGateRedirectsAndClears(t *testing.T) {
	app := newApp()
	customer := token(t, "customer", time.Now().Add(time.Hour))

	resp := request(t, app, "/admin/dashboard", map[string]string{
		session.TokenCookie: customer,
		session.RoleCookie:  "customer",
	})
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, session.AdminLoginPath, resp.Header.Get("Location"))
	assert.ElementsMatch(t, []string{session.TokenCookie, session.RoleCookie}, clearedCookies(resp))

	resp = request(t, app, "/admin/dashboard", nil)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)

	resp = request(t, app, "/admin/login", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	staff := token(t, "staff", time.Now().Add(time.Hour))
	resp = request(t, app, "/admin/dashboard", map[string]string{
		session.TokenCookie: staff,
		session.RoleCookie:  "staff",
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireElevated(t *testing.T) {
	app := newApp()

	resp := request(t, app, "/api/admin/orders", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	customer := token(t, "customer", time.Now().Add(time.Hour))
	resp = request(t, app, "/api/admin/orders", map[string]string{
		session.TokenCookie: customer,
		session.RoleCookie:  "customer",
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), session.AdminLoginPath))

	admin := token(t, "admin", time.Now().Add(time.Hour))
	resp = request(t, app, "/api/admin/orders", map[string]string{
		session.TokenCookie: admin,
		session.RoleCookie:  "admin",
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestClientCarriesSessionToken(t *testing.T) {
	app := newApp()
	tok := token(t, "customer", time.Now().Add(time.Hour))

	resp := request(t, app, "/api/me", map[string]string{session.TokenCookie: tok})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, tok, string(body))
}

func TestRequireElevatedIgnoresRoleCookie(t *testing.T) {
	app := newApp()
	customer := token(t, "customer", time.Now().Add(time.Hour))

	resp := request(t, app, "/api/admin/orders", map[string]string{
		session.TokenCookie: customer,
		session.RoleCookie:  "admin",
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.ElementsMatch(t, []string{session.TokenCookie, session.RoleCookie}, clearedCookies(resp))
}

func TestRequireElevatedRejectsForeignSignature(t *testing.T) {
	app := newApp()
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "42",
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("attacker-key"))
	require.NoError(t, err)

	resp := request(t, app, "/api/admin/orders", map[string]string{
		session.TokenCookie: forged,
		session.RoleCookie:  "admin",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireElevatedAsksBackendWithoutSecret(t *testing.T) {
	var profileRole atomic.Value
	profileRole.Store("customer")
	var lookups atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/profile", r.URL.Path)
		lookups.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"errorCode":0,"message":"ok","data":{"id":42,"role":"` + profileRole.Load().(string) + `"}}`))
	}))
	defer backend.Close()

	app := newAppWith(nil, backend.URL+"/api")
	claimsAdmin := token(t, "admin", time.Now().Add(time.Hour))
	cookies := map[string]string{session.TokenCookie: claimsAdmin, session.RoleCookie: "admin"}

	resp := request(t, app, "/api/admin/orders", cookies)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	profileRole.Store("staff")
	resp = request(t, app, "/api/admin/orders", cookies)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, lookups.Load())
}

func TestRequireElevatedBackendDown(t *testing.T) {
	app := newAppWith(nil, "http://127.0.0.1:1/api")
	admin := token(t, "admin", time.Now().Add(time.Hour))

	resp := request(t, app, "/api/admin/orders", map[string]string{
		session.TokenCookie: admin,
		session.RoleCookie:  "admin",
	})
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Empty(t, clearedCookies(resp))
}
