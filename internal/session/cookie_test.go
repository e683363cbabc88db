package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/pianostore/internal/models"
)

func TestCookiePersisterRoundTrip(t *testing.T) {
	app := fiber.New()
	app.Get("/login", func(c *fiber.Ctx) error {
		s := NewStore(NewCookiePersister(c, CookieOptions{}), nil)
		s.Hydrate()
		s.SetToken("tok-9")
		s.SetRole(models.RoleStaff)
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/me", func(c *fiber.Ctx) error {
		s := NewStore(NewCookiePersister(c, CookieOptions{}), nil)
		s.Hydrate()
		return c.JSON(fiber.Map{"auth": s.IsAuthenticated(), "elevated": s.HasElevatedAccess()})
	})
	app.Get("/logout", func(c *fiber.Ctx) error {
		s := NewStore(NewCookiePersister(c, CookieOptions{}), nil)
		s.Hydrate()
		s.ClearAuth()
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/login", nil))
	require.NoError(t, err)
	cookies := map[string]*http.Cookie{}
	for _, ck := range resp.Cookies() {
		cookies[ck.Name] = ck
	}
	require.Contains(t, cookies, TokenCookie)
	require.Contains(t, cookies, RoleCookie)
	assert.Equal(t, "tok-9", cookies[TokenCookie].Value)
	assert.True(t, cookies[TokenCookie].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(cookies[TokenCookie])
	req.AddCookie(cookies[RoleCookie])
	resp, err = app.Test(req)
	require.NoError(t, err)
	var body map[string]bool
	require.NoError(t, decodeJSON(resp, &body))
	assert.True(t, body["auth"])
	assert.True(t, body["elevated"])

	req = httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(cookies[TokenCookie])
	resp, err = app.Test(req)
	require.NoError(t, err)
	for _, ck := range resp.Cookies() {
		assert.Empty(t, ck.Value, ck.Name)
		assert.True(t, ck.Expires.Before(time.Now()), ck.Name)
	}
}

func decodeJSON(resp *http.Response, out any) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}
