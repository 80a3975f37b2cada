package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

type memoryRevocations struct {
	mu  sync.Mutex
	ids map[string]time.Duration
}

func (m *memoryRevocations) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ids == nil {
		m.ids = map[string]time.Duration{}
	}
	m.ids[jti] = ttl
	return nil
}

func (m *memoryRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.ids[jti]
	return ok, nil
}

func signRaw(t *testing.T, sub string, exp time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(exp).Unix(),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func TestLoadSession(t *testing.T) {
	manager := NewSessionManager(testSecret, time.Hour, nil, false)

	app := fiber.New()
	app.Use(manager.LoadSession())
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"userID": CurrentUserID(c)})
	})

	valid, _, err := manager.Issue(123)
	require.NoError(t, err)

	tests := []struct {
		name           string
		cookie         string
		expectedUserID uint
	}{
		{"Happy Path", valid, 123},
		{"No Cookie", "", 0},
		{"Malformed Token", "malformed.token.here", 0},
		{"Expired Token", signRaw(t, strconv.Itoa(123), -time.Hour), 0},
		{"Non Numeric Subject", signRaw(t, "abc", time.Hour), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tt.cookie})
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, float64(tt.expectedUserID), body["userID"])
		})
	}
}

func TestSessionRevocation(t *testing.T) {
	store := &memoryRevocations{}
	manager := NewSessionManager(testSecret, time.Hour, store, false)

	token, claims, err := manager.Issue(7)
	require.NoError(t, err)

	parsed, err := manager.Parse(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, claims.ID, parsed.ID)

	require.NoError(t, store.Revoke(context.Background(), claims.ID, time.Hour))
	_, err = manager.Parse(context.Background(), token)
	assert.ErrorIs(t, err, ErrSessionRevoked)
}

func TestSessionEndRevokesAndClears(t *testing.T) {
	store := &memoryRevocations{}
	manager := NewSessionManager(testSecret, time.Hour, store, false)
	token, claims, err := manager.Issue(7)
	require.NoError(t, err)

	app := fiber.New()
	app.Use(manager.LoadSession())
	app.Post("/logout", func(c *fiber.Ctx) error {
		manager.End(c)
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	revoked, _ := store.IsRevoked(context.Background(), claims.ID)
	assert.True(t, revoked)
	assert.Contains(t, resp.Header.Get("Set-Cookie"), SessionCookie+"=;")
}

func TestLoginRequired(t *testing.T) {
	manager := NewSessionManager(testSecret, time.Hour, nil, false)
	app := fiber.New()
	app.Use(manager.LoadSession())
	app.Get("/new/", LoginRequired, func(c *fiber.Ctx) error {
		return c.SendString("form")
	})

	t.Run("anonymous redirected", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/new/", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/accounts/login/?next=%2Fnew%2F", resp.Header.Get("Location"))
	})

	t.Run("anonymous htmx gets HX-Redirect", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/new/", nil)
		req.Header.Set("HX-Request", "true")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "/accounts/login/?next=%2Fnew%2F", resp.Header.Get("HX-Redirect"))
	})

	t.Run("authenticated passes", func(t *testing.T) {
		token, _, err := manager.Issue(1)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/new/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
